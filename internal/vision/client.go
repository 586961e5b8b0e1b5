// Package vision talks to the external OCR and content-safety services and turns OCR text into
// form suggestions.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"printcost-backend/config"
)

// Classifier decides whether an uploaded image may be stored.
type Classifier interface {
	IsImageSafe(ctx context.Context, image []byte) (bool, string, error)
}

// TextReader extracts text regions from an image.
type TextReader interface {
	ReadText(ctx context.Context, image []byte) ([]TextRegion, error)
}

// Client implements Classifier and TextReader over HTTP. Both services accept the raw image as
// the request body and answer with JSON.
type Client struct {
	cfg    *config.VisionConfig
	client *http.Client
	log    *zap.Logger
}

// NewClient creates a client for the configured services, routing through cfg.HTTPProxy when set.
func NewClient(cfg *config.VisionConfig, log *zap.Logger) *Client {
	log = log.Named("vision")

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("Invalid proxy URL, vision client will not use a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	if cfg.Disabled {
		log.Warn("Vision services disabled: content checks pass and OCR is unavailable")
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		log: log,
	}
}

// post sends image to endpoint and decodes the JSON answer into out.
func (c *Client) post(ctx context.Context, endpoint string, image []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
