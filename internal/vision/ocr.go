package vision

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no OCR service is configured.
var ErrUnavailable = errors.New("OCR model not available")

// TextRegion is one recognised span of text.
type TextRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type ocrResponse struct {
	Regions []TextRegion `json:"regions"`
}

// ReadText sends image to the OCR service.
func (c *Client) ReadText(ctx context.Context, image []byte) ([]TextRegion, error) {
	if c.cfg.Disabled || c.cfg.OCRURL == "" {
		return nil, ErrUnavailable
	}

	var resp ocrResponse
	if err := c.post(ctx, c.cfg.OCRURL, image, &resp); err != nil {
		return nil, err
	}
	return resp.Regions, nil
}
