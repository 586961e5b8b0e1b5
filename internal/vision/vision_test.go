package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"printcost-backend/config"
	"printcost-backend/internal/model"
)

func newTestClient(cfg config.VisionConfig) *Client {
	cfg.Timeout = 5 * time.Second
	return NewClient(&cfg, zap.NewNop())
}

func TestClient_IsImageSafe(t *testing.T) {
	testCases := []struct {
		name       string
		detections []Detection
		status     int
		wantSafe   bool
		wantErr    bool
	}{
		{name: "no detections", wantSafe: true},
		{name: "safe labels only", detections: []Detection{{Label: "FACE_MALE", Score: 0.99}}, wantSafe: true},
		{name: "unsafe below threshold", detections: []Detection{{Label: "EXPOSED_BREAST", Score: 0.59}}, wantSafe: true},
		{name: "unsafe at threshold", detections: []Detection{{Label: "exposed_breast", Score: 0.6}}, wantSafe: false},
		{name: "service error fails closed", status: http.StatusInternalServerError, wantSafe: false, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, []byte("img"), body)
				assert.Equal(t, "k", r.Header.Get("X-API-Key"))
				if tc.status != 0 {
					w.WriteHeader(tc.status)
					return
				}
				json.NewEncoder(w).Encode(safetyResponse{Detections: tc.detections})
			}))
			defer server.Close()

			c := newTestClient(config.VisionConfig{SafetyURL: server.URL, APIKey: "k"})
			safe, reason, err := c.IsImageSafe(context.Background(), []byte("img"))
			assert.Equal(t, tc.wantSafe, safe)
			assert.NotEmpty(t, reason)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_Disabled(t *testing.T) {
	c := newTestClient(config.VisionConfig{Disabled: true, SafetyURL: "http://unused", OCRURL: "http://unused"})

	safe, _, err := c.IsImageSafe(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.True(t, safe)

	_, err = c.ReadText(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_ReadText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(ocrResponse{Regions: []TextRegion{{Text: "PLA", Confidence: 0.9}, {Text: "12.5 g", Confidence: 0.8}}})
	}))
	defer server.Close()

	c := newTestClient(config.VisionConfig{OCRURL: server.URL})
	regions, err := c.ReadText(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "12.5 g", regions[1].Text)
}

func TestClient_ReadTextBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := newTestClient(config.VisionConfig{OCRURL: server.URL})
	_, err := c.ReadText(context.Background(), []byte("img"))
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	printers := []model.Printer{
		{ID: "p-prusa", Brand: "Prusa", Model: "MK4"},
		{ID: "p-bambu", Brand: "Bambu Lab", Model: "P1S"},
	}
	materials := []string{"PETG", "PLA"}

	testCases := []struct {
		name         string
		regions      []string
		wantGrams    float64
		wantTime     string
		wantMaterial string
		wantPrinter  string
	}{
		{
			name:         "full readout",
			regions:      []string{"Bambu Lab P1S", "PLA Basic", "12.5 g", "1h 20m"},
			wantGrams:    12.5,
			wantTime:     "1h 20m",
			wantMaterial: "PLA",
			wantPrinter:  "p-bambu",
		},
		{
			name:     "material must be a whole word",
			regions:  []string{"build plate", "30g"},
			wantTime: "0h 0m", wantGrams: 30,
		},
		{
			name:         "first printer by model",
			regions:      []string{"mk4 petg 45m"},
			wantTime:     "0h 45m",
			wantMaterial: "PETG",
			wantPrinter:  "p-prusa",
		},
		{
			name:     "nothing recognised",
			regions:  nil,
			wantTime: "0h 0m",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			regions := make([]TextRegion, len(tc.regions))
			for i, r := range tc.regions {
				regions[i] = TextRegion{Text: r}
			}
			got := Extract(regions, materials, printers)

			assert.Equal(t, tc.wantGrams, got.Filament)
			assert.Equal(t, tc.wantTime, got.TimeStr)
			if tc.wantMaterial == "" {
				assert.Nil(t, got.Material)
			} else {
				require.NotNil(t, got.Material)
				assert.Equal(t, tc.wantMaterial, *got.Material)
			}
			if tc.wantPrinter == "" {
				assert.Nil(t, got.DetectedPrinterID)
			} else {
				require.NotNil(t, got.DetectedPrinterID)
				assert.Equal(t, tc.wantPrinter, *got.DetectedPrinterID)
			}
		})
	}
}
