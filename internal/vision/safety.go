package vision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ConfidenceThreshold is the minimum score at which an unsafe label rejects an image.
const ConfidenceThreshold = 0.6

// UnsafeLabels are the detector labels that reject an image.
var UnsafeLabels = map[string]bool{
	"EXPOSED_BUTTOCKS":  true,
	"EXPOSED_BREAST":    true,
	"EXPOSED_GENITALIA": true,
	"COVERED_BUTTOCKS":  true,
	"COVERED_BREAST":    true,
	"COVERED_GENITALIA": true,
}

// Detection is one labelled region reported by the safety service.
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type safetyResponse struct {
	Detections []Detection `json:"detections"`
}

// IsImageSafe asks the safety service for detections and rejects the image when any unsafe label
// reaches ConfidenceThreshold. A failed check rejects the image and returns the error.
func (c *Client) IsImageSafe(ctx context.Context, image []byte) (bool, string, error) {
	if c.cfg.Disabled || c.cfg.SafetyURL == "" {
		return true, "Content check disabled.", nil
	}

	var resp safetyResponse
	if err := c.post(ctx, c.cfg.SafetyURL, image, &resp); err != nil {
		c.log.Error("Content safety check failed", zap.Error(err))
		return false, "An error occurred during content analysis.", err
	}
	return Judge(resp.Detections)
}

// Judge applies the label and threshold rules to detections.
func Judge(detections []Detection) (bool, string, error) {
	for _, d := range detections {
		label := strings.ToUpper(d.Label)
		if UnsafeLabels[label] && d.Score >= ConfidenceThreshold {
			return false, fmt.Sprintf("Unsafe content detected: '%s' with %.2f confidence.", label, d.Score), nil
		}
	}
	return true, "Image is safe.", nil
}
