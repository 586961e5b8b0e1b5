package vision

import (
	"regexp"
	"strings"

	"printcost-backend/internal/model"
	"printcost-backend/internal/parse"
)

// Extraction is the form pre-fill returned by the OCR upload endpoint.
type Extraction struct {
	Filament          float64 `json:"filament"`
	TimeStr           string  `json:"time_str"`
	Material          *string `json:"material"`
	DetectedPrinterID *string `json:"detected_printer_id"`
}

// Extract searches the joined OCR text for the first known material (whole word, any case) and
// the first printer whose brand or model appears in it. Grams and print time are read from the
// slicer readout when present.
func Extract(regions []TextRegion, materials []string, printers []model.Printer) Extraction {
	parts := make([]string, len(regions))
	for i, r := range regions {
		parts[i] = r.Text
	}
	text := strings.ToLower(strings.Join(parts, " "))

	out := Extraction{TimeStr: parse.DefaultTimeString}
	if g, ok := parse.Grams(text); ok {
		out.Filament = g
	}
	if ts, ok := parse.TimeString(text); ok {
		out.TimeStr = ts
	}

	for _, m := range materials {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if regexp.MustCompile(`\b` + regexp.QuoteMeta(m) + `\b`).MatchString(text) {
			upper := strings.ToUpper(m)
			out.Material = &upper
			break
		}
	}

	for i := range printers {
		brand := strings.ToLower(strings.TrimSpace(printers[i].Brand))
		mdl := strings.ToLower(strings.TrimSpace(printers[i].Model))
		if (brand != "" && strings.Contains(text, brand)) || (mdl != "" && strings.Contains(text, mdl)) {
			id := printers[i].ID
			out.DetectedPrinterID = &id
			break
		}
	}
	return out
}
