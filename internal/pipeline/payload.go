package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Payload is the operator-verified record submitted with an image. The JSON keys are the
// column labels the web client shows; snake_case names are accepted as well.
type Payload struct {
	Filename       string  `json:"Filename"`
	Date           string  `json:"Date"`
	Printer        string  `json:"Printer"`
	Material       string  `json:"Material"`
	Brand          string  `json:"Brand"`
	FilamentCostKg float64 `json:"Filament Cost (₹/kg)"`
	Grams          float64 `json:"Filament (g)"`
	TimeString     string  `json:"Time (e.g. 7h 30m)"`
	LabourMinutes  float64 `json:"Labour Time (min)"`
	LabourRate     float64 `json:"Labour Rate (₹/hr)"`
	PrinterID      string  `json:"printer_id"`
	Timestamp      string  `json:"timestamp"`
}

// rawPayload accepts both key spellings and tracks which fields were present. Numbers may arrive
// as strings and text fields as numbers.
type rawPayload struct {
	Filename  *flexString `json:"Filename"`
	Date      *flexString `json:"Date"`
	Printer   *flexString `json:"Printer"`
	Material  *flexString `json:"Material"`
	Brand     *flexString `json:"Brand"`
	PrinterID *flexString `json:"printer_id"`
	Timestamp *flexString `json:"timestamp"`

	FilamentCostKg *flexFloat  `json:"Filament Cost (₹/kg)"`
	Grams          *flexFloat  `json:"Filament (g)"`
	TimeString     *flexString `json:"Time (e.g. 7h 30m)"`
	LabourMinutes  *flexFloat  `json:"Labour Time (min)"`
	LabourRate     *flexFloat  `json:"Labour Rate (₹/hr)"`

	FilenameAlt       *flexString `json:"filename"`
	DateAlt           *flexString `json:"date"`
	PrinterAlt        *flexString `json:"printer"`
	MaterialAlt       *flexString `json:"material"`
	BrandAlt          *flexString `json:"brand"`
	FilamentCostKgAlt *flexFloat  `json:"filament_cost_kg"`
	GramsAlt          *flexFloat  `json:"filament_g"`
	TimeStringAlt     *flexString `json:"time_str"`
	LabourMinutesAlt  *flexFloat  `json:"labour_time_min"`
	LabourRateAlt     *flexFloat  `json:"labour_rate_hr"`
}

// flexString is a text field that also accepts a bare JSON number, kept as written.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cannot unmarshal %s into a string", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat is a number that also accepts its decimal text form, such as "50" or " 12.5 ".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cannot unmarshal %s into a number", data)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %q into a number", s)
	}
	*f = flexFloat(v)
	return nil
}

// ValidationError lists the problems found in a submitted payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + strings.Join(e.Problems, "; ")
}

// ErrInvalidPayload matches every *ValidationError.
var ErrInvalidPayload = errors.New("invalid payload")

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidPayload
}

// DecodePayload parses and validates a submission. Every field is required.
func DecodePayload(data []byte) (Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, &ValidationError{Problems: []string{err.Error()}}
	}

	var p Payload
	var problems []string
	str := func(name string, dst *string, vals ...*flexString) {
		for _, v := range vals {
			if v != nil {
				*dst = strings.TrimSpace(string(*v))
				return
			}
		}
		problems = append(problems, name+" is required")
	}
	num := func(name string, dst *float64, vals ...*flexFloat) {
		for _, v := range vals {
			if v != nil {
				f := float64(*v)
				if math.IsNaN(f) || math.IsInf(f, 0) {
					problems = append(problems, name+" must be a finite number")
				}
				*dst = f
				return
			}
		}
		problems = append(problems, name+" is required")
	}

	str("Filename", &p.Filename, raw.Filename, raw.FilenameAlt)
	str("Date", &p.Date, raw.Date, raw.DateAlt)
	str("Printer", &p.Printer, raw.Printer, raw.PrinterAlt)
	str("Material", &p.Material, raw.Material, raw.MaterialAlt)
	str("Brand", &p.Brand, raw.Brand, raw.BrandAlt)
	num("Filament Cost (₹/kg)", &p.FilamentCostKg, raw.FilamentCostKg, raw.FilamentCostKgAlt)
	num("Filament (g)", &p.Grams, raw.Grams, raw.GramsAlt)
	str("Time (e.g. 7h 30m)", &p.TimeString, raw.TimeString, raw.TimeStringAlt)
	num("Labour Time (min)", &p.LabourMinutes, raw.LabourMinutes, raw.LabourMinutesAlt)
	num("Labour Rate (₹/hr)", &p.LabourRate, raw.LabourRate, raw.LabourRateAlt)
	str("printer_id", &p.PrinterID, raw.PrinterID)
	str("timestamp", &p.Timestamp, raw.Timestamp)

	if p.Filename != "" && !safeName(p.Filename) {
		problems = append(problems, "Filename must be a plain file name")
	}
	if len(problems) > 0 {
		return Payload{}, &ValidationError{Problems: problems}
	}
	return p, nil
}

func safeName(name string) bool {
	return name != "." && name != ".." && filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "02-01-2006", "02/01/2006", "2006/01/02"}

// LogDate returns the payload date, or fallback when it cannot be parsed.
func (p Payload) LogDate(fallback time.Time) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, p.Date); err == nil {
			return t
		}
	}
	return fallback
}

// StoredImageName is the name the image is kept under: the payload filename plus the upload's
// extension.
func (p Payload) StoredImageName(originalFilename string) string {
	return p.Filename + strings.ToLower(filepath.Ext(originalFilename))
}

func (p Payload) String() string {
	return fmt.Sprintf("%s (%s %s, %.1fg)", p.Filename, p.Material, p.Brand, p.Grams)
}
