package costing

import (
	"math"

	"printcost-backend/internal/model"
	"printcost-backend/internal/parse"
)

// DefaultLabourRate is the reference labour rate per hour used for the baseline COGS.
const DefaultLabourRate = 100.0

// Input is the job-specific part of a COGS computation.
type Input struct {
	Grams         float64
	TimeString    string
	LabourMinutes float64
	LabourRate    float64 // per hour
}

// Breakdown holds the line items of both COGS figures.
type Breakdown struct {
	Hours         float64 `json:"hours"`
	HourlyRate    float64 `json:"hourly_rate"`
	RateAvailable bool    `json:"rate_available"`

	Material float64 `json:"material"`
	Labour   float64 `json:"labour"`
	Printer  float64 `json:"printer"`

	DefaultMaterial float64 `json:"default_material"`
	DefaultLabour   float64 `json:"default_labour"`
	DefaultPrinter  float64 `json:"default_printer"`
}

// Result is the outcome of a successful computation. UserCOGS applies the operator's labour
// rate, the filament efficiency factor and the printer buffer factor; DefaultCOGS is the
// no-waste, no-buffer baseline at DefaultLabourRate.
type Result struct {
	UserCOGS    float64   `json:"user_cogs"`
	DefaultCOGS float64   `json:"default_cogs"`
	Breakdown   Breakdown `json:"breakdown"`
}

// Compute returns both COGS figures for one print. A printer whose rate is unavailable
// contributes no machine cost; that is reported through Breakdown.RateAvailable, not as an error.
func Compute(in Input, printer *model.Printer, filament *model.Filament) (Result, error) {
	if err := validate(in, filament); err != nil {
		return Result{}, err
	}

	hours := parse.ParseHours(in.TimeString)
	rate, rateErr := HourlyRate(printer)

	price := *filament.Price
	efficiency := valueOr(filament.EfficiencyFactor, 1.0)
	buffer := 1.0
	if printer != nil {
		buffer = valueOr(printer.BufferFactor, 1.0)
	}

	b := Breakdown{
		Hours:         hours,
		HourlyRate:    rate,
		RateAvailable: rateErr == nil,

		Material: price / 1000 * in.Grams * efficiency,
		Labour:   in.LabourRate / 60 * in.LabourMinutes,
		Printer:  rate * buffer * hours,

		DefaultMaterial: price / 1000 * in.Grams,
		DefaultLabour:   DefaultLabourRate / 60 * in.LabourMinutes,
		DefaultPrinter:  rate * hours,
	}

	res := Result{
		UserCOGS:    b.Material + b.Labour + b.Printer,
		DefaultCOGS: b.DefaultMaterial + b.DefaultLabour + b.DefaultPrinter,
		Breakdown:   b,
	}
	if !finite(res.UserCOGS) {
		return Result{}, &ComputationError{Field: "user_cogs", Value: res.UserCOGS, Reason: "is not finite"}
	}
	if !finite(res.DefaultCOGS) {
		return Result{}, &ComputationError{Field: "default_cogs", Value: res.DefaultCOGS, Reason: "is not finite"}
	}
	return res, nil
}

// Degrade maps a failed computation to the zero pair that is still written to the ledgers.
func Degrade(res Result, err error) Result {
	if err != nil {
		return Result{}
	}
	return res
}

func validate(in Input, filament *model.Filament) error {
	checks := []struct {
		field string
		v     float64
	}{
		{"grams", in.Grams},
		{"labour_minutes", in.LabourMinutes},
		{"labour_rate", in.LabourRate},
	}
	for _, c := range checks {
		if !finite(c.v) {
			return &ComputationError{Field: c.field, Value: c.v, Reason: "is not finite"}
		}
	}
	if in.Grams < 0 {
		return &ComputationError{Field: "grams", Value: in.Grams, Reason: "is negative"}
	}
	if filament == nil || filament.Price == nil {
		return &ComputationError{Field: "filament.price", Reason: "is missing"}
	}
	if !finite(*filament.Price) {
		return &ComputationError{Field: "filament.price", Value: *filament.Price, Reason: "is not finite"}
	}
	if filament.EfficiencyFactor != nil && !finite(*filament.EfficiencyFactor) {
		return &ComputationError{Field: "filament.efficiency_factor", Value: *filament.EfficiencyFactor, Reason: "is not finite"}
	}
	return nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
