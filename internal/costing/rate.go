package costing

import (
	"errors"
	"math"

	"printcost-backend/internal/model"
)

const (
	// DefaultUptimePercent is assumed when a printer has no uptime recorded.
	DefaultUptimePercent = 50.0
	hoursPerYear         = 365 * 24
)

// ErrRateUnavailable means the printer lacks the attributes needed to amortize it, or its
// lifetime hours come out as zero. A zero rate returned alongside it is not a real cost.
var ErrRateUnavailable = errors.New("printer hourly rate unavailable")

// HourlyRate amortizes a printer's capital and maintenance cost over its productive lifetime and
// adds the electricity cost of one hour of printing.
func HourlyRate(p *model.Printer) (float64, error) {
	if p == nil || p.SetupCost == nil || p.MaintenanceCost == nil || p.LifetimeYears == nil ||
		p.PowerW == nil || p.PriceKWh == nil {
		return 0, ErrRateUnavailable
	}

	uptime := DefaultUptimePercent
	if p.UptimePercent != nil {
		uptime = *p.UptimePercent
	}

	lifetime := *p.LifetimeYears
	totalCost := *p.SetupCost + *p.MaintenanceCost*lifetime
	totalHours := lifetime * hoursPerYear * (uptime / 100)
	if totalHours <= 0 {
		return 0, ErrRateUnavailable
	}

	energy := *p.PowerW / 1000 * *p.PriceKWh
	rate := totalCost/totalHours + energy
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, ErrRateUnavailable
	}
	return rate, nil
}

// Rate is HourlyRate with the error folded into a zero result.
func Rate(p *model.Printer) float64 {
	rate, err := HourlyRate(p)
	if err != nil {
		return 0
	}
	return rate
}
