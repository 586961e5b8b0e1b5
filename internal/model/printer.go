package model

import "time"

// Printer is one amortizable machine. Ids are chosen by the client and are unique per company.
// Numeric attributes are nullable; nil means the operator never entered the value.
type Printer struct {
	ID              string    `gorm:"primaryKey;size:64" json:"id"`
	CompanyID       string    `gorm:"primaryKey;type:varchar(36)" json:"-"`
	Brand           string    `gorm:"size:64" json:"brand"`
	Model           string    `gorm:"size:64" json:"model"`
	SetupCost       *float64  `json:"setup_cost"`
	MaintenanceCost *float64  `json:"maintenance_cost"`
	LifetimeYears   *float64  `json:"lifetime_years"`
	PowerW          *float64  `gorm:"column:power_w" json:"power_w"`
	PriceKWh        *float64  `gorm:"column:price_kwh" json:"price_kwh"`
	BufferFactor    *float64  `json:"buffer_factor"`
	UptimePercent   *float64  `json:"uptime_percent"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

// DisplayName is the "Brand Model" label written to the ledgers.
func (p *Printer) DisplayName() string {
	return p.Brand + " " + p.Model
}
