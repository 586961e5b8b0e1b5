package model

import "time"

// Filament is a spool type held by a company. StockG is only changed through the stock ledger
// and may go negative.
type Filament struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	CompanyID        string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_filament_company_material_brand" json:"-"`
	Material         string    `gorm:"size:50;not null;uniqueIndex:idx_filament_company_material_brand" json:"material"`
	Brand            string    `gorm:"size:50;not null;uniqueIndex:idx_filament_company_material_brand" json:"brand"`
	Price            *float64  `json:"price"`
	StockG           float64   `gorm:"column:stock_g;not null;default:0" json:"stock_g"`
	EfficiencyFactor *float64  `json:"efficiency_factor"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}
