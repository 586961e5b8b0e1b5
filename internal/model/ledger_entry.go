package model

import (
	"time"

	"gorm.io/datatypes"
)

// LedgerEntry is one costed print. The table is the system of record; workbooks are views of it.
// A job contributes at most one entry.
type LedgerEntry struct {
	ID             int64          `gorm:"primaryKey" json:"id"`
	CompanyID      string         `gorm:"type:varchar(36);index:idx_ledger_company_date;not null" json:"-"`
	JobID          string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"job_id"`
	Date           time.Time      `gorm:"index:idx_ledger_company_date;not null" json:"date"`
	PartNumber     string         `gorm:"size:128" json:"part_number"`
	Filename       string         `gorm:"size:256" json:"filename"`
	Material       string         `gorm:"size:50" json:"material"`
	FilamentCostKg float64        `json:"filament_cost_kg"`
	Grams          float64        `json:"grams"`
	Hours          float64        `json:"hours"`
	LabourMinutes  float64        `json:"labour_minutes"`
	UserCOGS       float64        `gorm:"column:user_cogs" json:"user_cogs"`
	DefaultCOGS    float64        `gorm:"column:default_cogs" json:"default_cogs"`
	SourceLink     string         `gorm:"size:512" json:"source_link"`
	Record         datatypes.JSON `json:"record"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}
