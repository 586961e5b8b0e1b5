package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is a tenant. Every catalog row, job and ledger entry belongs to exactly one company.
type Company struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Printers  []Printer  `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"-"`
	Filaments []Filament `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a random id when none was set.
func (c *Company) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
