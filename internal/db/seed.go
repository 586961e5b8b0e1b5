package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"printcost-backend/config"
	"printcost-backend/internal/auth"
	"printcost-backend/internal/model"
)

// SeedStats counts the rows a seed run inserted.
type SeedStats struct {
	Inserts int
}

func ptr(v float64) *float64 { return &v }

// defaultPrinter is the reference machine every fresh workshop starts with.
func defaultPrinter(companyID string) model.Printer {
	return model.Printer{
		ID:              "bambu-p1s",
		CompanyID:       companyID,
		Brand:           "Bambu Lab",
		Model:           "P1S",
		SetupCost:       ptr(70000),
		MaintenanceCost: ptr(5000),
		LifetimeYears:   ptr(5),
		PowerW:          ptr(300),
		PriceKWh:        ptr(8.0),
		BufferFactor:    ptr(1.0),
		UptimePercent:   ptr(50),
	}
}

func defaultFilaments(companyID string) []model.Filament {
	return []model.Filament{
		{CompanyID: companyID, Material: "PLA", Brand: "Generic", Price: ptr(1200), StockG: 1000, EfficiencyFactor: ptr(1.0)},
		{CompanyID: companyID, Material: "PETG", Brand: "Generic", Price: ptr(1400), StockG: 1000, EfficiencyFactor: ptr(1.0)},
	}
}

// Seed creates the default workshop, its admin and its starter catalog. Existing rows are left
// untouched, so running it on every start is safe. The admin is skipped when no password is set.
func Seed(ctx context.Context, db *gorm.DB, cfg *config.DatabaseConfig, log *zap.Logger) (SeedStats, error) {
	var stats SeedStats

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company := model.Company{Name: cfg.SeedCompany}
		created, err := createIfMissing(tx, tx.Model(&model.Company{}).Where("name = ?", company.Name), &company)
		if err != nil {
			return fmt.Errorf("seed company: %w", err)
		}
		if created {
			stats.Inserts++
		} else if err := tx.Where("name = ?", company.Name).First(&company).Error; err != nil {
			return fmt.Errorf("load seed company: %w", err)
		}

		if cfg.SeedAdminPassword != "" {
			if err := seedAdmin(tx, cfg, company.ID, &stats); err != nil {
				return err
			}
		}

		printer := defaultPrinter(company.ID)
		created, err = createIfMissing(tx,
			tx.Model(&model.Printer{}).Where("company_id = ? AND id = ?", company.ID, printer.ID), &printer)
		if err != nil {
			return fmt.Errorf("seed printer: %w", err)
		}
		if created {
			stats.Inserts++
		}

		for _, f := range defaultFilaments(company.ID) {
			f := f
			created, err = createIfMissing(tx, tx.Model(&model.Filament{}).
				Where("company_id = ? AND material = ? AND brand = ?", company.ID, f.Material, f.Brand), &f)
			if err != nil {
				return fmt.Errorf("seed filament %s/%s: %w", f.Material, f.Brand, err)
			}
			if created {
				stats.Inserts++
			}
		}
		return nil
	})
	if err != nil {
		return SeedStats{}, err
	}

	if stats.Inserts > 0 {
		log.Info("Seeded default workshop", zap.String("company", cfg.SeedCompany), zap.Int("inserts", stats.Inserts))
	}
	return stats, nil
}

func createIfMissing(tx *gorm.DB, query *gorm.DB, row interface{}) (bool, error) {
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := tx.Create(row).Error; err != nil {
		return false, err
	}
	return true, nil
}

func seedAdmin(tx *gorm.DB, cfg *config.DatabaseConfig, companyID string, stats *SeedStats) error {
	var n int64
	if err := tx.Model(&model.User{}).Where("email = ?", cfg.SeedAdminEmail).Count(&n).Error; err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}
	admin := model.User{
		Username:     cfg.SeedAdminUsername,
		Email:        cfg.SeedAdminEmail,
		PasswordHash: hash,
		CompanyID:    &companyID,
		Role:         model.RoleAdmin,
	}
	if err := tx.Create(&admin).Error; err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}
