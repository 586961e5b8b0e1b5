package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"printcost-backend/internal/model"
)

func (s *gormStore) ListPrinters(ctx context.Context, companyID string) ([]model.Printer, error) {
	var printers []model.Printer
	if err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("brand, model").Find(&printers).Error; err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	return printers, nil
}

func (s *gormStore) GetPrinter(ctx context.Context, companyID, id string) (*model.Printer, error) {
	var p model.Printer
	if err := s.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ReplacePrinters swaps the company's printer list for printers in one transaction.
func (s *gormStore) ReplacePrinters(ctx context.Context, companyID string, printers []model.Printer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", companyID).Delete(&model.Printer{}).Error; err != nil {
			return fmt.Errorf("failed to clear printers: %w", err)
		}
		if len(printers) == 0 {
			return nil
		}
		for i := range printers {
			printers[i].CompanyID = companyID
		}
		if err := tx.Create(&printers).Error; err != nil {
			return fmt.Errorf("failed to insert printers: %w", translate(err))
		}
		return nil
	})
}

func (s *gormStore) ListFilaments(ctx context.Context, companyID string) ([]model.Filament, error) {
	var filaments []model.Filament
	if err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("material, brand").Find(&filaments).Error; err != nil {
		return nil, fmt.Errorf("failed to list filaments: %w", err)
	}
	return filaments, nil
}

func (s *gormStore) GetFilament(ctx context.Context, companyID, material, brand string) (*model.Filament, error) {
	var f model.Filament
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND material = ? AND brand = ?", companyID, material, brand).
		First(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// ReplaceFilaments swaps the company's filament set for filaments in one transaction.
func (s *gormStore) ReplaceFilaments(ctx context.Context, companyID string, filaments []model.Filament) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", companyID).Delete(&model.Filament{}).Error; err != nil {
			return fmt.Errorf("failed to clear filaments: %w", err)
		}
		if len(filaments) == 0 {
			return nil
		}
		for i := range filaments {
			filaments[i].ID = 0
			filaments[i].CompanyID = companyID
		}
		if err := tx.Create(&filaments).Error; err != nil {
			return fmt.Errorf("failed to insert filaments: %w", translate(err))
		}
		return nil
	})
}

// ListMaterials returns the distinct material names stocked by the company.
func (s *gormStore) ListMaterials(ctx context.Context, companyID string) ([]string, error) {
	var materials []string
	err := s.db.WithContext(ctx).Model(&model.Filament{}).
		Where("company_id = ?", companyID).
		Distinct().Order("material").
		Pluck("material", &materials).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return materials, nil
}

// DecrementStock subtracts grams from the matching filament in a single UPDATE so concurrent jobs
// cannot lose each other's decrements. It reports false without error when grams is not positive,
// material or brand is empty, or no row matches. Stock is allowed to go negative.
func (s *gormStore) DecrementStock(ctx context.Context, companyID, material, brand string, grams float64) (bool, error) {
	if grams <= 0 || material == "" || brand == "" {
		return false, nil
	}

	res := s.db.WithContext(ctx).Model(&model.Filament{}).
		Where("company_id = ? AND material = ? AND brand = ?", companyID, material, brand).
		Update("stock_g", gorm.Expr("stock_g - ?", grams))
	if res.Error != nil {
		return false, fmt.Errorf("failed to decrement stock for %s/%s: %w", material, brand, res.Error)
	}
	return res.RowsAffected > 0, nil
}
