package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"printcost-backend/internal/model"
)

// AppendLedgerEntry inserts e unless an entry for e.JobID already exists, so a retried job does
// not book the same print twice.
func (s *gormStore) AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "job_id"}}, DoNothing: true}).
		Create(e).Error
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *gormStore) ListLedgerEntries(ctx context.Context, q LedgerQuery) ([]model.LedgerEntry, error) {
	tx := s.db.WithContext(ctx).Model(&model.LedgerEntry{})
	if q.CompanyID != "" {
		tx = tx.Where("company_id = ?", q.CompanyID)
	}
	if !q.From.IsZero() {
		tx = tx.Where("date >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("date < ?", q.To)
	}

	var entries []model.LedgerEntry
	if err := tx.Order("date, id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}
