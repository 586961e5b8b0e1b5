package ledger

import (
	"time"

	"printcost-backend/internal/model"
)

// Row is one costed print as written to the workbooks.
type Row struct {
	Date           time.Time
	PartNumber     string
	Filename       string
	Material       string
	FilamentCostKg float64
	Grams          float64
	Hours          float64
	LabourMinutes  float64
	UserCOGS       float64
	DefaultCOGS    float64
	SourceLink     string
}

// RowFromEntry converts a stored ledger entry.
func RowFromEntry(e model.LedgerEntry) Row {
	return Row{
		Date:           e.Date,
		PartNumber:     e.PartNumber,
		Filename:       e.Filename,
		Material:       e.Material,
		FilamentCostKg: e.FilamentCostKg,
		Grams:          e.Grams,
		Hours:          e.Hours,
		LabourMinutes:  e.LabourMinutes,
		UserCOGS:       e.UserCOGS,
		DefaultCOGS:    e.DefaultCOGS,
		SourceLink:     e.SourceLink,
	}
}

// cells lays out r in header order behind the sequence number.
func (r Row) cells(seq int) []interface{} {
	return []interface{}{
		seq,
		r.Date.Format("2006-01-02"),
		r.PartNumber,
		r.Filename,
		r.Material,
		r.FilamentCostKg,
		r.Grams,
		r.Hours,
		r.LabourMinutes,
		r.UserCOGS,
		r.DefaultCOGS,
		r.SourceLink,
	}
}
