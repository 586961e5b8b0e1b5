package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Log"

// newWorkbook creates an empty workbook whose single sheet starts with a bold header row.
func newWorkbook(headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		f.Close()
		return nil, err
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &row); err != nil {
		f.Close()
		return nil, err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// openOrCreate opens the workbook at path, creating a fresh one with headers when absent.
func openOrCreate(path string, headers []string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return newWorkbook(headers)
}

// appendRow adds values below the last used row of the first sheet and returns the row's
// sequence number (1 for the first row under the header).
func appendRow(f *excelize.File, values func(seq int) []interface{}) (int, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, err
	}
	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	seq := next - 1

	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return 0, err
	}
	vals := values(seq)
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return 0, err
	}
	return seq, nil
}
