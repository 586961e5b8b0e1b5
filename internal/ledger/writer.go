// Package ledger writes the append-only cost logs: a workbook per tenant, a monthly master
// workbook shared by all tenants, and the tenant's JSON app and processed logs.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// WorkbookDir is the tenant directory holding the tenant workbook.
const WorkbookDir = "Excel_Logs"

const (
	tenantWorkbookName = "ledger.xlsx"
	masterDir          = "_master"
	appLogName         = "app_logs.json"
	processedLogName   = "processed_log.json"
	companyHeader      = "Company"
)

// ErrBadMonth is returned for a master-log month that is not YYYY_MM.
var ErrBadMonth = errors.New("month must look like YYYY_MM")

var yearMonthRe = regexp.MustCompile(`^(\d{4})_(0[1-9]|1[0-2])$`)

// AppLogRecord is one entry in a tenant's app_logs.json.
type AppLogRecord struct {
	Timestamp        time.Time `json:"timestamp"`
	JobID            string    `json:"job_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Image            string    `json:"image"`
	Printer          string    `json:"printer"`
	Material         string    `json:"material"`
	Brand            string    `json:"brand"`
	Grams            float64   `json:"filament_g"`
	Time             string    `json:"time"`
	LabourMinutes    float64   `json:"labour_minutes"`
	UserCOGS         float64   `json:"user_cogs"`
	DefaultCOGS      float64   `json:"default_cogs"`
	Workbook         string    `json:"workbook"`
}

// Writer appends to the file logs under a data directory laid out as
// <data>/<company id>/... and <data>/_master/<YYYY_MM>/....
type Writer struct {
	dataDir string
	headers []string
	locks   *keyedMutex
	log     *zap.Logger
}

// NewWriter returns a Writer rooted at dataDir that writes headers as the first row of every
// new workbook.
func NewWriter(dataDir string, headers []string, log *zap.Logger) *Writer {
	return &Writer{
		dataDir: dataDir,
		headers: append([]string(nil), headers...),
		locks:   newKeyedMutex(),
		log:     log.Named("ledger"),
	}
}

// Headers returns the tenant workbook columns.
func (w *Writer) Headers() []string {
	return append([]string(nil), w.headers...)
}

// TenantPath joins parts under the company's data directory.
func (w *Writer) TenantPath(companyID string, parts ...string) string {
	return filepath.Join(append([]string{w.dataDir, companyID}, parts...)...)
}

// TenantWorkbookPath is the company's cumulative workbook.
func (w *Writer) TenantWorkbookPath(companyID string) string {
	return w.TenantPath(companyID, WorkbookDir, tenantWorkbookName)
}

// MasterPath returns the master workbook for yearMonth (YYYY_MM).
func (w *Writer) MasterPath(yearMonth string) (string, error) {
	m := yearMonthRe.FindStringSubmatch(yearMonth)
	if m == nil {
		return "", ErrBadMonth
	}
	return filepath.Join(w.dataDir, masterDir, yearMonth, "master_log_"+m[2]+".xlsx"), nil
}

// MonthBounds returns the half-open range [start, end) covered by yearMonth.
func MonthBounds(yearMonth string) (time.Time, time.Time, error) {
	if !yearMonthRe.MatchString(yearMonth) {
		return time.Time{}, time.Time{}, ErrBadMonth
	}
	start, err := time.Parse("2006_01", yearMonth)
	if err != nil {
		return time.Time{}, time.Time{}, ErrBadMonth
	}
	return start, start.AddDate(0, 1, 0), nil
}

// AppendTenantRow appends r to the company workbook and returns its path.
func (w *Writer) AppendTenantRow(companyID string, r Row) (string, error) {
	path := w.TenantWorkbookPath(companyID)
	if err := w.appendWorkbookRow(path, w.headers, r.cells); err != nil {
		return "", err
	}
	return path, nil
}

// AppendMasterRow appends r plus the company name to the master workbook for r's month.
func (w *Writer) AppendMasterRow(companyName string, r Row) (string, error) {
	path, err := w.MasterPath(r.Date.Format("2006_01"))
	if err != nil {
		return "", err
	}
	headers := append(w.Headers(), companyHeader)
	err = w.appendWorkbookRow(path, headers, func(seq int) []interface{} {
		return append(r.cells(seq), companyName)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) appendWorkbookRow(path string, headers []string, values func(int) []interface{}) error {
	unlock := w.locks.Lock(path)
	defer unlock()

	f, err := openOrCreate(path, headers)
	if err != nil {
		return err
	}
	defer f.Close()

	seq, err := appendRow(f, values)
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	w.log.Debug("Workbook row appended", zap.String("path", path), zap.Int("seq", seq))
	return nil
}

// AppendAppLog adds rec to the company's app_logs.json array.
func (w *Writer) AppendAppLog(companyID string, rec AppLogRecord) error {
	path := w.TenantPath(companyID, appLogName)
	unlock := w.locks.Lock(path)
	defer unlock()

	var records []json.RawMessage
	if err := readJSON(path, &records); err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return writeJSON(path, append(records, raw))
}

// MarkProcessed records filename as completed in processed_log.json.
func (w *Writer) MarkProcessed(companyID, filename string) error {
	path := w.TenantPath(companyID, processedLogName)
	unlock := w.locks.Lock(path)
	defer unlock()

	processed := map[string]string{}
	if err := readJSON(path, &processed); err != nil {
		return err
	}
	if processed == nil {
		processed = map[string]string{}
	}
	processed[filename] = "completed"
	return writeJSON(path, processed)
}

// AppLogs returns the raw app log, or nil when the file is missing or unreadable.
func (w *Writer) AppLogs(companyID string) json.RawMessage {
	return w.readRaw(w.TenantPath(companyID, appLogName))
}

// ProcessedLog returns the raw processed log, or nil when the file is missing or unreadable.
func (w *Writer) ProcessedLog(companyID string) json.RawMessage {
	return w.readRaw(w.TenantPath(companyID, processedLogName))
}

func (w *Writer) readRaw(path string) json.RawMessage {
	unlock := w.locks.Lock(path)
	defer unlock()

	b, err := os.ReadFile(path)
	if err != nil || !json.Valid(b) {
		return nil
	}
	return b
}

// ExportWorkbook renders rows into a standalone workbook. A non-nil companies slice, parallel to
// rows, adds a Company column.
func ExportWorkbook(headers []string, rows []Row, companies []string) ([]byte, error) {
	cols := append([]string(nil), headers...)
	if companies != nil {
		if len(companies) != len(rows) {
			return nil, fmt.Errorf("export: %d company names for %d rows", len(companies), len(rows))
		}
		cols = append(cols, companyHeader)
	}
	f, err := newWorkbook(cols)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i, r := range rows {
		vals := r.cells(i + 1)
		if companies != nil {
			vals = append(vals, companies[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadRows returns every row of the first sheet of the workbook at path, header included.
func ReadRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
