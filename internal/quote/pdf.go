package quote

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
)

// Renderer draws quotations as A4 PDFs.
type Renderer struct {
	currency string
	log      *zap.Logger
}

// NewRenderer returns a renderer that labels amounts with currency (for example "INR").
func NewRenderer(currency string, log *zap.Logger) *Renderer {
	return &Renderer{currency: currency, log: log.Named("quote")}
}

var logoTypes = map[string]string{".png": "PNG", ".jpg": "JPG", ".jpeg": "JPG", ".gif": "GIF"}

// Render produces the PDF bytes for r dated now.
func (rd *Renderer) Render(r *Request, now time.Time) ([]byte, error) {
	totals := ComputeTotals(r)

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	rd.drawLogo(pdf, r.CompanyDetails.LogoPath)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, tr(r.CompanyDetails.Name), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{r.CompanyDetails.Address, r.CompanyDetails.Contact} {
		if line != "" {
			pdf.CellFormat(0, 5, tr(line), "", 1, "R", false, 0, "")
		}
	}
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, "QUOTATION", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Date: "+now.Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Customer: "+r.CustomerName), "", 1, "L", false, 0, "")
	if r.CustomerCompany != "" {
		pdf.CellFormat(0, 5, tr("Company: "+r.CustomerCompany), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(15, 8, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(120, 8, "Part", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 8, "Amount ("+rd.currency+")", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for i, p := range r.Parts {
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(120, 7, tr(p.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, money(p.COGS), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	summary := []struct {
		label string
		value string
		bold  bool
	}{
		{"Subtotal", totals.Subtotal.StringFixed(2), false},
		{fmt.Sprintf("Margin (%s%%)", trimFloat(r.MarginPercent)), totals.Margin.StringFixed(2), false},
		{fmt.Sprintf("Tax (%s%%)", trimFloat(r.TaxRatePercent)), totals.Tax.StringFixed(2), false},
		{"Total (" + rd.currency + ")", totals.Total.StringFixed(2), true},
	}
	for _, s := range summary {
		style := ""
		if s.bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(135, 7, s.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(45, 7, s.value, "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render quotation: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLogo places the logo in the top-left corner. An unreadable or unsupported logo is skipped.
func (rd *Renderer) drawLogo(pdf *gofpdf.Fpdf, path string) {
	if path == "" {
		return
	}
	imgType, ok := logoTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		rd.log.Warn("Unsupported logo type, skipping", zap.String("path", path))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		rd.log.Warn("Logo unreadable, skipping", zap.String("path", path), zap.Error(err))
		return
	}

	opts := gofpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
	pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	if !pdf.Ok() {
		rd.log.Warn("Logo could not be decoded, skipping", zap.String("path", path), zap.Error(pdf.Error()))
		pdf.ClearError()
		return
	}
	pdf.ImageOptions("logo", 15, 15, 30, 0, false, opts, 0, "")
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
