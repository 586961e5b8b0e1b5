// Package quote prices a set of costed parts and renders the customer quotation PDF.
package quote

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Part is one quoted item at its cost of goods sold.
type Part struct {
	Name string  `json:"name"`
	COGS float64 `json:"cogs"`
}

// CompanyDetails is the issuer block printed at the top of the quotation.
type CompanyDetails struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Contact  string `json:"contact"`
	LogoPath string `json:"logo_path"`
}

// Request is the body of a quotation request.
type Request struct {
	CustomerName    string         `json:"customer_name"`
	CustomerCompany string         `json:"customer_company"`
	Parts           []Part         `json:"parts"`
	MarginPercent   float64        `json:"margin_percent"`
	TaxRatePercent  float64        `json:"tax_rate_percent"`
	CompanyDetails  CompanyDetails `json:"company_details"`
}

// Validate checks the fields a quotation cannot be rendered without.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return errors.New("customer_name is required")
	}
	if len(r.Parts) == 0 {
		return errors.New("at least one part is required")
	}
	for i, p := range r.Parts {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("parts[%d].name is required", i)
		}
		if p.COGS < 0 {
			return fmt.Errorf("parts[%d].cogs must not be negative", i)
		}
	}
	if r.MarginPercent < 0 || r.TaxRatePercent < 0 {
		return errors.New("margin_percent and tax_rate_percent must not be negative")
	}
	return nil
}

// Totals holds the quotation sums, each rounded to two decimals.
type Totals struct {
	Subtotal decimal.Decimal
	Margin   decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals applies margin on the subtotal and tax on subtotal plus margin. Subtotal, margin
// and tax are each rounded after the exact arithmetic; Total is the sum of the rounded figures.
func ComputeTotals(r *Request) Totals {
	hundred := decimal.NewFromInt(100)

	subtotal := decimal.Zero
	for _, p := range r.Parts {
		subtotal = subtotal.Add(decimal.NewFromFloat(p.COGS))
	}
	margin := subtotal.Mul(decimal.NewFromFloat(r.MarginPercent)).Div(hundred)
	tax := subtotal.Add(margin).Mul(decimal.NewFromFloat(r.TaxRatePercent)).Div(hundred)

	t := Totals{
		Subtotal: subtotal.Round(2),
		Margin:   margin.Round(2),
		Tax:      tax.Round(2),
	}
	t.Total = t.Subtotal.Add(t.Margin).Add(t.Tax)
	return t
}

// FileName returns Quotation_<customer>_<unix>.pdf with the customer reduced to [A-Za-z0-9_].
func FileName(customer string, now time.Time) string {
	safe := unsafeNameChars.ReplaceAllString(strings.ReplaceAll(customer, " ", "_"), "")
	return fmt.Sprintf("Quotation_%s_%d.pdf", safe, now.Unix())
}
