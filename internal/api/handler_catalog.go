package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"printcost-backend/internal/model"
)

type printerRequest struct {
	ID              string   `json:"id"`
	Brand           string   `json:"brand"`
	Model           string   `json:"model"`
	SetupCost       *float64 `json:"setup_cost"`
	MaintenanceCost *float64 `json:"maintenance_cost"`
	LifetimeYears   *float64 `json:"lifetime_years"`
	PowerW          *float64 `json:"power_w"`
	PriceKWh        *float64 `json:"price_kwh"`
	BufferFactor    *float64 `json:"buffer_factor"`
	UptimePercent   *float64 `json:"uptime_percent"`
}

func (p printerRequest) validate(i int) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("printers[%d].id is required", i)
	}
	if p.BufferFactor != nil && *p.BufferFactor < 1 {
		return fmt.Errorf("printers[%d].buffer_factor must be at least 1", i)
	}
	if p.UptimePercent != nil && (*p.UptimePercent < 0 || *p.UptimePercent > 100) {
		return fmt.Errorf("printers[%d].uptime_percent must be between 0 and 100", i)
	}
	for name, v := range map[string]*float64{
		"setup_cost": p.SetupCost, "maintenance_cost": p.MaintenanceCost,
		"lifetime_years": p.LifetimeYears, "power_w": p.PowerW, "price_kwh": p.PriceKWh,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("printers[%d].%s must not be negative", i, name)
		}
	}
	return nil
}

// ListPrinters handles GET /printers.
func (h *Handler) ListPrinters(c *gin.Context) {
	printers, err := h.Store.ListPrinters(c.Request.Context(), claims(c).CompanyID)
	if h.storeError(c, err, "printers") {
		return
	}
	c.JSON(http.StatusOK, printers)
}

// ReplacePrinters handles POST /printers. The body replaces the company's whole printer list.
func (h *Handler) ReplacePrinters(c *gin.Context) {
	var req []printerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be a list of printers"})
		return
	}

	seen := make(map[string]bool, len(req))
	printers := make([]model.Printer, 0, len(req))
	for i, p := range req {
		if err := p.validate(i); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := strings.TrimSpace(p.ID)
		if seen[id] {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("duplicate printer id %q", id)})
			return
		}
		seen[id] = true
		printers = append(printers, model.Printer{
			ID:              id,
			Brand:           strings.TrimSpace(p.Brand),
			Model:           strings.TrimSpace(p.Model),
			SetupCost:       p.SetupCost,
			MaintenanceCost: p.MaintenanceCost,
			LifetimeYears:   p.LifetimeYears,
			PowerW:          p.PowerW,
			PriceKWh:        p.PriceKWh,
			BufferFactor:    p.BufferFactor,
			UptimePercent:   p.UptimePercent,
		})
	}

	companyID := claims(c).CompanyID
	if h.storeError(c, h.Store.ReplacePrinters(c.Request.Context(), companyID, printers), "printers") {
		return
	}
	h.Cache.Invalidate(companyID)
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

type filamentDetails struct {
	Price            *float64 `json:"price"`
	StockG           *float64 `json:"stock_g"`
	EfficiencyFactor *float64 `json:"efficiency_factor"`
}

// filamentCatalog is the nested material -> brand -> details shape used by the web client.
type filamentCatalog map[string]map[string]filamentDetails

// ListFilaments handles GET /filaments.
func (h *Handler) ListFilaments(c *gin.Context) {
	filaments, err := h.Store.ListFilaments(c.Request.Context(), claims(c).CompanyID)
	if h.storeError(c, err, "filaments") {
		return
	}
	resp := filamentCatalog{}
	for _, f := range filaments {
		if resp[f.Material] == nil {
			resp[f.Material] = map[string]filamentDetails{}
		}
		stock := f.StockG
		resp[f.Material][f.Brand] = filamentDetails{Price: f.Price, StockG: &stock, EfficiencyFactor: f.EfficiencyFactor}
	}
	c.JSON(http.StatusOK, resp)
}

// ReplaceFilaments handles POST /filaments. Every brand entry needs a price, a stock and an
// efficiency factor of at least 1.
func (h *Handler) ReplaceFilaments(c *gin.Context) {
	var req filamentCatalog
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be a dictionary of materials"})
		return
	}

	var filaments []model.Filament
	for material, brands := range req {
		material = strings.TrimSpace(material)
		if material == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "material names must not be empty"})
			return
		}
		for brand, d := range brands {
			where := material + "/" + brand
			switch {
			case strings.TrimSpace(brand) == "":
				c.JSON(http.StatusBadRequest, gin.H{"error": "brand names must not be empty"})
				return
			case d.Price == nil || d.StockG == nil || d.EfficiencyFactor == nil:
				c.JSON(http.StatusBadRequest, gin.H{"error": where + ": price, stock_g and efficiency_factor are required"})
				return
			case *d.Price < 0:
				c.JSON(http.StatusBadRequest, gin.H{"error": where + ": price must not be negative"})
				return
			case *d.EfficiencyFactor < 1:
				c.JSON(http.StatusBadRequest, gin.H{"error": where + ": efficiency_factor must be at least 1"})
				return
			}
			filaments = append(filaments, model.Filament{
				Material:         material,
				Brand:            strings.TrimSpace(brand),
				Price:            d.Price,
				StockG:           *d.StockG,
				EfficiencyFactor: d.EfficiencyFactor,
			})
		}
	}

	companyID := claims(c).CompanyID
	if h.storeError(c, h.Store.ReplaceFilaments(c.Request.Context(), companyID, filaments), "filaments") {
		return
	}
	h.Cache.Invalidate(companyID)
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
