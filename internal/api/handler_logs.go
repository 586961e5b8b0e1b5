package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printcost-backend/internal/ledger"
	"printcost-backend/internal/model"
	"printcost-backend/internal/pipeline"
	"printcost-backend/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// rawJSONOrEmpty writes raw, or an empty array when the log is missing or unreadable.
func rawJSONOrEmpty(c *gin.Context, raw []byte) {
	if raw == nil {
		c.JSON(http.StatusOK, []interface{}{})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// GetLogs handles GET /logs.
func (h *Handler) GetLogs(c *gin.Context) {
	rawJSONOrEmpty(c, h.Ledger.AppLogs(claims(c).CompanyID))
}

// GetProcessedLog handles GET /processed_log.
func (h *Handler) GetProcessedLog(c *gin.Context) {
	rawJSONOrEmpty(c, h.Ledger.ProcessedLog(claims(c).CompanyID))
}

// ServeImage handles GET /images/*name.
func (h *Handler) ServeImage(c *gin.Context) {
	h.serveTenantFile(c, pipeline.ImagesDir, c.Param("name"), false)
}

// DownloadLog handles GET /download/log/*name.
func (h *Handler) DownloadLog(c *gin.Context) {
	h.serveTenantFile(c, ledger.WorkbookDir, c.Param("name"), true)
}

// DownloadMasterLog handles GET /download/masterlog/:year_month. Superadmins get the shared
// master workbook; everyone else gets that month rendered from their own company's ledger.
func (h *Handler) DownloadMasterLog(c *gin.Context) {
	yearMonth := c.Param("year_month")
	from, to, err := ledger.MonthBounds(yearMonth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := fmt.Sprintf("master_log_%s.xlsx", from.Format("01"))

	cl := claims(c)
	if cl.Role == model.RoleSuperAdmin {
		path, err := h.Ledger.MasterPath(yearMonth)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.FileAttachment(path, name)
		return
	}
	if cl.CompanyID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "User is not associated with a company"})
		return
	}
	h.exportLedger(c, store.LedgerQuery{CompanyID: cl.CompanyID, From: from, To: to}, name)
}

// ExportLedger handles GET /ledger/export?from=YYYY-MM-DD&to=YYYY-MM-DD. Both bounds are
// optional; to is inclusive.
func (h *Handler) ExportLedger(c *gin.Context) {
	q := store.LedgerQuery{CompanyID: claims(c).CompanyID}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be formatted as YYYY-MM-DD"})
			return
		}
		q.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be formatted as YYYY-MM-DD"})
			return
		}
		q.To = t.AddDate(0, 0, 1)
	}
	h.exportLedger(c, q, fmt.Sprintf("ledger_%s.xlsx", h.now().Format("20060102")))
}

func (h *Handler) exportLedger(c *gin.Context, q store.LedgerQuery, filename string) {
	entries, err := h.Store.ListLedgerEntries(c.Request.Context(), q)
	if h.storeError(c, err, "ledger") {
		return
	}
	rows := make([]ledger.Row, len(entries))
	for i, e := range entries {
		rows[i] = ledger.RowFromEntry(e)
	}
	data, err := ledger.ExportWorkbook(h.Ledger.Headers(), rows, nil)
	if err != nil {
		h.log.Error("Failed to render ledger export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render workbook"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
