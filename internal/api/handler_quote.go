package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printcost-backend/internal/quote"
)

const uploadsDir = "uploads"

var unsafeUploadChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// safeUploadName reduces a client file name to a single harmless path element.
func safeUploadName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeUploadChars.ReplaceAllString(strings.ReplaceAll(name, " ", "_"), "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "upload"
	}
	return name
}

// GenerateQuotation handles POST /generate_quotation and answers with the PDF as an attachment.
func (h *Handler) GenerateQuotation(c *gin.Context) {
	var req quote.Request
	raw, ok := c.GetPostForm("json")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing 'json' field in form data"})
		return
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing 'json' field in form data", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing 'json' field in form data", "details": err.Error()})
		return
	}
	// A client-supplied path is never trusted.
	req.CompanyDetails.LogoPath = ""

	if _, err := c.FormFile("logo"); err == nil {
		fh, logo, err := h.readUpload(c, "logo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": uploadErrorMessage(err, "Invalid logo upload")})
			return
		}
		if !h.checkImage(c, logo, "Logo upload rejected") {
			return
		}
		path := h.Ledger.TenantPath(claims(c).CompanyID, uploadsDir, safeUploadName(fh.Filename))
		if err := writeFile(path, logo); err != nil {
			h.log.Error("Failed to save logo", zap.String("path", path), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
			return
		}
		req.CompanyDetails.LogoPath = path
	}

	now := h.now()
	pdf, err := h.Quotes.Render(&req, now)
	if err != nil {
		h.log.Error("Failed to render quotation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render quotation"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+quote.FileName(req.CustomerName, now)+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
