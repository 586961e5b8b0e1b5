package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printcost-backend/internal/pipeline"
	"printcost-backend/internal/store"
	"printcost-backend/internal/vision"
)

// OCRUpload handles POST /ocr_upload: the image is safety-checked, read by the OCR service and
// matched against the company's materials and printers.
func (h *Handler) OCRUpload(c *gin.Context) {
	_, image, err := h.readUpload(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": uploadErrorMessage(err, "No image file provided")})
		return
	}
	if !h.checkImage(c, image, "Image upload rejected") {
		return
	}

	ctx := c.Request.Context()
	regions, err := h.Reader.ReadText(ctx, image)
	if errors.Is(err, vision.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OCR model not available."})
		return
	}
	if err != nil {
		h.log.Error("Text extraction failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Text extraction failed"})
		return
	}

	companyID := claims(c).CompanyID
	materials, err := h.Store.ListMaterials(ctx, companyID)
	if h.storeError(c, err, "materials") {
		return
	}
	printers, err := h.Store.ListPrinters(ctx, companyID)
	if h.storeError(c, err, "printers") {
		return
	}
	c.JSON(http.StatusOK, vision.Extract(regions, materials, printers))
}

// ProcessImage handles POST /process_image. The upload is validated and queued; the outcome is
// reported through GET /jobs/:id.
func (h *Handler) ProcessImage(c *gin.Context) {
	fh, image, err := h.readUpload(c, "image")
	raw, hasJSON := c.GetPostForm("json")
	if err != nil || !hasJSON {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image or data"})
		return
	}

	payload, err := pipeline.DecodePayload([]byte(raw))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing 'json' field in form data", "details": err.Error()})
		return
	}
	if !h.checkImage(c, image, "Image upload rejected") {
		return
	}

	cl := claims(c)
	job, err := h.Pipeline.Submit(c.Request.Context(), pipeline.Submission{
		CompanyID:        cl.CompanyID,
		UserID:           cl.UserID,
		OriginalFilename: fh.Filename,
		Image:            image,
		Payload:          payload,
	})
	if err != nil {
		h.log.Error("Failed to queue job", zap.String("company_id", cl.CompanyID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image processing could not be queued"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "processing",
		"message": "Image processing has been queued.",
		"task_id": job.ID,
	})
}

// GetJob handles GET /jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Store.GetJob(c.Request.Context(), c.Param("id"))
	if err == nil && job.CompanyID != claims(c).CompanyID {
		err = store.ErrNotFound
	}
	if h.storeError(c, err, "job") {
		return
	}
	c.JSON(http.StatusOK, job)
}

// RetryJob handles POST /jobs/:id/retry.
func (h *Handler) RetryJob(c *gin.Context) {
	job, err := h.Pipeline.Retry(c.Request.Context(), claims(c).CompanyID, c.Param("id"))
	if errors.Is(err, pipeline.ErrNotRetryable) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		h.log.Error("Failed to retry job", zap.String("job_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Job could not be re-queued"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "processing", "task_id": job.ID, "resume_after": job.LastStep})
}
