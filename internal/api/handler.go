package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printcost-backend/config"
	"printcost-backend/internal/auth"
	"printcost-backend/internal/ledger"
	"printcost-backend/internal/mw"
	"printcost-backend/internal/pipeline"
	"printcost-backend/internal/queue"
	"printcost-backend/internal/quote"
	"printcost-backend/internal/store"
	"printcost-backend/internal/vision"
)

// Deps are the collaborators of the API handlers. Queue and Webpush may be nil.
type Deps struct {
	Store      store.Store
	Issuer     *auth.Issuer
	Pipeline   *pipeline.Orchestrator
	Ledger     *ledger.Writer
	Classifier vision.Classifier
	Reader     vision.TextReader
	Quotes     *quote.Renderer
	Cache      *mw.TenantCache
	Queue      queue.Queue
	Webpush    *webpush.Options
	Auth       config.AuthConfig
	Storage    config.StorageConfig
	Log        *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Deps
	settings *settingsFile
	log      *zap.Logger
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		Deps:     d,
		settings: &settingsFile{path: d.Storage.SettingsPath},
		log:      d.Log.Named("api"),
		now:      time.Now,
	}
}

// claims returns the caller's token claims. The auth middleware guarantees they exist.
func claims(c *gin.Context) *auth.Claims {
	cl, err := auth.FromContext(c)
	if err != nil {
		panic(err)
	}
	return cl
}

// storeError writes the response for a store error and reports whether err was non-nil.
func (h *Handler) storeError(c *gin.Context, err error, what string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error("Store operation failed", zap.String("what", what), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
	return true
}

// readUpload returns the bytes of the multipart file field, capped at the configured size.
func (h *Handler) readUpload(c *gin.Context, field string) (*multipart.FileHeader, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, err
	}
	if fh.Filename == "" {
		return nil, nil, http.ErrMissingFile
	}
	limit := int64(h.Storage.MaxUploadMB) << 20
	if limit > 0 && fh.Size > limit {
		return nil, nil, errTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return fh, data, nil
}

var errTooLarge = errors.New("file is too large")

// checkImage runs the content-safety classifier and writes the rejection when it fails.
func (h *Handler) checkImage(c *gin.Context, image []byte, rejection string) bool {
	safe, reason, err := h.Classifier.IsImageSafe(c.Request.Context(), image)
	if err != nil {
		h.log.Error("Content check failed", zap.Error(err))
	}
	if !safe {
		c.JSON(http.StatusBadRequest, gin.H{"error": rejection, "message": reason})
		return false
	}
	return true
}
