package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListAllCompanies handles GET /admin/companies for superadmins.
func (h *Handler) ListAllCompanies(c *gin.Context) {
	companies, err := h.Store.ListCompanies(c.Request.Context())
	if h.storeError(c, err, "companies") {
		return
	}
	c.JSON(http.StatusOK, companies)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	status := http.StatusOK

	sqlDB, err := h.Store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		resp["status"], resp["database"] = "degraded", err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp["database"] = "ok"
	}

	if h.Queue != nil {
		st := h.Queue.Stats()
		resp["queue"] = gin.H{
			"backend":        st.Backend,
			"workers":        st.Workers,
			"active_workers": st.ActiveWorkers,
			"enqueued":       st.Enqueued,
			"completed":      st.Completed,
			"failed":         st.Failed,
			"success_rate":   st.SuccessRate(),
		}
	}
	c.JSON(status, resp)
}
