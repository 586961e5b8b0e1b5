package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"printcost-backend/config"
	"printcost-backend/internal/metrics"
	"printcost-backend/internal/model"
	"printcost-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = int64(cfg.Storage.MaxUploadMB) << 20
	r.Use(gin.Recovery(), mw.RequestLogger(log, m), mw.CORS(cfg.IsProduction(), cfg.Server.AllowedOrigins))

	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", h.Health)

	api := r.Group("/")
	api.Use(mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst))

	requireAuth := mw.Auth(h.Issuer)
	caching := h.Cache.Middleware()
	admins := mw.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)

	authGroup := api.Group("/auth")
	{
		authGroup.GET("/companies", h.ListCompanies)
		authGroup.POST("/register_company", h.RegisterCompany)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", requireAuth, h.Logout)
		authGroup.POST("/create_user", requireAuth, mw.RequireCompany(), mw.RequireRole(model.RoleAdmin), h.CreateUser)
	}

	api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

	authed := api.Group("/", requireAuth)
	{
		authed.GET("/user/profile", h.GetProfile)
		authed.POST("/user/profile", h.UpdateProfile)
		authed.POST("/user/change_password", h.ChangePassword)

		authed.GET("/subscriptions", h.GetSubscription)
		authed.PUT("/subscriptions", h.PutSubscription)
		authed.DELETE("/subscriptions", h.DeleteSubscription)

		authed.GET("/download/masterlog/:year_month", h.DownloadMasterLog)
	}

	tenant := authed.Group("/", mw.RequireCompany())
	{
		tenant.POST("/user/profile_picture", h.UploadProfilePicture)
		tenant.GET("/user/profile_picture/:name", h.ServeProfilePicture)

		tenant.GET("/printers", caching, h.ListPrinters)
		tenant.POST("/printers", h.ReplacePrinters)
		tenant.GET("/filaments", caching, h.ListFilaments)
		tenant.POST("/filaments", h.ReplaceFilaments)

		tenant.POST("/ocr_upload", h.OCRUpload)
		tenant.POST("/process_image", h.ProcessImage)
		tenant.GET("/jobs/:id", h.GetJob)
		tenant.POST("/jobs/:id/retry", h.RetryJob)

		tenant.GET("/logs", h.GetLogs)
		tenant.GET("/processed_log", h.GetProcessedLog)
		tenant.GET("/images/*name", h.ServeImage)
		tenant.GET("/download/log/*name", h.DownloadLog)
		tenant.GET("/ledger/export", h.ExportLedger)
		tenant.POST("/generate_quotation", h.GenerateQuotation)
	}

	server := authed.Group("/server", admins)
	{
		server.GET("/settings", h.GetSettings)
		server.POST("/settings", h.SaveSettings)
		server.GET("/files/*subpath", h.ListShareFiles)
		server.POST("/upload/*subpath", h.UploadShareFile)
		server.GET("/download/*filepath", h.DownloadShareFile)
	}

	authed.GET("/admin/companies", mw.RequireRole(model.RoleSuperAdmin), h.ListAllCompanies)

	return r
}
