package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printcost-backend/internal/auth"
	"printcost-backend/internal/model"
	"printcost-backend/internal/store"
)

type companyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListCompanies handles GET /auth/companies.
func (h *Handler) ListCompanies(c *gin.Context) {
	companies, err := h.Store.ListCompanies(c.Request.Context())
	if h.storeError(c, err, "companies") {
		return
	}
	resp := make([]companyResponse, len(companies))
	for i, co := range companies {
		resp[i] = companyResponse{ID: co.ID, Name: co.Name}
	}
	c.JSON(http.StatusOK, resp)
}

type registerCompanyRequest struct {
	CompanyName   string `json:"company_name" binding:"required"`
	AdminUsername string `json:"admin_username" binding:"required"`
	AdminEmail    string `json:"admin_email" binding:"required,email"`
	AdminPassword string `json:"admin_password" binding:"required,min=8"`
}

// RegisterCompany handles POST /auth/register_company.
func (h *Handler) RegisterCompany(c *gin.Context) {
	var req registerCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.AdminPassword)
	if err != nil {
		h.log.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	admin := &model.User{
		Username:     strings.TrimSpace(req.AdminUsername),
		Email:        strings.TrimSpace(req.AdminEmail),
		PasswordHash: hash,
	}
	company, err := h.Store.RegisterCompany(c.Request.Context(), req.CompanyName, admin)
	if h.storeError(c, err, "company") {
		return
	}

	h.log.Info("Company registered", zap.String("company_id", company.ID), zap.String("name", company.Name))
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Company '" + company.Name + "' created successfully.",
		"company_id": company.ID,
	})
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Store.FindUserByLogin(c.Request.Context(), req.Identifier)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.storeError(c, err, "user")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Issuer.Generate(user)
	if err != nil {
		h.log.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	resp := gin.H{"token": token}

	if req.RememberMe {
		remember, hash, err := auth.NewRememberToken()
		if err == nil {
			err = h.Store.CreateAuthToken(c.Request.Context(), &model.AuthToken{
				UserID:    user.ID,
				TokenHash: hash,
				ExpiresAt: h.now().Add(h.Auth.RememberTTL),
			})
		}
		if err != nil {
			h.log.Error("Could not save remember token", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			resp["remember_token"] = remember
		}
	}
	c.JSON(http.StatusOK, resp)
}

type rememberRequest struct {
	RememberToken string `json:"remember_token"`
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req rememberRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RememberToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Remember token is missing"})
		return
	}

	ctx := c.Request.Context()
	hash := auth.HashRememberToken(req.RememberToken)
	tok, err := h.Store.FindAuthToken(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired remember token"})
		return
	}
	if h.storeError(c, err, "remember token") {
		return
	}
	if tok.Expired(h.now()) {
		if err := h.Store.DeleteAuthToken(ctx, hash); err != nil {
			h.log.Warn("Failed to delete expired remember token", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Remember token has expired"})
		return
	}

	user, err := h.Store.GetUser(ctx, tok.UserID)
	if h.storeError(c, err, "user") {
		return
	}
	token, err := h.Issuer.Generate(user)
	if err != nil {
		h.log.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout handles POST /auth/logout. The remember token is revoked when given and owned by the
// caller.
func (h *Handler) Logout(c *gin.Context) {
	var req rememberRequest
	_ = c.ShouldBindJSON(&req)

	if req.RememberToken != "" {
		ctx := c.Request.Context()
		hash := auth.HashRememberToken(req.RememberToken)
		tok, err := h.Store.FindAuthToken(ctx, hash)
		if err == nil && tok.UserID == claims(c).UserID {
			if err := h.Store.DeleteAuthToken(ctx, hash); err != nil {
				h.log.Warn("Failed to delete remember token", zap.Error(err))
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

type createUserRequest struct {
	Username string     `json:"username" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     model.Role `json:"role" binding:"required,oneof=admin user"`
}

// CreateUser handles POST /auth/create_user. The user joins the caller's company.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	companyID := claims(c).CompanyID
	u := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		CompanyID:    &companyID,
		Role:         req.Role,
	}
	if h.storeError(c, h.Store.CreateUser(c.Request.Context(), u), "user") {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User '" + u.Username + "' created successfully.", "id": u.ID})
}
