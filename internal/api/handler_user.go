package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printcost-backend/internal/auth"
)

const profilePicturesDir = "profile_pictures"

type profileResponse struct {
	Username           string  `json:"username"`
	Email              string  `json:"email"`
	PhoneNumber        string  `json:"phone_number"`
	DOB                *string `json:"dob"`
	Role               string  `json:"role"`
	CompanyID          *string `json:"company_id"`
	ProfilePicturePath string  `json:"profile_picture_path"`
	ProfilePictureURL  string  `json:"profile_picture_url,omitempty"`
}

// GetProfile handles GET /user/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	u, err := h.Store.GetUser(c.Request.Context(), claims(c).UserID)
	if h.storeError(c, err, "user") {
		return
	}

	resp := profileResponse{
		Username:           u.Username,
		Email:              u.Email,
		PhoneNumber:        u.PhoneNumber,
		Role:               string(u.Role),
		CompanyID:          u.CompanyID,
		ProfilePicturePath: u.ProfilePicturePath,
	}
	if u.DOB != nil {
		dob := u.DOB.Format(time.DateOnly)
		resp.DOB = &dob
	}
	if u.ProfilePicturePath != "" {
		resp.ProfilePictureURL = "/user/profile_picture/" + u.ProfilePicturePath
	}
	c.JSON(http.StatusOK, resp)
}

type updateProfileRequest struct {
	Username    *string `json:"username"`
	PhoneNumber *string `json:"phone_number"`
	DOB         *string `json:"dob"`
}

// UpdateProfile handles POST /user/profile. Only the fields present in the body change.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username == nil && req.PhoneNumber == nil && req.DOB == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No update information provided"})
		return
	}

	ctx := c.Request.Context()
	u, err := h.Store.GetUser(ctx, claims(c).UserID)
	if h.storeError(c, err, "user") {
		return
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username must not be empty"})
			return
		}
		u.Username = name
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.DOB != nil {
		if *req.DOB == "" {
			u.DOB = nil
		} else {
			dob, err := time.Parse(time.DateOnly, *req.DOB)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "dob must be formatted as YYYY-MM-DD"})
				return
			}
			u.DOB = &dob
		}
	}

	if h.storeError(c, h.Store.UpdateUser(ctx, u), "user") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword handles POST /user/change_password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	u, err := h.Store.GetUser(ctx, claims(c).UserID)
	if h.storeError(c, err, "user") {
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Current password is not correct"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.log.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	u.PasswordHash = hash
	if h.storeError(c, h.Store.UpdateUser(ctx, u), "user") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// UploadProfilePicture handles POST /user/profile_picture.
func (h *Handler) UploadProfilePicture(c *gin.Context) {
	cl := claims(c)
	fh, data, err := h.readUpload(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": uploadErrorMessage(err, "No file part")})
		return
	}
	if !h.checkImage(c, data, "Image upload rejected") {
		return
	}

	name := fmt.Sprintf("%s_%d%s", cl.UserID, h.now().Unix(), strings.ToLower(filepath.Ext(fh.Filename)))
	path := h.Ledger.TenantPath(cl.CompanyID, profilePicturesDir, name)
	if err := writeFile(path, data); err != nil {
		h.log.Error("Failed to save profile picture", zap.String("path", path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	ctx := c.Request.Context()
	u, err := h.Store.GetUser(ctx, cl.UserID)
	if h.storeError(c, err, "user") {
		return
	}
	u.ProfilePicturePath = name
	if h.storeError(c, h.Store.UpdateUser(ctx, u), "user") {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Profile picture updated",
		"filepath": name,
		"url":      "/user/profile_picture/" + name,
	})
}

// ServeProfilePicture handles GET /user/profile_picture/:name.
func (h *Handler) ServeProfilePicture(c *gin.Context) {
	h.serveTenantFile(c, profilePicturesDir, c.Param("name"), false)
}

func uploadErrorMessage(err error, missing string) string {
	if errors.Is(err, errTooLarge) {
		return err.Error()
	}
	return missing
}

// serveTenantFile sends name from the caller's dir, refusing anything that escapes it.
func (h *Handler) serveTenantFile(c *gin.Context, dir, name string, attachment bool) {
	name = strings.TrimPrefix(name, "/")
	base := h.Ledger.TenantPath(claims(c).CompanyID, dir)
	path, ok := confine(base, name)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file name"})
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if attachment {
		c.FileAttachment(path, filepath.Base(path))
		return
	}
	c.File(path)
}

// confine joins rel onto base and reports whether the result stays inside base.
func confine(base, rel string) (string, bool) {
	if rel == "" {
		return filepath.Clean(base), true
	}
	if filepath.IsAbs(rel) || strings.Contains(rel, `\`) {
		return "", false
	}
	path := filepath.Join(base, filepath.FromSlash(rel))
	r, err := filepath.Rel(base, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
