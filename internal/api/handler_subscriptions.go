package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"printcost-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription handles the creation or replacement of the caller's subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sub := &model.PushSubscription{
		Endpoint: req.Endpoint,
		UserID:   claims(c).UserID,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if h.storeError(c, h.Store.SaveSubscription(c.Request.Context(), sub), "subscription") {
		return
	}
	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of the caller's subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.storeError(c, h.Store.DeleteSubscription(c.Request.Context(), claims(c).UserID, req.Endpoint), "subscription") {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSubscription reports whether the caller owns the subscription for ?endpoint=.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}
	sub, err := h.Store.GetSubscription(c.Request.Context(), claims(c).UserID, endpoint)
	if h.storeError(c, err, "subscription") {
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "subscribed_at": sub.CreatedAt})
}
