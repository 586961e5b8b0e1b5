package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"printcost-backend/internal/auth"
	"printcost-backend/internal/model"
)

// Auth validates the bearer token and stores its claims in the context.
func Auth(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is missing"})
			return
		}

		claims, err := issuer.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is invalid or expired"})
			return
		}
		c.Set(auth.ContextKey, claims)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.FromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is missing"})
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// RequireCompany rejects callers without a company, such as superadmins, on tenant routes.
func RequireCompany() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.FromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is missing"})
			return
		}
		if claims.CompanyID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User is not associated with a company"})
			return
		}
		c.Next()
	}
}
