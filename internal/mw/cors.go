package mw

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// CORS sets the cross-origin headers. In production only allowedOrigins are echoed back;
// elsewhere every origin is allowed.
func CORS(production bool, allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if production {
			origin := c.Request.Header.Get("Origin")
			if slices.Contains(allowedOrigins, origin) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
