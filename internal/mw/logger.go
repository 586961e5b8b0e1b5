package mw

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printcost-backend/internal/metrics"
)

// RequestLogger logs each request through log and records it in m. Unmatched routes are
// recorded under "unmatched" to keep label cardinality bounded.
func RequestLogger(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if m != nil {
			m.ObserveRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("Request failed", fields...)
		case status >= 400:
			log.Warn("Request rejected", fields...)
		default:
			log.Info("Request served", fields...)
		}
	}
}
