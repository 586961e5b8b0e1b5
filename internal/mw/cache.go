package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"printcost-backend/internal/auth"
	"printcost-backend/internal/metrics"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// TenantCache caches GET responses per company. Keys are prefixed with the company id so one
// tenant's writes can drop only that tenant's entries.
type TenantCache struct {
	store   *cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewTenantCache creates a cache whose entries live for ttl. m may be nil.
func NewTenantCache(ttl time.Duration, m *metrics.Metrics) *TenantCache {
	return &TenantCache{
		store:   cache.New(ttl, 2*ttl),
		ttl:     ttl,
		metrics: m,
	}
}

func tenantPrefix(companyID string) string {
	return companyID + "|"
}

// Middleware serves cached GET responses for the caller's company. It must run after Auth.
func (tc *TenantCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.FromContext(c)
		if c.Request.Method != http.MethodGet || err != nil || claims.CompanyID == "" {
			c.Next()
			return
		}

		key := tenantPrefix(claims.CompanyID) + c.Request.RequestURI
		if resp, found := tc.store.Get(key); found {
			tc.hit()
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}
		tc.miss()

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			tc.store.Set(key, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}, tc.ttl)
		}
	}
}

// Invalidate drops every cached response of companyID.
func (tc *TenantCache) Invalidate(companyID string) {
	prefix := tenantPrefix(companyID)
	for key := range tc.store.Items() {
		if strings.HasPrefix(key, prefix) {
			tc.store.Delete(key)
		}
	}
}

func (tc *TenantCache) hit() {
	if tc.metrics != nil {
		tc.metrics.CacheHits.Inc()
	}
}

func (tc *TenantCache) miss() {
	if tc.metrics != nil {
		tc.metrics.CacheMisses.Inc()
	}
}
