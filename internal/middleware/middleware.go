package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context keys set by the middleware
const (
	KeyRequestID    = "request_id"
	KeyOperatorID   = "operator_id"
	KeyOperatorName = "operator_name"
)

// Headers read or written by the middleware. The operator headers are set by
// the gateway after authentication.
const (
	HeaderRequestID    = "X-Request-ID"
	HeaderOperatorID   = "X-Operator-ID"
	HeaderOperatorName = "X-Operator-Name"
)

const maxRequestIDLen = 64

// Logger writes one access line per request with the matched route.
// Requests to skipPaths are not logged.
func Logger(logger *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(KeyRequestID)),
			zap.String("ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if branch := c.Param("branch_id"); branch != "" {
			fields = append(fields, zap.String("branch_id", branch))
		}
		if id := c.GetString(KeyOperatorID); id != "" {
			fields = append(fields, zap.String("operator_id", id), zap.String("operator_name", c.GetString(KeyOperatorName)))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("supply api request failed", fields...)
		case status == http.StatusConflict:
			// rejected transition or insufficient stock
			logger.Info("supply api request rejected", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("supply api client error", fields...)
		default:
			logger.Info("supply api request", fields...)
		}
	}
}

// CORS answers cross-origin requests from the configured origins. An empty
// list or "*" allows any origin without credentials; otherwise a matching
// Origin is echoed back with credentials allowed.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	allowHeaders := strings.Join([]string{
		"Content-Type", "Accept", "Authorization", "Cache-Control",
		HeaderRequestID, HeaderOperatorID, HeaderOperatorName,
	}, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		switch {
		case allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			h.Add("Vary", "Origin")
			if _, ok := allowed[origin]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		h.Set("Access-Control-Expose-Headers", HeaderRequestID)

		if c.Request.Method == http.MethodOptions {
			if h.Get("Access-Control-Allow-Origin") == "" {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID propagates X-Request-ID from the caller when it is a plausible
// token and generates a fresh one otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}
		c.Set(KeyRequestID, requestID)
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

// Operator reads the acting user from the gateway headers
func Operator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderOperatorID)); id != "" {
			c.Set(KeyOperatorID, id)
		}
		if name := strings.TrimSpace(c.GetHeader(HeaderOperatorName)); name != "" {
			c.Set(KeyOperatorName, name)
		}
		c.Next()
	}
}
