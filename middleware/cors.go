package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept", "Origin", "Cache-Control", "X-Requested-With", TraceIDHeader},
		ExposeHeaders:    []string{TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORS creates a CORS middleware with default configuration
func CORS() gin.HandlerFunc {
	return CORSWithConfig(DefaultCORSConfig())
}

// CORSWithConfig creates a CORS middleware with custom configuration.
// The session cookie is only sent cross-origin with credentials, so a
// wildcard origin is echoed back as the request origin.
func CORSWithConfig(config CORSConfig) gin.HandlerFunc {
	wildcard := len(config.AllowOrigins) == 0 || lo.Contains(config.AllowOrigins, "*")
	allowHeaders := strings.Join(config.AllowHeaders, ", ")
	allowMethods := strings.Join(config.AllowMethods, ", ")
	exposeHeaders := strings.Join(config.ExposeHeaders, ", ")

	return func(c *gin.Context) {
		// Allowed origin
		reqOrigin := c.GetHeader("Origin")
		switch {
		case reqOrigin == "":
		case wildcard && config.AllowCredentials:
			c.Header("Access-Control-Allow-Origin", reqOrigin)
			c.Header("Vary", "Origin")
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		case lo.Contains(config.AllowOrigins, reqOrigin):
			c.Header("Access-Control-Allow-Origin", reqOrigin)
			c.Header("Vary", "Origin")
		}

		// Static CORS headers
		if config.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if allowHeaders != "" {
			c.Header("Access-Control-Allow-Headers", allowHeaders)
		}
		if allowMethods != "" {
			c.Header("Access-Control-Allow-Methods", allowMethods)
		}
		if exposeHeaders != "" {
			c.Header("Access-Control-Expose-Headers", exposeHeaders)
		}
		if config.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}

		// Preflight ends here
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
