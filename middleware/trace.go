package middleware

import (
	"github.com/donnyesq/gamble/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// TraceIDKey is the key used to store trace ID in context
	TraceIDKey = "trace_id"
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
)

// TraceID assigns each request a trace id, echoes it in the response header
// and attaches a request-scoped logger to the request context.
func TraceID(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Reuse the caller's trace id so UI and server logs line up
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		// Handlers log through zerolog.Ctx(c.Request.Context())
		reqLogger := logging.WithTraceID(logger, traceID)
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))

		c.Next()
	}
}

// GetTraceID extracts trace ID from gin context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if str, ok := traceID.(string); ok {
			return str
		}
	}
	return ""
}

// Logger returns the request-scoped logger set by TraceID, or a disabled
// logger if the middleware did not run.
func Logger(c *gin.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request.Context())
}
