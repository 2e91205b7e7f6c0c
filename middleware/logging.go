package middleware

import (
	"time"

	"github.com/donnyesq/gamble/logging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// AddressCookie is the session cookie carrying the mirrored wallet address.
const AddressCookie = "address"

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	// SkipPaths are never logged (health probes).
	SkipPaths []string
	// StreamPaths hold a connection open for minutes; their completion is
	// logged at debug so a closing browser tab is not reported as traffic.
	StreamPaths []string
}

// Logging creates a logging middleware for the snapshot API
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	return LoggingWithConfig(logger, LoggingConfig{
		SkipPaths:   []string{"/health", "/api/health"},
		StreamPaths: []string{"/api/state/updates", "/api/state/updates/ws"},
	})
}

// LoggingWithConfig logs one line per request. It prefers the request-scoped
// logger installed by TraceID and falls back to logger with the trace id.
func LoggingWithConfig(logger zerolog.Logger, config LoggingConfig) gin.HandlerFunc {
	skip := lo.SliceToMap(config.SkipPaths, func(p string) (string, struct{}) { return p, struct{}{} })
	streams := lo.SliceToMap(config.StreamPaths, func(p string) (string, struct{}) { return p, struct{}{} })

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		startTime := time.Now()

		// Request logger: trace id from TraceID, wallet from the session cookie
		reqLogger := requestLogger(c, logger)
		if address, err := c.Cookie(AddressCookie); err == nil && address != "" {
			reqLogger = logging.WithAddress(reqLogger, address)
		}
		reqLogger = reqLogger.With().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Logger()

		reqLogger.Debug().Str("user_agent", c.Request.UserAgent()).Msg("Request started")

		c.Next()

		// Level follows the status; long-lived streams stay at debug
		status := c.Writer.Status()
		_, stream := streams[path]
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = reqLogger.Error()
		case status >= 400:
			event = reqLogger.Warn()
		case stream:
			event = reqLogger.Debug()
		default:
			event = reqLogger.Info()
		}

		event.
			Int("status", status).
			Dur("duration", time.Since(startTime)).
			Int("response_size", c.Writer.Size()).
			Msg("Request completed")

		for _, err := range c.Errors {
			reqLogger.Error().
				Err(err.Err).
				Uint64("type", uint64(err.Type)).
				Msg("Request error")
		}
	}
}

func requestLogger(c *gin.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return logging.WithTraceID(fallback, GetTraceID(c))
}
