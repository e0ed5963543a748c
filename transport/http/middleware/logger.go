package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabonline/hartshorn/log"
)

type LoggerConfig struct {
	// Enable logging of request headers
	HeaderEnabled  bool
	HandlerEnabled bool
	// Paths that are served without a log line, e.g. health checks
	SkipPaths []string
}

func GinLogger(l *log.Logger) gin.HandlerFunc {
	return GinLoggerWithConfig(l, LoggerConfig{})
}

func GinLoggerWithConfig(l *log.Logger, config LoggerConfig) gin.HandlerFunc {
	if l == nil {
		l = log.Global().Component("http")
	}
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}
		duration := time.Since(start)

		event := l.Info().
			Str("method", c.Request.Method).
			Str("uri", c.Request.RequestURI).
			Dur("duration", duration).
			Int("status", c.Writer.Status()).
			Str("client_ip", c.ClientIP())

		if requestId := c.Request.Header.Get("X-Request-Id"); requestId != "" {
			event = event.Str("request_id", requestId)
		}

		if config.HeaderEnabled {
			event = event.Any("headers", c.Request.Header)
		}

		if config.HandlerEnabled {
			event = event.Str("handler", c.HandlerName())
		}

		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.ByType(gin.ErrorTypePrivate).String())
		}

		event.Msg("[http] | request")
	}
}
