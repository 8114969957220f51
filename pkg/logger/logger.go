package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/flextime-hq/flextime-api/pkg/config"
	"github.com/flextime-hq/flextime-api/pkg/middleware/requestid"
)

// New builds the process-wide zap logger. Production uses the production
// defaults; every other environment gets the development config so stack
// traces and debug output stay readable.
func New(cfg *config.Config) (*zap.Logger, error) {
	base := zap.NewDevelopmentConfig()
	if cfg.Env == config.EnvProduction {
		base = zap.NewProductionConfig()
	}

	base.Encoding = "json"
	if cfg.Log.Format == "console" {
		base.Encoding = "console"
	}
	base.Level = parseLevel(cfg.Log.Level, base.Level)
	base.EncoderConfig.TimeKey = "timestamp"
	base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return base.Build(zap.Fields(zap.String("service", "flextime-api")))
}

func parseLevel(raw string, fallback zap.AtomicLevel) zap.AtomicLevel {
	if raw == "" {
		return fallback
	}
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return lvl
}

// GinMiddleware emits one structured access log line per request. Server
// errors are raised to error level so they stand out in aggregated logs.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}

		if status >= 500 {
			l.Error("http_request", fields...)
			return
		}
		l.Info("http_request", fields...)
	}
}
