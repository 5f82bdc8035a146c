package observability

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/model"
)

type loggerKey struct{}

// NewLogger builds the process logger. The "console" format is meant for a
// terminal; any other value logs JSON lines to stdout.
//
// Levels:
//   - error: maintenance API unreachable, panics, 5xx responses
//   - warn:  4xx from the API, open circuit breaker, failed polls and reloads
//   - info:  one line per request, mutations, kanban drop outcomes
//   - debug: lookup cache hits, discarded stale reloads and polls
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    map[string]any{"service": "workdesk"},
	}
	if cfg.LogFormat == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.InitialFields = nil
	}
	return zc.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the context logger, or fallback when there is none.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// RequestLogger is LoggerFrom plus the fields of the context session.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)
	if s := model.SessionFrom(ctx); s != nil {
		return logger.With(SessionFields(s)...)
	}
	return logger
}

// SessionFields identifies a session in log output. The bearer token is
// never included.
func SessionFields(s *model.Session) []zap.Field {
	fields := []zap.Field{
		zap.String("subject_id", s.SubjectID),
		zap.String("role", string(s.Role)),
		zap.String("correlation_id", s.CorrelationID),
	}
	if s.TraceID != "" {
		fields = append(fields, zap.String("trace_id", s.TraceID))
	}
	if s.Timezone != "" && s.Timezone != "UTC" {
		fields = append(fields, zap.String("timezone", s.Timezone))
	}
	return fields
}

// WorkOrder is the log field naming the work order an entry is about.
func WorkOrder(id string) zap.Field {
	return zap.String("work_order_id", id)
}

// Asset is the log field naming an asset.
func Asset(id string) zap.Field {
	return zap.String("asset_id", id)
}

// User is the log field naming the account an admin action targets.
func User(id string) zap.Field {
	return zap.String("user_id", id)
}
