package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/model"
)

// newTestLogger creates a logger that writes JSON to a buffer for assertion.
func newTestLogger(buf *bytes.Buffer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "msg",
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
	})
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(buf), zapcore.DebugLevel))
}

func TestNewLogger_levels(t *testing.T) {
	tests := []struct {
		level     string
		enabled   zapcore.Level
		disabled  zapcore.Level
		checkDown bool
	}{
		{level: "info", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel, checkDown: true},
		{level: "debug", enabled: zapcore.DebugLevel},
		{level: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel, checkDown: true},
		{level: "bogus", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel, checkDown: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(config.ObservabilityConfig{LogLevel: tt.level})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			defer func() { _ = logger.Sync() }()

			if !logger.Core().Enabled(tt.enabled) {
				t.Errorf("%s should be enabled", tt.enabled)
			}
			if tt.checkDown && logger.Core().Enabled(tt.disabled) {
				t.Errorf("%s should not be enabled", tt.disabled)
			}
		})
	}
}

func TestLoggerFrom(t *testing.T) {
	logger := zap.NewNop()
	if got := LoggerFrom(WithLogger(context.Background(), logger), nil); got != logger {
		t.Error("LoggerFrom should return the stored logger")
	}
	fallback := zap.NewNop()
	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("LoggerFrom should return the fallback when nothing is stored")
	}
}

func TestRequestLogger_enrichesWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	ctx := model.WithSession(context.Background(), &model.Session{
		Token:         "secret-token",
		SubjectID:     "user-42",
		Role:          model.RoleTechnician,
		CorrelationID: "corr-abc",
		TraceID:       "trace-xyz",
	})
	RequestLogger(ctx, logger).Info("status changed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	want := map[string]string{
		"subject_id":     "user-42",
		"role":           "TECHNICIAN",
		"correlation_id": "corr-abc",
		"trace_id":       "trace-xyz",
		"msg":            "status changed",
	}
	for key, v := range want {
		if entry[key] != v {
			t.Errorf("%s = %v, want %q", key, entry[key], v)
		}
	}
	if strings.Contains(buf.String(), "secret-token") {
		t.Error("token leaked into log output")
	}
}

func TestRequestLogger_withoutSession(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	RequestLogger(context.Background(), logger).Info("anonymous")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if _, exists := entry["subject_id"]; exists {
		t.Error("subject_id should not be present without a session")
	}
	if _, exists := entry["trace_id"]; exists {
		t.Error("trace_id should not be present without a session")
	}
}

func TestNewLogger_consoleFormat(t *testing.T) {
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled")
	}
}

func TestSessionFields_timezoneOnlyWhenLocal(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Info("utc", SessionFields(&model.Session{SubjectID: "u", Timezone: "UTC"})...)
	logger.Info("local", append(SessionFields(&model.Session{SubjectID: "u", Timezone: "Africa/Nairobi"}), WorkOrder("wo-7"))...)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}
	var utc, local map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &utc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &local); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := utc["timezone"]; ok {
		t.Error("timezone logged for a UTC session")
	}
	if local["timezone"] != "Africa/Nairobi" || local["work_order_id"] != "wo-7" {
		t.Errorf("entry = %v", local)
	}
}
