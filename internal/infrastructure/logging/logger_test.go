package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, buf *bytes.Buffer)
	}{
		{
			name: "text format",
			config: Config{
				Level:  LevelInfo,
				Format: FormatText,
			},
			check: func(t *testing.T, buf *bytes.Buffer) {
				if !strings.Contains(buf.String(), "level=INFO") {
					t.Error("expected text format with level=INFO")
				}
			},
		},
		{
			name: "json format",
			config: Config{
				Level:  LevelInfo,
				Format: FormatJSON,
			},
			check: func(t *testing.T, buf *bytes.Buffer) {
				var m map[string]interface{}
				if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
					t.Errorf("expected valid JSON output: %v", err)
				}
				if m["level"] != "INFO" {
					t.Errorf("expected level INFO, got %v", m["level"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.config.Output = buf

			logger := New(tt.config)
			logger.Info("test message")

			tt.check(t, buf)
		})
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		logMethod func(l *Logger)
		expected  bool
	}{
		{
			name:      "debug at debug level",
			level:     LevelDebug,
			logMethod: func(l *Logger) { l.Debug("test") },
			expected:  true,
		},
		{
			name:      "debug at info level",
			level:     LevelInfo,
			logMethod: func(l *Logger) { l.Debug("test") },
			expected:  false,
		},
		{
			name:      "info at info level",
			level:     LevelInfo,
			logMethod: func(l *Logger) { l.Info("test") },
			expected:  true,
		},
		{
			name:      "warn at error level",
			level:     LevelError,
			logMethod: func(l *Logger) { l.Warn("test") },
			expected:  false,
		},
		{
			name:      "error at error level",
			level:     LevelError,
			logMethod: func(l *Logger) { l.Error("test") },
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(Config{
				Level:  tt.level,
				Format: FormatText,
				Output: buf,
			})

			tt.logMethod(logger)

			hasOutput := buf.Len() > 0
			if hasOutput != tt.expected {
				t.Errorf("expected output=%v, got output=%v", tt.expected, hasOutput)
			}
		})
	}
}

func TestContextEnrichment(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelDebug,
		Format: FormatJSON,
		Output: buf,
	})

	ctx := context.Background()
	ctx = WithCorrelationID(ctx, "corr-123")
	ctx = WithRunID(ctx, "run-456")
	ctx = WithTasksetID(ctx, "data-multi-m4-u50")
	ctx = WithAlgo(ctx, "RASCO")

	logger.InfoContext(ctx, "enriched log")

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	expected := map[string]string{
		"correlation_id": "corr-123",
		"run_id":         "run-456",
		"taskset_id":     "data-multi-m4-u50",
		"algo":           "RASCO",
	}

	for key, expectedVal := range expected {
		if m[key] != expectedVal {
			t.Errorf("expected %s=%s, got %v", key, expectedVal, m[key])
		}
	}
}

func TestWith(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: buf,
	})

	childLogger := logger.With("component", "executor")
	childLogger.Info("with attributes")

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if m["component"] != "executor" {
		t.Errorf("expected component=executor, got %v", m["component"])
	}
}

func TestWithGroup(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: buf,
	})

	childLogger := logger.WithGroup("metrics")
	childLogger.Info("grouped log", "count", 42)

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	// The group should contain the "count" attribute
	metrics, ok := m["metrics"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected metrics group, got %v", m["metrics"])
	}

	if metrics["count"] != float64(42) {
		t.Errorf("expected count=42, got %v", metrics["count"])
	}
}

func TestCorrelationIDExtraction(t *testing.T) {
	ctx := context.Background()

	// No correlation ID
	if id := CorrelationID(ctx); id != "" {
		t.Errorf("expected empty correlation ID, got %s", id)
	}

	// With correlation ID
	ctx = WithCorrelationID(ctx, "test-id")
	if id := CorrelationID(ctx); id != "test-id" {
		t.Errorf("expected correlation ID 'test-id', got %s", id)
	}
}

func TestDomainLogHelpers(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  LevelDebug,
		Format: FormatJSON,
		Output: buf,
	})

	ctx := context.Background()

	t.Run("LogRunStart", func(t *testing.T) {
		buf.Reset()
		LogRunStart(ctx, logger, "data-multi-m4-u50", "50", 3, "RASCO")

		var m map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}

		if m["msg"] != "run started" {
			t.Errorf("unexpected message: %v", m["msg"])
		}
		if m["taskset"] != "data-multi-m4-u50" {
			t.Errorf("unexpected taskset: %v", m["taskset"])
		}
	})

	t.Run("LogRunComplete", func(t *testing.T) {
		buf.Reset()
		LogRunComplete(ctx, logger, "data-multi-m4-u50", 5*time.Second, 12, true)

		var m map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}

		if m["duration_ms"] != float64(5000) {
			t.Errorf("unexpected duration_ms: %v", m["duration_ms"])
		}
		if m["segments"] != float64(12) {
			t.Errorf("unexpected segments: %v", m["segments"])
		}
	})

	t.Run("LogPreprocessComplete", func(t *testing.T) {
		buf.Reset()
		LogPreprocessComplete(ctx, logger, 0, 0.5, 0.8, 1.1)

		var m map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}

		if m["util"] != 0.5 {
			t.Errorf("unexpected util: %v", m["util"])
		}
	})

	t.Run("LogRunSkipped", func(t *testing.T) {
		buf.Reset()
		LogRunSkipped(ctx, logger, "data-multi-m4-u50", "50", 3, "RASCO")

		var m map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}

		if m["algo"] != "RASCO" {
			t.Errorf("unexpected algo: %v", m["algo"])
		}
	})
}

func TestDefaultLogger(t *testing.T) {
	// Reset global for test
	global = nil
	globalOnce = sync.Once{}

	logger := Default()
	if logger == nil {
		t.Error("expected non-nil default logger")
	}

	// Calling Default() again should return the same instance
	logger2 := Default()
	if logger != logger2 {
		t.Error("expected same logger instance from Default()")
	}
}
