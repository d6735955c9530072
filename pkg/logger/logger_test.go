package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"}, &buf)
			if logger == nil {
				t.Fatal("Expected logger to be created")
			}

			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("Expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"invalid", zerolog.InfoLevel}, // Default
		{"", zerolog.InfoLevel},        // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&config.Config{Env: "staging", LogLevel: "info", LogFormat: "json"}, &buf)

	logger.Infof("analyzed %d instruments", 3)

	entry := decode(t, &buf)
	if entry["service"] != "histpos" {
		t.Errorf("Expected service histpos, got %v", entry["service"])
	}
	if entry["env"] != "staging" {
		t.Errorf("Expected env staging, got %v", entry["env"])
	}
	if entry["message"] != "analyzed 3 instruments" {
		t.Errorf("Unexpected message %v", entry["message"])
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "json"}, &buf)

	zlog := logger.Component("engine")
	zlog.Info().Str("code", "005930").Msg("analysis completed")

	entry := decode(t, &buf)
	if entry["component"] != "engine" {
		t.Errorf("Expected component engine, got %v", entry["component"])
	}
	if entry["code"] != "005930" {
		t.Errorf("Expected code 005930, got %v", entry["code"])
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "json"}, &buf)

	logger.WithFields(map[string]interface{}{
		"code":    "005930",
		"profile": "single_name",
		"horizon": 20,
	}).Info("cache miss")

	entry := decode(t, &buf)
	if entry["profile"] != "single_name" {
		t.Errorf("Expected profile single_name, got %v", entry["profile"])
	}
	if entry["horizon"] != float64(20) {
		t.Errorf("Expected horizon 20, got %v", entry["horizon"])
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "json"}, &buf)

	logger.WithError(errors.New("redis timeout")).WithField("code", "X").Error("cache store failed")

	entry := decode(t, &buf)
	if entry["error"] != "redis timeout" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}
	if entry["level"] != "error" {
		t.Errorf("Expected level error, got %v", entry["level"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&config.Config{LogLevel: "info", LogFormat: "console"}, &buf)

	logger.Warn("wide tolerance")

	if !strings.Contains(buf.String(), "wide tolerance") {
		t.Errorf("Expected console output to contain message, got: %s", buf.String())
	}
	if json.Valid(buf.Bytes()) {
		t.Error("Expected console output, got JSON")
	}
}

func TestNop(t *testing.T) {
	// Nop은 출력 없이 호출만 가능해야 함
	Nop().Info("discarded")
	zl := Nop().Component("engine")
	zl.Info().Msg("discarded")
}
