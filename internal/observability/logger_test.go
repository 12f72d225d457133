package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/tallybook/tallybook/internal/config"
)

func TestNewLoggerTagsServiceAndRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "tallybook-api"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}, &buf)

	logger.Info("model_call", slog.String("api_key", "sk-live-123"), slog.String("model", "gpt-4o-mini"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (%s)", err, buf.String())
	}
	if entry["service"] != "tallybook-api" || entry["profile"] != "test" {
		t.Fatalf("entry = %#v", entry)
	}
	if entry["api_key"] != "[redacted]" {
		t.Fatalf("api_key = %#v", entry["api_key"])
	}
	if entry["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %#v", entry["model"])
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{
		Service:       config.ServiceConfig{Name: "x"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelWarn},
	}, &buf)
	logger.Info("ignored")
	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
