package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/Kermit457/gICM-sub020/pkg/config"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("action decided", "outcome", "auto_execute")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "action decided" {
		t.Errorf("msg = %v, want %q", record["msg"], "action decided")
	}
	if record["outcome"] != "auto_execute" {
		t.Errorf("outcome = %v, want auto_execute", record["outcome"])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Warn("boundary warning", "boundary", "max_daily_spend_usd")

	out := buf.String()
	if !strings.Contains(out, "msg=\"boundary warning\"") {
		t.Errorf("text output missing message: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("text output missing level: %s", out)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("also dropped")
	if buf.Len() != 0 {
		t.Errorf("below-threshold records were emitted: %s", buf.String())
	}

	logger.Error("kept")
	if buf.Len() == 0 {
		t.Error("error record was not emitted")
	}
}

func TestNew_EmptyDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("dropped at default info level")
	if buf.Len() != 0 {
		t.Errorf("debug record emitted at default level: %s", buf.String())
	}
	logger.Info("kept")
	if !strings.Contains(buf.String(), "\"msg\":\"kept\"") {
		t.Errorf("default format is not JSON: %s", buf.String())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "verbose"}, nil); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(config.LoggingConfig{Format: "logfmt"}, nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"fatal", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
