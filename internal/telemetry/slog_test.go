package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// SetupLogger / NewHandler
// ---------------------------------------------------------------------------

func TestSetupLogger_DoesNotPanicForAllCombinations(t *testing.T) {
	formats := []string{"json", "text", "JSON", "", "unknown"}
	levels := []string{"debug", "info", "warn", "warning", "error", "ERROR", "", "unknown"}

	for _, format := range formats {
		for _, level := range levels {
			t.Run(format+"/"+level, func(t *testing.T) {
				defer func() {
					if r := recover(); r != nil {
						t.Errorf("SetupLogger(%q, %q) panicked: %v", format, level, r)
					}
				}()
				SetupLogger(format, level, "portal-api")
			})
		}
	}
	SetupLogger("text", "error", "")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandler_JSONFormat_ProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", slog.LevelInfo))
	logger.Info("organization created", "org", "civic-lab")

	var obj map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if obj["msg"] != "organization created" {
		t.Errorf("msg = %v", obj["msg"])
	}
	if obj["org"] != "civic-lab" {
		t.Errorf("org = %v", obj["org"])
	}
	if _, ok := obj["source"]; ok {
		t.Error("source should only be attached at debug level")
	}
}

func TestNewLogger_ServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "json", slog.LevelInfo, "portal-api").Info("membership accepted")

	var obj map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &obj); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if obj["service"] != "portal-api" {
		t.Errorf("service = %v, want portal-api", obj["service"])
	}

	buf.Reset()
	NewLogger(&buf, "text", slog.LevelInfo, "").Info("no service")
	if strings.Contains(buf.String(), "service=") {
		t.Errorf("empty service should not be logged: %q", buf.String())
	}
}

func TestNewHandler_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "text", slog.LevelInfo))
	logger.Info("text test", "env", "development")

	if !strings.Contains(buf.String(), "env=development") {
		t.Errorf("text output missing env=development: %q", buf.String())
	}
}

func TestNewHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", slog.LevelWarn))
	logger.Info("should be suppressed")
	logger.Warn("should appear")

	if strings.Contains(buf.String(), "should be suppressed") {
		t.Error("info record appeared despite warn filter")
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Error("warn record was suppressed")
	}
}

func TestNewHandler_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "json", slog.LevelDebug))
	logger.Debug("with source")

	if !strings.Contains(buf.String(), `"source"`) {
		t.Errorf("debug output should include source: %s", buf.String())
	}
}
