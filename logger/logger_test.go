package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "gateway.log")
	log := Logger()
	if err := log.Configure("debug", "json", path, 0); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	log.WithComponent("test").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"message":"hello"`)) {
		t.Fatalf("log line not written: %s", data)
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestLogPerformanceEntry(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	log := Logger()
	if err := log.Configure("debug", "json", "stdout", 0); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	log.SetOutput(&buf)

	LogPerformanceEntry(log.WithFields(Fields{"exchange": "binance"}), "gateway", "fetch_ticker", 1500*time.Microsecond, nil)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["operation"] != "fetch_ticker" || line["component"] != "gateway" {
		t.Fatalf("unexpected fields: %v", line)
	}
	if line["duration_ms"].(float64) != 1.5 {
		t.Fatalf("unexpected duration: %v", line["duration_ms"])
	}
}

func TestCallerHookSkipsWrappers(t *testing.T) {
	h := newCallerHook()
	cases := []struct {
		fn   string
		want bool
	}{
		{"github.com/sirupsen/logrus.(*Entry).Info", true},
		{"exgateway/logger.(*Entry).Info", true},
		{"exgateway/logger.LogPerformanceEntry", true},
		{"exgateway/internal/gateway.(*Gateway).call", false},
		{"exgateway/internal/connector/registry.Build", false},
		{"github.com/sirupsen/logrusext.(*Thing).Fire", false},
		{"exgateway/loggerutil.Helper", false},
	}
	for _, c := range cases {
		if got := h.wrapper(c.fn); got != c.want {
			t.Errorf("wrapper(%q) = %v, want %v", c.fn, got, c.want)
		}
	}
}
