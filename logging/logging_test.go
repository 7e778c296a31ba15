package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/Xangel0s/docqr-Flex-sub000/config"
)

func TestNewWriterLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("test") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("test") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("test") }, true},
		{"warn at error level", log.ErrorLevel, func(l *log.Logger) { l.Warn("test") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewWriter(&buf, tt.level, "text")
			if err != nil {
				t.Fatal(err)
			}
			tt.logFunc(logger)
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("logged = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, log.InfoLevel, "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("embedded", "document", "doc-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if entry["msg"] != "embedded" || entry["document"] != "doc-1" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWriterUnknownFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, log.InfoLevel, "xml"); err == nil {
		t.Error("NewWriter() accepted an unknown format")
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqr.log")
	logger, closeLog, err := New(config.LoggingConfig{Level: "warn", Format: "logfmt", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Errorf("log file = %q", out)
	}
}

func TestNewBadLevel(t *testing.T) {
	if _, _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("New() accepted an unknown level")
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) != log.Default() {
		t.Error("FromContext() without a logger should return log.Default()")
	}
	logger := log.New(&bytes.Buffer{})
	if FromContext(WithContext(context.Background(), logger)) != logger {
		t.Error("FromContext() did not return the stored logger")
	}
}
