package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantKey string
	}{
		{name: "console default", cfg: LogConfig{Level: "info", Format: "console"}},
		{name: "json", cfg: LogConfig{Level: "debug", Format: "json"}},
		{name: "empty values", cfg: LogConfig{}},
		{name: "bad level", cfg: LogConfig{Level: "loud"}, wantKey: "log.level"},
		{name: "bad format", cfg: LogConfig{Level: "info", Format: "xml"}, wantKey: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.cfg)
			if tt.wantKey != "" {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Key != tt.wantKey {
					t.Fatalf("expected ConfigError for %s, got %v", tt.wantKey, err)
				}
				return
			}
			if err != nil || logger == nil {
				t.Fatalf("newLogger() = %v, %v", logger, err)
			}
		})
	}
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "recon.log")
	logger, err := newLogger(LogConfig{Level: "info", Format: "console", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("scan finished")
	logger.Debug("below threshold")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"scan finished"`) {
		t.Fatalf("expected JSON entry in file, got %q", out)
	}
	if strings.Contains(out, "below threshold") {
		t.Fatalf("debug entry should be filtered at info level: %q", out)
	}
}
