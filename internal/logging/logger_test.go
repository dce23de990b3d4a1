package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/N4S4/site-stats/internal/config"
)

func TestInitLogger_DefaultsToStderr(t *testing.T) {
	logger, err := InitLogger(config.LogConfig{Level: "info", Format: config.FormatText})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if logger.Out != os.Stderr {
		t.Error("Expected stderr output when no file is configured")
	}
	if _, ok := logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("Expected text formatter, got %T", logger.Formatter)
	}
}

func TestInitLogger_JSONAndLevel(t *testing.T) {
	logger, err := InitLogger(config.LogConfig{Level: "debug", Format: config.FormatJSON})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %s", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Expected JSON formatter, got %T", logger.Formatter)
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	if _, err := InitLogger(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestInitLogger_CreatesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "site-stats.log")

	logger, err := InitLogger(config.LogConfig{Level: "info", File: path, MaxSize: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	logger.Info("test")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected log file to be created: %v", err)
	}
}

func TestCommandFields(t *testing.T) {
	fields := CommandFields("report", "N4S4/synology-api", "sqlite")
	if fields["command"] != "report" || fields["repository"] != "N4S4/synology-api" || fields["cache"] != "sqlite" {
		t.Errorf("Unexpected fields: %v", fields)
	}
}

func TestClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site-stats.log")
	logger, err := InitLogger(config.LogConfig{Level: "info", File: path, MaxSize: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	logger.Info("before close")

	if err := Close(logger); err != nil {
		t.Errorf("Expected file logger to close cleanly, got: %v", err)
	}

	stderrLogger, _ := InitLogger(config.LogConfig{Level: "info"})
	if err := Close(stderrLogger); err != nil {
		t.Errorf("Expected no error for stderr logger, got: %v", err)
	}
	if _, err := os.Stderr.Stat(); err != nil {
		t.Errorf("Expected stderr to stay open, got: %v", err)
	}
	if err := Close(nil); err != nil {
		t.Errorf("Expected no error for nil logger, got: %v", err)
	}
}
