package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"segcaliper/pkg/config"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segcaliper.log")
	c := &LogConfig{Logfile: path, MaxSize: 1, MaxAge: 1, Verbose: true}

	logger, closer := c.NewLogger()
	logger.WithField("slice", 3).Debug("propagated")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Log file not written: %v", err)
	}
	if !strings.Contains(string(data), "propagated") || !strings.Contains(string(data), "slice=3") {
		t.Errorf("Expected debug entry in log file, got %q", data)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	quiet, _ := (&LogConfig{}).NewLogger()
	if quiet.GetLevel() != log.InfoLevel {
		t.Errorf("Expected info level, got %v", quiet.GetLevel())
	}
	verbose, _ := (&LogConfig{Verbose: true}).NewLogger()
	if verbose.GetLevel() != log.DebugLevel {
		t.Errorf("Expected debug level, got %v", verbose.GetLevel())
	}
	var nilConfig *LogConfig
	if l, _ := nilConfig.NewLogger(); l.GetLevel() != log.InfoLevel {
		t.Errorf("Expected info level for nil config, got %v", l.GetLevel())
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.LogFile = "out.log"
	cfg.Output.Verbose = false

	c := FromConfig(cfg)
	if c.Logfile != "out.log" || c.Verbose || c.MaxSize != cfg.Output.LogMaxSize || c.MaxAge != cfg.Output.LogMaxAge {
		t.Errorf("Unexpected log config %+v", c)
	}
}
