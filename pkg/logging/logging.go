// Package logging configures logrus for the command line tools, optionally
// writing to a rotating log file.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	log "github.com/sirupsen/logrus"

	"segcaliper/pkg/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// LogConfig selects the log destination and verbosity
type LogConfig struct {
	Logfile string
	MaxSize int // megabytes
	MaxAge  int // days
	Verbose bool
}

// FromConfig extracts the logging section of the application config
func FromConfig(cfg *config.Config) *LogConfig {
	return &LogConfig{
		Logfile: cfg.Output.LogFile,
		MaxSize: cfg.Output.LogMaxSize,
		MaxAge:  cfg.Output.LogMaxAge,
		Verbose: cfg.Output.Verbose,
	}
}

// NewLogger creates a logger that writes to a rotating file when Logfile is
// set and to stderr otherwise. The returned closer releases the file.
func (c *LogConfig) NewLogger() (*log.Logger, io.Closer) {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.SetLevel(log.InfoLevel)
	if c == nil {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}
	}
	if c.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if c.Logfile == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}
	}

	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}
	logger.SetOutput(l)
	return logger, l
}

// SetLogger applies the configuration to the standard logrus logger
func (c *LogConfig) SetLogger() io.Closer {
	configured, closer := c.NewLogger()
	std := log.StandardLogger()
	std.SetOutput(configured.Out)
	std.SetLevel(configured.GetLevel())
	std.SetFormatter(configured.Formatter)
	return closer
}
