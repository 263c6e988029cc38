package config

import (
	"os"
	"path/filepath"
)

// LoggingConfig controls daemon log output
type LoggingConfig struct {
	Level      string
	Format     string // "text" or "json"
	File       string // empty logs to stderr only
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
}

// Options are the daemon's process-level settings, taken from flags
type Options struct {
	SettingsFile string
	SocketPath   string
	PIDFile      string
	LogLines     int
	Logging      LoggingConfig
}

func DefaultOptions() Options {
	return Options{
		SocketPath: filepath.Join(os.TempDir(), "autobackup.sock"),
		PIDFile:    filepath.Join(os.TempDir(), "autobackup.pid"),
		LogLines:   500,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}
