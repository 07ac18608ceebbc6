package config

import (
	"fmt"

	"github.com/sdejongh/treesync/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Sync        SyncConfig        `yaml:"sync"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	State       StateConfig       `yaml:"state"`
	Exclude     []string          `yaml:"exclude"`
}

// SyncConfig holds reconciliation settings
type SyncConfig struct {
	Mode        models.SyncMode          `yaml:"mode"`
	Source      models.Side              `yaml:"source"` // mirror and backup only
	Fingerprint models.FingerprintMethod `yaml:"fingerprint"`
	Conflict    models.ConflictPolicy    `yaml:"conflict"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers     int   `yaml:"max_workers"`
	BufferSize     int   `yaml:"buffer_size"`
	BandwidthLimit int64 `yaml:"bandwidth_limit"` // bytes per second, 0 = unlimited
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"` // "json" or "text"
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	File       string `yaml:"file"`   // Log file path (empty = stderr)
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// StateConfig holds where baselines are kept
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Mode:        models.ModeTwoWay,
			Source:      models.SideA,
			Fingerprint: models.FingerprintHash,
			Conflict:    models.ConflictSkip,
		},
		Performance: PerformanceConfig{
			MaxWorkers:     5,
			BufferSize:     65536,
			BandwidthLimit: 0,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "json",
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		State: StateConfig{
			Dir: "~/.config/treesync/state",
		},
		Exclude: []string{
			".git/",
			"*.swp",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Sync.Mode {
	case models.ModeTwoWay, models.ModeMirror, models.ModeBackup:
	default:
		return &models.ValidationError{
			Field:   "sync.mode",
			Message: "must be 'twoway', 'mirror', or 'backup'",
		}
	}

	switch c.Sync.Source {
	case "", models.SideA, models.SideB:
	default:
		return &models.ValidationError{
			Field:   "sync.source",
			Message: "must be 'a' or 'b'",
		}
	}

	switch c.Sync.Fingerprint {
	case models.FingerprintHash, models.FingerprintMD5, models.FingerprintTimestamp:
	default:
		return &models.ValidationError{
			Field:   "sync.fingerprint",
			Message: "must be 'hash', 'md5', or 'timestamp'",
		}
	}

	switch c.Sync.Conflict {
	case models.ConflictSkip, models.ConflictAsk, models.ConflictKeepA, models.ConflictKeepB:
	default:
		return &models.ValidationError{
			Field:   "sync.conflict",
			Message: "must be 'skip', 'ask', 'keep-a', or 'keep-b'",
		}
	}

	if c.Performance.MaxWorkers < 1 {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must be at least 1",
		}
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if c.Performance.BandwidthLimit < 0 {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: "must not be negative",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return &models.ValidationError{
			Field:   "logging",
			Message: fmt.Sprintf("rotation settings must not be negative (size %d, backups %d, age %d)", c.Logging.MaxSizeMB, c.Logging.MaxBackups, c.Logging.MaxAgeDays),
		}
	}

	if c.State.Dir == "" {
		return &models.ValidationError{
			Field:   "state.dir",
			Message: "must not be empty",
		}
	}

	return nil
}
