// Package config loads runtime configuration for the radar handler and the
// ld2410 command line tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/ld2410/internal/serialport"
)

// Config is the root JSON configuration. All fields are optional; the Get*
// accessors apply defaults for anything unset, so partial configs are safe.
type Config struct {
	// Serial link
	Port     *string `json:"port,omitempty"`
	BaudRate *int    `json:"baud_rate,omitempty"`
	DataBits *int    `json:"data_bits,omitempty"`
	StopBits *int    `json:"stop_bits,omitempty"`
	Parity   *string `json:"parity,omitempty"`

	// Protocol engine
	CommandTimeout *string `json:"command_timeout,omitempty"` // duration string like "1s"
	ReadBufferCap  *int    `json:"read_buffer_cap,omitempty"`
	HistorySize    *int    `json:"history_size,omitempty"`

	// Readings log
	DatabasePath *string `json:"database_path,omitempty"`
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.CommandTimeout != nil && *c.CommandTimeout != "" {
		if _, err := time.ParseDuration(*c.CommandTimeout); err != nil {
			return fmt.Errorf("invalid command_timeout %q: %w", *c.CommandTimeout, err)
		}
	}
	if c.ReadBufferCap != nil && *c.ReadBufferCap < 64 {
		return fmt.Errorf("read_buffer_cap must be at least 64 bytes, got %d", *c.ReadBufferCap)
	}
	if c.HistorySize != nil && *c.HistorySize < 0 {
		return fmt.Errorf("history_size must be non-negative, got %d", *c.HistorySize)
	}
	if _, err := c.SerialOptions().Normalize(); err != nil {
		return err
	}
	return nil
}

// GetPort returns the serial device path or the default.
func (c *Config) GetPort() string {
	if c.Port == nil || *c.Port == "" {
		return "/dev/ttyUSB0"
	}
	return *c.Port
}

// SerialOptions assembles the serial link options from the config.
func (c *Config) SerialOptions() serialport.Options {
	var opts serialport.Options
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetCommandTimeout parses and returns the command timeout.
func (c *Config) GetCommandTimeout() time.Duration {
	if c.CommandTimeout == nil || *c.CommandTimeout == "" {
		return time.Second // vendor-recommended reply bound
	}
	d, err := time.ParseDuration(*c.CommandTimeout)
	if err != nil {
		return time.Second
	}
	return d
}

// GetReadBufferCap returns the stream buffer cap in bytes.
func (c *Config) GetReadBufferCap() int {
	if c.ReadBufferCap == nil {
		return 0 // handler applies its own default
	}
	return *c.ReadBufferCap
}

// GetHistorySize returns how many readings the in-memory history retains.
func (c *Config) GetHistorySize() int {
	if c.HistorySize == nil {
		return 1000
	}
	return *c.HistorySize
}

// GetDatabasePath returns the sqlite path for the readings log, empty when
// recording is disabled.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return ""
	}
	return *c.DatabasePath
}
