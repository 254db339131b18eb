package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// OutputFormats lists the accepted values of output_format
var OutputFormats = []string{"table", "json", "csv"}

// Config holds application configuration
type Config struct {
	LogLevel     string        `yaml:"log_level" default:"info"`
	OutputFormat string        `yaml:"output_format" default:"table"` // table, json, csv
	Device       DeviceConfig  `yaml:"device"`
	Session      SessionConfig `yaml:"session"`
	Log          LogConfig     `yaml:"log"`
}

// DeviceConfig selects and reaches the gauge
type DeviceConfig struct {
	NamePrefix     string        `yaml:"name_prefix" default:"Progressor"`
	Address        string        `yaml:"address"` // skips discovery when set
	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
}

// SessionConfig tunes the measurement session
type SessionConfig struct {
	Quiescence          time.Duration `yaml:"quiescence" default:"500ms"`
	MeasurementDuration time.Duration `yaml:"measurement_duration" default:"10s"`
	NotificationBuffer  int           `yaml:"notification_buffer" default:"256"`
}

// LogConfig places the sample logs
type LogConfig struct {
	Dir string `yaml:"dir" default:"."`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks configuration correctness without mutating it
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("output_format %q: must be one of %v", c.OutputFormat, OutputFormats)
	}
	if c.Device.NamePrefix == "" && c.Device.Address == "" {
		return errors.New("device: name_prefix or address is required")
	}
	if c.Device.ScanTimeout <= 0 {
		return fmt.Errorf("device.scan_timeout must be positive, got %s", c.Device.ScanTimeout)
	}
	if c.Device.ConnectTimeout <= 0 {
		return fmt.Errorf("device.connect_timeout must be positive, got %s", c.Device.ConnectTimeout)
	}
	if c.Session.Quiescence <= 0 {
		return fmt.Errorf("session.quiescence must be positive, got %s", c.Session.Quiescence)
	}
	if c.Session.MeasurementDuration <= 0 {
		return fmt.Errorf("session.measurement_duration must be positive, got %s", c.Session.MeasurementDuration)
	}
	if c.Session.NotificationBuffer <= 0 {
		return fmt.Errorf("session.notification_buffer must be positive, got %d", c.Session.NotificationBuffer)
	}
	return nil
}

// Level returns the parsed log level, InfoLevel when unparsable
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
