package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

type I2C struct {
	Bus  string `yaml:"bus"`  // "" picks the first bus, e.g. "1"
	Addr uint16 `yaml:"addr"` // Sense HAT AVR is 0x46
}

type SPI struct {
	Port       string `yaml:"port"`       // e.g. /dev/spidev0.0
	Serpentine bool   `yaml:"serpentine"` // strip zig-zags across rows
}

type Knocker struct {
	Mode          string `yaml:"mode"` // "cooperative" | "threaded" | "both"
	CooperativeMS int    `yaml:"cooperative_ms"`
	ThreadedMS    int    `yaml:"threaded_ms"`
}

func (k Knocker) CooperativeInterval() time.Duration {
	return time.Duration(k.CooperativeMS) * time.Millisecond
}

func (k Knocker) ThreadedInterval() time.Duration {
	return time.Duration(k.ThreadedMS) * time.Millisecond
}

type Config struct {
	Driver      string `yaml:"driver"` // "sim" | "console" | "sensehat" | "strip"
	LogLevel    string `yaml:"log_level"`
	SelfTest    bool   `yaml:"self_test"`
	FrameBuffer int    `yaml:"frame_buffer"`

	I2C     I2C     `yaml:"i2c"`
	SPI     SPI     `yaml:"spi,omitempty"`
	Knocker Knocker `yaml:"knocker"`
}

func Default() *Config {
	return &Config{
		Driver:      "sim",
		LogLevel:    "info",
		SelfTest:    true,
		FrameBuffer: 3,
		I2C:         I2C{Addr: 0x46},
		Knocker: Knocker{
			Mode:          "cooperative",
			CooperativeMS: 2000,
			ThreadedMS:    1100,
		},
	}
}

// Load reads path over Default. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "sim", "console", "sensehat", "strip":
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalid, c.Driver)
	}
	switch c.Knocker.Mode {
	case "cooperative", "threaded", "both":
	default:
		return fmt.Errorf("%w: unknown knocker mode %q", ErrInvalid, c.Knocker.Mode)
	}
	if c.Knocker.CooperativeMS <= 0 || c.Knocker.ThreadedMS <= 0 {
		return fmt.Errorf("%w: knocker intervals must be positive", ErrInvalid)
	}
	if c.FrameBuffer < 0 {
		return fmt.Errorf("%w: frame_buffer must not be negative", ErrInvalid)
	}
	return nil
}
