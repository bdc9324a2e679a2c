// Package config loads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the file omits a value.
const (
	DefaultBroker          = "tcp://localhost:1883"
	DefaultHTTPAddr        = ":8080"
	DefaultSourcePrefix    = "entities"
	DefaultTemperatureUnit = "°C"
	DefaultName            = "Denoise sensor"
	DefaultPrecision       = 1
)

// DefaultHeartbeat is how often the daemon publishes a status heartbeat.
const DefaultHeartbeat = 15 * time.Minute

// Config is the top-level daemon configuration.
type Config struct {
	Broker            string   `yaml:"broker"`
	HTTPAddr          string   `yaml:"http"`
	SourcePrefix      string   `yaml:"source_prefix"`
	TemperatureUnit   string   `yaml:"temperature_unit"`
	HeartbeatInterval string   `yaml:"heartbeat_interval"` // "0" disables
	Sensors           []Sensor `yaml:"sensors"`

	// Parsed form of HeartbeatInterval, filled in by Load.
	Heartbeat time.Duration `yaml:"-"`
}

// Sensor configures one denoised sensor.
type Sensor struct {
	EntityID        string  `yaml:"entity_id"`
	Name            string  `yaml:"name"`
	UniqueID        string  `yaml:"unique_id"`
	ValueDelta      float64 `yaml:"value_delta"`
	Precision       *int    `yaml:"precision"` // pointer so an explicit 0 survives defaulting
	AverageInterval string  `yaml:"average_interval"`
	UpdateInterval  string  `yaml:"update_interval"`

	// Parsed forms of the interval strings, filled in by Load.
	AverageWindow *time.Duration `yaml:"-"`
	UpdatePeriod  *time.Duration `yaml:"-"`
}

// EffectivePrecision returns the configured precision or the default.
func (s Sensor) EffectivePrecision() int {
	if s.Precision == nil {
		return DefaultPrecision
	}
	return *s.Precision
}

// Load reads, parses and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a raw YAML config.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := normalize(&c); err != nil {
		return nil, err
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Broker == "" {
		c.Broker = DefaultBroker
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.SourcePrefix == "" {
		c.SourcePrefix = DefaultSourcePrefix
	}
	if c.TemperatureUnit == "" {
		c.TemperatureUnit = DefaultTemperatureUnit
	}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if s.Name == "" {
			s.Name = DefaultName
		}
		if s.UniqueID == "" {
			s.UniqueID = uuid.NewString()
		}
	}
}

// normalize parses the interval strings into durations.
func normalize(c *Config) error {
	if c.HeartbeatInterval == "" {
		c.Heartbeat = DefaultHeartbeat
	} else {
		d, err := parseOptionalDuration(c.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("heartbeat_interval: %w", err)
		}
		c.Heartbeat = *d
	}

	for i := range c.Sensors {
		s := &c.Sensors[i]
		var err error
		if s.AverageWindow, err = parseOptionalDuration(s.AverageInterval); err != nil {
			return fmt.Errorf("sensor %q: average_interval: %w", s.EntityID, err)
		}
		if s.UpdatePeriod, err = parseOptionalDuration(s.UpdateInterval); err != nil {
			return fmt.Errorf("sensor %q: update_interval: %w", s.EntityID, err)
		}
	}
	return nil
}

func parseOptionalDuration(raw string) (*time.Duration, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, err
	}
	if d < 0 {
		return nil, fmt.Errorf("negative duration %q", raw)
	}
	return &d, nil
}

func validate(c *Config) error {
	if len(c.Sensors) == 0 {
		return fmt.Errorf("no sensors configured")
	}

	seenEntity := make(map[string]bool)
	seenUnique := make(map[string]bool)
	for _, s := range c.Sensors {
		if s.EntityID == "" {
			return fmt.Errorf("sensor %q: entity_id is required", s.Name)
		}
		if seenEntity[s.EntityID] {
			return fmt.Errorf("duplicate entity_id %q", s.EntityID)
		}
		seenEntity[s.EntityID] = true
		if seenUnique[s.UniqueID] {
			return fmt.Errorf("duplicate unique_id %q", s.UniqueID)
		}
		seenUnique[s.UniqueID] = true

		if s.ValueDelta < 0 {
			return fmt.Errorf("sensor %q: value_delta must be >= 0, got %v", s.EntityID, s.ValueDelta)
		}
		if s.Precision != nil && *s.Precision < 0 {
			return fmt.Errorf("sensor %q: precision must be >= 0, got %d", s.EntityID, *s.Precision)
		}
	}
	return nil
}
