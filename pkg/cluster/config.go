package cluster

import (
	"errors"
	"fmt"
	"os"

	"github.com/cbmock/cbmock-go/pkg/sasl"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a cluster configuration is invalid.
var ErrInvalidConfig = errors.New("invalid cluster config")

// Config describes the emulated cluster.
type Config struct {
	// Host is the address every node listens on.
	Host string `yaml:"host"`

	// Buckets in creation order. The first bucket is the default bucket.
	Buckets []BucketConfig `yaml:"buckets"`
}

// BucketConfig describes one bucket.
type BucketConfig struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`

	// Nodes is the number of emulated nodes.
	Nodes int `yaml:"nodes"`

	// BasePort assigns node i the port BasePort+i. Zero picks ephemeral ports.
	BasePort int `yaml:"base_port"`

	// Mechanisms lists the SASL mechanisms offered. Empty selects all.
	Mechanisms []string `yaml:"mechanisms"`
}

// DefaultConfig returns a single four-node bucket named "default".
func DefaultConfig() Config {
	return Config{
		Host: "127.0.0.1",
		Buckets: []BucketConfig{{
			Name:  "default",
			Nodes: 4,
		}},
	}
}

// LoadConfig reads a YAML cluster file. Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read cluster config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML cluster document and validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	cfg.Buckets = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse cluster config: %w", err)
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultConfig().Buckets
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Buckets) == 0 {
		return fmt.Errorf("%w: no buckets", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Buckets))
	for _, b := range c.Buckets {
		if b.Name == "" {
			return fmt.Errorf("%w: bucket without name", ErrInvalidConfig)
		}
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate bucket %q", ErrInvalidConfig, b.Name)
		}
		seen[b.Name] = true
		if b.Nodes < 1 {
			return fmt.Errorf("%w: bucket %q needs at least one node", ErrInvalidConfig, b.Name)
		}
		if b.BasePort < 0 || b.BasePort+b.Nodes > 65536 {
			return fmt.Errorf("%w: bucket %q port range out of bounds", ErrInvalidConfig, b.Name)
		}
		for _, m := range b.Mechanisms {
			if !sasl.IsKnown(m) {
				return fmt.Errorf("%w: bucket %q: unknown mechanism %q", ErrInvalidConfig, b.Name, m)
			}
		}
	}
	return nil
}
