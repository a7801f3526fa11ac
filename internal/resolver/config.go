package resolver

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config tunes the resolver cascade.
type Config struct {
	// CacheTTLHours is the stage-2 cache lifetime. Default: 24.
	CacheTTLHours int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`

	// ExternalTimeoutSecs bounds a single stage-3 call, fallback included.
	// Default: 5.
	ExternalTimeoutSecs int `yaml:"external_timeout_secs" mapstructure:"external_timeout_secs"`

	// CuratedConfidence is used for curated rows that carry no declared
	// confidence of their own. Default: 90.
	CuratedConfidence float64 `yaml:"curated_confidence" mapstructure:"curated_confidence"`

	// LiveConfidence is assigned to live external database results.
	// Default: 70. Must not exceed CuratedConfidence: stage-1 results
	// always rank at or above what stages 2 and 3 can produce.
	LiveConfidence float64 `yaml:"live_confidence" mapstructure:"live_confidence"`

	// MockConfidence is assigned to deterministic mock results. Default: 40.
	MockConfidence float64 `yaml:"mock_confidence" mapstructure:"mock_confidence"`

	// MaxConcurrentLookups caps the fan-out of batch resolution. Default: 8.
	MaxConcurrentLookups int `yaml:"max_concurrent_lookups" mapstructure:"max_concurrent_lookups"`
}

// DefaultConfig returns the resolver defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTLHours:        24,
		ExternalTimeoutSecs:  5,
		CuratedConfidence:    90,
		LiveConfidence:       70,
		MockConfidence:       40,
		MaxConcurrentLookups: 8,
	}
}

// CacheTTL returns the cache lifetime as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// ExternalTimeout returns the stage-3 deadline as a duration.
func (c Config) ExternalTimeout() time.Duration {
	return time.Duration(c.ExternalTimeoutSecs) * time.Second
}

// LoadConfig reads resolver config from a YAML file, applying defaults for
// unset fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: read config %s", path)
	}

	// The YAML has a top-level "resolver" key.
	var wrapper struct {
		Resolver Config `yaml:"resolver"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "resolver: parse config")
	}

	cfg := wrapper.Resolver.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CacheTTLHours <= 0 {
		c.CacheTTLHours = d.CacheTTLHours
	}
	if c.ExternalTimeoutSecs <= 0 {
		c.ExternalTimeoutSecs = d.ExternalTimeoutSecs
	}
	if c.CuratedConfidence <= 0 {
		c.CuratedConfidence = d.CuratedConfidence
	}
	if c.LiveConfidence <= 0 {
		c.LiveConfidence = d.LiveConfidence
	}
	if c.MockConfidence <= 0 {
		c.MockConfidence = d.MockConfidence
	}
	if c.MaxConcurrentLookups <= 0 {
		c.MaxConcurrentLookups = d.MaxConcurrentLookups
	}
	return c
}

// Validate checks the confidence ordering across stages.
func (c Config) Validate() error {
	if c.LiveConfidence > c.CuratedConfidence {
		return eris.Errorf("resolver: live_confidence %g exceeds curated_confidence %g", c.LiveConfidence, c.CuratedConfidence)
	}
	if c.MockConfidence > c.LiveConfidence {
		return eris.Errorf("resolver: mock_confidence %g exceeds live_confidence %g", c.MockConfidence, c.LiveConfidence)
	}
	return nil
}
