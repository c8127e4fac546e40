package filterengine

// Engine configuration shared by the service, registries and operators.

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultDoubleEpsilon makes Double equality effectively exact.
	DefaultDoubleEpsilon = math.SmallestNonzeroFloat64
	// DefaultStringSetThreshold is the $in size from which string
	// membership goes through an automaton.
	DefaultStringSetThreshold = 16
)

type EngineConfig struct {
	// Reuse compiled trees per distinct filter text.
	EnableCompiledCache bool `yaml:"compiled_cache" json:"compiled_cache"`

	// Registering an existing key replaces it instead of failing.
	AllowOverride bool `yaml:"allow_override" json:"allow_override"`

	// Double equality holds when |a-b| < DoubleEpsilon.
	DoubleEpsilon float64 `yaml:"double_epsilon" json:"double_epsilon"`

	StringSetThreshold int `yaml:"string_set_threshold" json:"string_set_threshold"`

	// An empty filter text matches every target.
	EmptyFilterMatches bool `yaml:"empty_filter_matches" json:"empty_filter_matches"`

	// Result cache writes run in the background.
	AsyncCacheWrites bool `yaml:"async_cache_writes" json:"async_cache_writes"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EnableCompiledCache: true,
		AllowOverride:       false,
		DoubleEpsilon:       DefaultDoubleEpsilon,
		StringSetThreshold:  DefaultStringSetThreshold,
		EmptyFilterMatches:  true,
		AsyncCacheWrites:    true,
	}
}

// DevelopmentConfig recompiles every call and writes the cache inline.
func DevelopmentConfig() EngineConfig {
	return DefaultEngineConfig().
		WithCompiledCache(false).
		WithAsyncCacheWrites(false)
}

// ProductionConfig keeps compiled trees and switches to automata earlier.
func ProductionConfig() EngineConfig {
	return DefaultEngineConfig().WithStringSetThreshold(8)
}

func (c EngineConfig) WithCompiledCache(enable bool) EngineConfig {
	c.EnableCompiledCache = enable
	return c
}

func (c EngineConfig) WithOverride(allow bool) EngineConfig {
	c.AllowOverride = allow
	return c
}

func (c EngineConfig) WithDoubleEpsilon(eps float64) EngineConfig {
	c.DoubleEpsilon = eps
	return c
}

func (c EngineConfig) WithStringSetThreshold(n int) EngineConfig {
	c.StringSetThreshold = n
	return c
}

func (c EngineConfig) WithEmptyFilterMatches(match bool) EngineConfig {
	c.EmptyFilterMatches = match
	return c
}

func (c EngineConfig) WithAsyncCacheWrites(async bool) EngineConfig {
	c.AsyncCacheWrites = async
	return c
}

func (c EngineConfig) Validate() error {
	if c.DoubleEpsilon < 0 || math.IsNaN(c.DoubleEpsilon) {
		return OptionErrorf("double_epsilon must be >= 0, got %v", c.DoubleEpsilon)
	}
	if c.StringSetThreshold < 1 {
		return OptionErrorf("string_set_threshold must be >= 1, got %d", c.StringSetThreshold)
	}
	return nil
}

// ParseEngineConfig reads YAML on top of DefaultEngineConfig.
func ParseEngineConfig(data []byte) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, errors.Wrap(err, "decode engine config")
	}
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

func LoadEngineConfig(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, errors.Wrapf(err, "read engine config %s", path)
	}
	return ParseEngineConfig(data)
}
