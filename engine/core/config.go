package core

import (
	"bytes"
	"fmt"
	"os"

	"github.com/moby/sys/atomicwriter"
	"github.com/pelletier/go-toml/v2"
)

/** @brief Logging section of the configuration file. */
type LogConfig struct {
	/** @brief One of debug, info, warn, error, fatal. */
	Level string `toml:"level"`
}

/** @brief Resource cache section of the configuration file. */
type CacheConfig struct {
	/** @brief Descriptor sets allocated from a single device pool before a new one is created. */
	DescriptorPoolMaxSets uint32 `toml:"descriptor_pool_max_sets"`
	/** @brief Disables the construction log, which also disables persistence. */
	DisableRecording bool `toml:"disable_recording"`
}

/** @brief Warmup section of the configuration file. */
type WarmupConfig struct {
	Enabled bool `toml:"enabled"`
	/** @brief Location of the persisted construction log. */
	Path string `toml:"path"`
	/** @brief Identifies the application build; files written by another id are discarded. */
	ApplicationID string `toml:"application_id"`
	/** @brief Compresses the persisted payload with zstd. */
	Compress bool `toml:"compress"`
	/** @brief Location of the driver pipeline cache data; empty selects pipeline_cache.data next to path. */
	PipelineCachePath string `toml:"pipeline_cache_path"`
}

/** @brief Shader library section of the configuration file. */
type ShadersConfig struct {
	Directory string `toml:"directory"`
	Watch     bool   `toml:"watch"`
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Cache   CacheConfig   `toml:"cache"`
	Warmup  WarmupConfig  `toml:"warmup"`
	Shaders ShadersConfig `toml:"shaders"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			DescriptorPoolMaxSets: 16,
		},
		Warmup: WarmupConfig{
			Enabled:  true,
			Path:     "cache.data",
			Compress: true,
		},
		Shaders: ShadersConfig{
			Directory: "assets/shaders",
			Watch:     false,
		},
	}
}

// LoadConfig reads a TOML configuration file on top of the defaults. A
// missing file is not an error: the defaults are returned as is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogWarn("No configuration found at '%s', using defaults.", path)
			return cfg, nil
		}
		return nil, err
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes data into cfg, rejecting unknown keys.
func ParseConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Cache.DescriptorPoolMaxSets == 0 {
		return fmt.Errorf("cache.descriptor_pool_max_sets must be greater than 0")
	}
	if c.Warmup.Enabled && c.Warmup.Path == "" {
		return fmt.Errorf("warmup.path is required when warmup is enabled")
	}
	return nil
}

// Save writes the configuration as TOML. The file is replaced atomically.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return atomicwriter.WriteFile(path, data, 0o644)
}
