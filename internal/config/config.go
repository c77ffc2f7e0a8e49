// Package config loads the settings of the dyncors command from
// configuration files and environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

const EnvConfigFiles = "DYNCORS_CONFIG"

// Config is the root configuration of the dyncors command.
type Config struct {
	Server ServerConfig   `toml:"server" yaml:"server" json:"server"`
	CORS   map[string]any `toml:"cors" yaml:"cors" json:"cors"`
}

// Load reads the given config files in order, each one overlaying the
// previous ones, then applies environment variables and finalizes all
// values. If no path is given, the comma-separated list of paths in
// DYNCORS_CONFIG (if any) is used instead. Without any config file,
// defaults and environment variables provide all configuration.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = envPaths()
	}
	cfg := &Config{}
	for _, path := range paths {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if err := cfg.Merge(overlay); err != nil {
			return nil, fmt.Errorf("merge %s: %w", path, err)
		}
	}
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Merge overwrites non-zero server fields from overlay and deep-merges
// its CORS settings into c's, overlay values winning.
func (c *Config) Merge(overlay *Config) error {
	c.Server.Merge(&overlay.Server)
	if len(overlay.CORS) == 0 {
		return nil
	}
	if c.CORS == nil {
		c.CORS = make(map[string]any, len(overlay.CORS))
	}
	return mergo.Map(&c.CORS, overlay.CORS, mergo.WithOverride)
}

func (c *Config) finalize() error {
	c.loadEnv()
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() {
	for key, name := range corsEnv {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if c.CORS == nil {
			c.CORS = make(map[string]any)
		}
		c.CORS[key] = envValue(key, v)
	}
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	unmarshal, err := unmarshalerFor(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func unmarshalerFor(path string) (func([]byte, any) error, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return toml.Unmarshal, nil
	case ".yaml", ".yml":
		return yaml.Unmarshal, nil
	case ".json":
		return json.Unmarshal, nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
}

func envPaths() []string {
	var paths []string
	for path := range strings.SplitSeq(os.Getenv(EnvConfigFiles), ",") {
		if path = strings.TrimSpace(path); path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}
