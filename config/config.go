package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultModuleAddress holds collateral and escrowed native value when the
// config does not name one.
const DefaultModuleAddress = "0x000000000000000000000000000000000000ba4c"

// Default returns a configuration suitable for a local in-memory node.
func Default() Config {
	return Config{
		ListenAddress: ":8080",
		Environment:   "dev",
		ModuleAddress: DefaultModuleAddress,
		Auth: AuthConfig{
			ClockSkew: 2 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults. Files ending in .yaml or .yml are
// decoded as YAML; everything else as TOML. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(raw), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.Environment = strings.TrimSpace(c.Environment)
	if strings.TrimSpace(c.ModuleAddress) == "" {
		c.ModuleAddress = DefaultModuleAddress
	}
	for i := range c.Oracles {
		src := strings.ToLower(strings.TrimSpace(c.Oracles[i].Source))
		if src == "" {
			src = SourceSimple
		}
		c.Oracles[i].Source = src
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Auth.ClockSkew <= 0 {
		c.Auth.ClockSkew = 2 * time.Minute
	}
}
