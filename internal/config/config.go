package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Convert struct {
		Overwrite   bool   `yaml:"overwrite" toml:"overwrite"`
		Format      string `yaml:"format" toml:"format"`             // usda or usdz; empty follows the extension
		DefaultPrim string `yaml:"default_prim" toml:"default_prim"` // "auto", a prim name, or empty
		UpAxis      string `yaml:"up_axis" toml:"up_axis"`
	} `yaml:"convert" toml:"convert"`
	TSCN struct {
		Indent       int    `yaml:"indent" toml:"indent"`
		ResourceType string `yaml:"resource_type" toml:"resource_type"`
	} `yaml:"tscn" toml:"tscn"`
	Journal struct {
		Path string `yaml:"path" toml:"path"`
	} `yaml:"journal" toml:"journal"`
	Report struct {
		Dir string `yaml:"dir" toml:"dir"`
	} `yaml:"report" toml:"report"`
	Log struct {
		Level string `yaml:"level" toml:"level"`
	} `yaml:"log" toml:"log"`
	Jobs []Job `yaml:"jobs" toml:"jobs"`
}

// Job is one batch conversion run by the root command.
type Job struct {
	Source string `yaml:"source" toml:"source"`
	Dest   string `yaml:"dest" toml:"dest"`
	// Tree is an optional JSON tree document for TSCN to USD jobs.
	Tree string `yaml:"tree" toml:"tree"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Convert.DefaultPrim = "auto"
	cfg.TSCN.Indent = 2
	cfg.TSCN.ResourceType = "Resource"
	cfg.Journal.Path = ".tscnusd/journal.db"
	cfg.Log.Level = "info"
	return &cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load config file
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		case strings.EqualFold(filepath.Ext(path), ".toml"):
			if err := toml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		default:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if journal := os.Getenv("TSCNUSD_JOURNAL"); journal != "" {
		cfg.Journal.Path = journal
	}
	if overwrite := os.Getenv("TSCNUSD_OVERWRITE"); overwrite != "" {
		v, err := strconv.ParseBool(overwrite)
		if err != nil {
			return nil, fmt.Errorf("TSCNUSD_OVERWRITE: %w", err)
		}
		cfg.Convert.Overwrite = v
	}
	if level := os.Getenv("TSCNUSD_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if indent := os.Getenv("TSCNUSD_INDENT"); indent != "" {
		n, err := strconv.Atoi(indent)
		if err != nil {
			return nil, fmt.Errorf("TSCNUSD_INDENT: %w", err)
		}
		cfg.TSCN.Indent = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no conversion can honor.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Convert.Format) {
	case "", "usda", "usdz":
	default:
		return fmt.Errorf("convert.format: unsupported format %q", c.Convert.Format)
	}
	switch strings.ToUpper(c.Convert.UpAxis) {
	case "", "Y", "Z":
	default:
		return fmt.Errorf("convert.up_axis: must be Y or Z, got %q", c.Convert.UpAxis)
	}
	if c.TSCN.Indent < -1 {
		return fmt.Errorf("tscn.indent: must be -1 (flat) or more, got %d", c.TSCN.Indent)
	}
	for i, j := range c.Jobs {
		if j.Source == "" || j.Dest == "" {
			return fmt.Errorf("jobs[%d]: source and dest are required", i)
		}
	}
	return nil
}
