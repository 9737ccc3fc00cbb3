// Package config loads the run configuration of a deobfuscation run from a
// .properties or YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
	"gopkg.in/yaml.v3"
)

// Config describes one run: the archive to remap, the platform version it
// targets and where the mapping tables and decompiler live.
type Config struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	Version  string `yaml:"version"`
	Side     string `yaml:"side"`
	Mappings string `yaml:"mappings"`

	// Reference is the platform archive the input is compiled against;
	// ReferenceOutput is where its deobfuscated copy is kept.
	Reference       string `yaml:"reference"`
	ReferenceOutput string `yaml:"reference.output"`

	Decompile     bool   `yaml:"decompile"`
	DecompilerJar string `yaml:"decompiler.jar"`
	DecompileDir  string `yaml:"decompile.dir"`
	Java          string `yaml:"java"`

	// Graph, when set, receives the class hierarchy in DOT format.
	Graph string `yaml:"graph"`
}

var (
	ErrNoInput   = errors.New("input is required")
	ErrNoVersion = errors.New("version is required")
)

// Load reads path, choosing the format by extension, fills in defaults and
// validates the result.
func Load(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		cfg, err = loadProperties(path)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func loadProperties(path string) (*Config, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, err
	}
	return &Config{
		Input:           p.GetString("input", ""),
		Output:          p.GetString("output", ""),
		Version:         p.GetString("version", ""),
		Side:            p.GetString("side", ""),
		Mappings:        p.GetString("mappings", ""),
		Reference:       p.GetString("reference", ""),
		ReferenceOutput: p.GetString("reference.output", ""),
		Decompile:       p.GetBool("decompile", false),
		DecompilerJar:   p.GetString("decompiler.jar", ""),
		DecompileDir:    p.GetString("decompile.dir", ""),
		Java:            p.GetString("java", ""),
		Graph:           p.GetString("graph", ""),
	}, nil
}

// SetDefaults fills every unset value that can be derived from the others.
func (c *Config) SetDefaults() {
	if c.Side == "" {
		c.Side = "client"
	}
	if c.Version != "" {
		if c.Mappings == "" {
			c.Mappings = filepath.Join("mappings", c.Version)
		}
		if c.Reference == "" {
			c.Reference = c.Version + ".jar"
		}
		if c.ReferenceOutput == "" {
			c.ReferenceOutput = c.Version + ".deobf.jar"
		}
	}
	if c.Output == "" && c.Input != "" {
		c.Output = strings.TrimSuffix(c.Input, filepath.Ext(c.Input)) + ".deobf.jar"
	}
	if c.DecompileDir == "" {
		c.DecompileDir = "decompile"
	}
	if c.Java == "" {
		c.Java = "java"
	}
}

// Validate reports settings a run cannot start without.
func (c *Config) Validate() error {
	if c.Input == "" {
		return ErrNoInput
	}
	if c.Version == "" {
		return ErrNoVersion
	}
	if c.Decompile && c.DecompilerJar == "" {
		return errors.New("decompile needs decompiler.jar")
	}
	return nil
}

// SRGPath is the structural mapping table for the configured side.
func (c *Config) SRGPath() string {
	return filepath.Join(c.Mappings, c.Side+".srg")
}
