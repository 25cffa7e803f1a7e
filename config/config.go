// Package config handles brainfuck.toml workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the workspace configuration file name.
const FileName = "brainfuck.toml"

// Config represents a brainfuck.toml workspace configuration.
type Config struct {
	Interpreter Interpreter `toml:"interpreter"`
	Server      Srv         `toml:"server"`
	Library     Library     `toml:"library"`

	// Dir is the directory containing the brainfuck.toml file (set at load time).
	Dir string `toml:"-"`
}

// Interpreter configures the execution engine.
type Interpreter struct {
	MemorySize int `toml:"memory-size"`
}

// Srv configures the session server.
type Srv struct {
	Listen string `toml:"listen"`
}

// Library configures program storage.
type Library struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Interpreter.MemorySize == 0 {
		c.Interpreter.MemorySize = 30000
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":4567"
	}
	if c.Library.Path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Library.Path = filepath.Join(home, ".brainfuck", "library.db")
		} else {
			c.Library.Path = "library.db"
		}
	}
}

// Load parses a brainfuck.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if c.Interpreter.MemorySize < 0 {
		return nil, fmt.Errorf("%s: interpreter.memory-size must be positive", path)
	}
	c.applyDefaults()

	return &c, nil
}

// FindAndLoad walks up from startDir to find a brainfuck.toml file,
// then loads and returns the configuration. Returns the defaults if no
// file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}
