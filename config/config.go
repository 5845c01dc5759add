// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: JSON configuration file for texelvt.
// Usage: cmd/texelvt calls Load once at startup and reads typed values with
//   the getters in types.go.
// Notes: A missing file is created with the defaults; an unreadable one is
//   replaced in memory by the defaults and the error is returned.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Config stores configuration sections as JSON-compatible data.
type Config map[string]interface{}

// Section stores key/value pairs for a configuration section.
type Section map[string]interface{}

// Default returns a config holding only the built-in defaults.
func Default() Config {
	cfg := make(Config)
	applyDefaults(cfg)
	return cfg
}

// Load reads the config at path, filling in defaults for missing keys. An
// empty path selects DefaultPath. The returned config is always usable.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			log.Printf("Config: Failed to resolve config path: %v", err)
			return Default(), err
		}
		path = p
	}

	cfg, exists, err := readConfig(path)
	if err != nil {
		log.Printf("Config: Failed to read %s: %v", path, err)
		return Default(), err
	}
	if !exists {
		cfg = Default()
		if err := writeConfig(path, cfg); err != nil {
			log.Printf("Config: Failed to write default config: %v", err)
			return cfg, err
		}
		log.Printf("Config: Wrote default config to %s", path)
		return cfg, nil
	}

	if cfg == nil {
		cfg = make(Config)
	}
	applyDefaults(cfg)
	log.Printf("Config: Loaded config from %s", path)
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	return writeConfig(path, cfg)
}

func readConfig(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, true, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, true, nil
}

func writeConfig(path string, cfg Config) error {
	if cfg == nil {
		cfg = make(Config)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
