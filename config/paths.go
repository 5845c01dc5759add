// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/paths.go
// Summary: Locations of the config file, logs and history database.

package config

import (
	"os"
	"path/filepath"
)

const configFileName = "texelvt.json"

// Dir returns the texelvt directory under the user config dir.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "texelvt"), nil
}

// DefaultPath returns the config file used when no -config flag is given.
func DefaultPath() (string, error) {
	return inDir(configFileName)
}

// LogPath returns the log file location.
func LogPath() (string, error) {
	return inDir("logs", "texelvt.log")
}

// HistoryPath returns the default scrollback archive location.
func HistoryPath() (string, error) {
	return inDir("history.db")
}

func inDir(elem ...string) (string, error) {
	root, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{root}, elem...)...), nil
}
