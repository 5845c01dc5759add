// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for every config section.

package config

import "os"

// Section names.
const (
	SectionTerminal   = "terminal"
	SectionScrollback = "scrollback"
	SectionRender     = "render"
	SectionLog        = "log"
)

func defaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/bash"
}

func applyDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	cfg.RegisterDefaults(SectionTerminal, Section{
		"shell":         defaultShell(),
		"deferred_wrap": true,
		"rows":          24,
		"cols":          80,
	})
	// An empty archive_path means HistoryPath().
	cfg.RegisterDefaults(SectionScrollback, Section{
		"lines":            2000,
		"archive":          false,
		"archive_path":     "",
		"batch_size":       100,
		"batch_timeout_ms": 5000,
	})
	cfg.RegisterDefaults(SectionRender, Section{
		"border":       true,
		"border_chars": "*+-",
		"toggle_key":   "ctrl-d",
	})
	cfg.RegisterDefaults(SectionLog, Section{
		"verbose": false,
	})
}
