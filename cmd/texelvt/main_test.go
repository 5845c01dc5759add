// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/framegrace/texelvt/config"
	"github.com/framegrace/texelvt/internal/devshell"
	"github.com/framegrace/texelvt/internal/ioloop"
	"github.com/framegrace/texelvt/internal/scrollback"
	"github.com/framegrace/texelvt/session"
)

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"-headless", "-config", "/tmp/x.json", "--", "vim", "-u", "NONE"}, &stderr)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !opts.headless || opts.configPath != "/tmp/x.json" || opts.limit != 20 {
		t.Errorf("opts = %+v", opts)
	}
	if !reflect.DeepEqual(opts.command, []string{"vim", "-u", "NONE"}) {
		t.Errorf("command = %q", opts.command)
	}

	if _, err := parseArgs([]string{"-nope"}, &stderr); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestShellOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Set(config.SectionTerminal, "shell", "/bin/zsh")
	cfg.Set(config.SectionRender, "toggle_key", "none")

	got := shellOptions(cfg, cliOptions{})
	if got.Program != "/bin/zsh" || len(got.Args) != 0 || got.ToggleKey != "none" || !got.DeferredWrap || !got.Border {
		t.Errorf("from config = %+v", got)
	}

	got = shellOptions(cfg, cliOptions{command: []string{"top", "-b"}})
	if got.Program != "top" || !reflect.DeepEqual(got.Args, []string{"-b"}) {
		t.Errorf("from command line = %+v", got)
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name     string
		res      devshell.Result
		err      error
		wantCode int
		wantMsg  string
	}{
		{"clean exit", devshell.Result{Reason: ioloop.ReasonChildExited, Exited: true}, nil, 0, "child exited (exit status 0)"},
		{"child status", devshell.Result{Reason: ioloop.ReasonChildExited, Exited: true, Status: session.ExitStatus{Code: 3}}, nil, 3, "exit status 3"},
		{"shutdown", devshell.Result{Reason: ioloop.ReasonShutdown}, nil, 0, "shutdown"},
		{"spawn failed", devshell.Result{}, fmt.Errorf("%w: nope", session.ErrSpawnFailed), 1, "cannot start program"},
		{"write failed", devshell.Result{Reason: ioloop.ReasonWriteFailed}, fmt.Errorf("%w: EPIPE", session.ErrWriteFailed), 1, "write to child failed"},
		{"other", devshell.Result{}, errors.New("boom"), 1, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if code := report(tt.res, tt.err, &stderr); code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(stderr.String(), tt.wantMsg) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantMsg)
			}
		})
	}
}

func TestRunSearch(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	dbPath := filepath.Join(dir, "history.db")
	archive, err := scrollback.OpenArchive(scrollback.DefaultArchiveConfig(dbPath))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	archive.Append("git status")
	archive.Append("make test")
	if err := archive.Close(); err != nil {
		t.Fatal(err)
	}

	cfgPath := filepath.Join(dir, "texelvt.json")
	cfg := config.Default()
	cfg.Set(config.SectionScrollback, "archive_path", dbPath)
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath, "-search", "git"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run = %d, stderr=%q", code, stderr.String())
	}
	if out := stdout.String(); !strings.Contains(out, "git status") || strings.Contains(out, "make test") {
		t.Errorf("search output = %q", out)
	}
}

func TestArchiveConfigFromSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Set(config.SectionScrollback, "archive_path", "/tmp/h.db")
	cfg.Set(config.SectionScrollback, "batch_size", 7)
	cfg.Set(config.SectionScrollback, "batch_timeout_ms", 250)
	ac, err := archiveConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if ac.Path != "/tmp/h.db" || ac.BatchSize != 7 || ac.BatchTimeout.Milliseconds() != 250 {
		t.Errorf("archive config = %+v", ac)
	}
}
