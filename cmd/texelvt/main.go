// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelvt/main.go
// Summary: Command-line entry point for the texelvt terminal emulator.
// Usage: texelvt [-config path] [-headless] [-verbose-logs] [-- program args...]
//        texelvt -search text [-limit n]
// Notes: Logs go to a file because stdout belongs to the screen. The exit
//   reason is printed after the screen has been released.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/framegrace/texelvt/config"
	"github.com/framegrace/texelvt/grid"
	"github.com/framegrace/texelvt/internal/devshell"
	"github.com/framegrace/texelvt/internal/ioloop"
	"github.com/framegrace/texelvt/internal/scrollback"
	"github.com/framegrace/texelvt/parser"
	"github.com/framegrace/texelvt/session"
)

type cliOptions struct {
	configPath string
	headless   bool
	verbose    bool
	search     string
	limit      int
	command    []string
}

func parseArgs(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("texelvt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to texelvt.json (default: user config dir)")
	fs.BoolVar(&opts.headless, "headless", false, "Run without a screen and print the final screen on exit")
	fs.BoolVar(&opts.verbose, "verbose-logs", false, "Log ignored and malformed sequences")
	fs.StringVar(&opts.search, "search", "", "Search the scrollback archive and exit")
	fs.IntVar(&opts.limit, "limit", 20, "Maximum number of search results")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: texelvt [flags] [-- program args...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.command = fs.Args()
	return opts, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if logFile, err := setupLogging(); err != nil {
		fmt.Fprintf(stderr, "texelvt: logging disabled: %v\n", err)
		log.SetOutput(io.Discard)
	} else {
		defer logFile.Close()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "texelvt: using default config: %v\n", err)
	}
	setVerbose(opts.verbose || cfg.GetBool(config.SectionLog, "verbose", false))

	if opts.search != "" {
		return runSearch(cfg, opts, stdout, stderr)
	}
	return runTerminal(cfg, opts, stderr)
}

func setVerbose(enable bool) {
	parser.SetVerboseLogging(enable)
	grid.SetVerboseLogging(enable)
	ioloop.SetVerboseLogging(enable)
}

func setupLogging() (*os.File, error) {
	logPath, err := config.LogPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	log.SetOutput(file)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return file, nil
}

func archiveConfig(cfg config.Config) (scrollback.ArchiveConfig, error) {
	path := cfg.GetString(config.SectionScrollback, "archive_path", "")
	if path == "" {
		p, err := config.HistoryPath()
		if err != nil {
			return scrollback.ArchiveConfig{}, err
		}
		path = p
	}
	ac := scrollback.DefaultArchiveConfig(path)
	ac.BatchSize = cfg.GetInt(config.SectionScrollback, "batch_size", ac.BatchSize)
	ac.BatchTimeout = cfg.GetDuration(config.SectionScrollback, "batch_timeout_ms", ac.BatchTimeout)
	return ac, nil
}

func runSearch(cfg config.Config, opts cliOptions, stdout, stderr io.Writer) int {
	ac, err := archiveConfig(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "texelvt: %v\n", err)
		return 1
	}
	archive, err := scrollback.OpenArchive(ac)
	if err != nil {
		fmt.Fprintf(stderr, "texelvt: open history: %v\n", err)
		return 1
	}
	defer archive.Close()

	results, err := archive.Search(opts.search, opts.limit)
	if err != nil {
		fmt.Fprintf(stderr, "texelvt: %v\n", err)
		return 1
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "%s  %s\n", r.Timestamp.Format("2006-01-02 15:04:05"), r.Content)
	}
	return 0
}

func shellOptions(cfg config.Config, opts cliOptions) devshell.Options {
	program := cfg.GetString(config.SectionTerminal, "shell", "/bin/bash")
	var args []string
	if len(opts.command) > 0 {
		program, args = opts.command[0], opts.command[1:]
	}
	return devshell.Options{
		Program:      program,
		Args:         args,
		DeferredWrap: cfg.GetBool(config.SectionTerminal, "deferred_wrap", true),
		Border:       cfg.GetBool(config.SectionRender, "border", true),
		BorderChars:  cfg.GetString(config.SectionRender, "border_chars", "*+-"),
		ToggleKey:    cfg.GetString(config.SectionRender, "toggle_key", "ctrl-d"),
		Rows:         cfg.GetInt(config.SectionTerminal, "rows", 24),
		Cols:         cfg.GetInt(config.SectionTerminal, "cols", 80),
	}
}

func runTerminal(cfg config.Config, opts cliOptions, stderr io.Writer) int {
	shell := shellOptions(cfg, opts)

	var archive *scrollback.Archive
	if cfg.GetBool(config.SectionScrollback, "archive", false) {
		ac, err := archiveConfig(cfg)
		if err == nil {
			archive, err = scrollback.OpenArchive(ac)
		}
		if err != nil {
			fmt.Fprintf(stderr, "texelvt: history archive disabled: %v\n", err)
			archive = nil
		} else {
			defer archive.Close()
		}
	}
	var sink scrollback.Appender
	if archive != nil {
		sink = archive
	}
	shell.Scrollback = scrollback.NewRing(cfg.GetInt(config.SectionScrollback, "lines", scrollback.DefaultMaxLines), sink)

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGHUP, os.Interrupt)
	defer stop()

	var res devshell.Result
	var err error
	if opts.headless {
		res, err = devshell.RunHeadless(ctx, shell, os.Stdin, os.Stdout)
	} else {
		res, err = devshell.Run(ctx, shell)
	}
	return report(res, err, stderr)
}

// report prints why the session ended and picks the process exit code.
func report(res devshell.Result, err error, stderr io.Writer) int {
	if err != nil {
		log.Printf("texelvt: %v", err)
		switch {
		case errors.Is(err, session.ErrSpawnFailed):
			fmt.Fprintf(stderr, "texelvt: cannot start program: %v\n", err)
		case errors.Is(err, session.ErrWriteFailed):
			fmt.Fprintf(stderr, "texelvt: %s: %v\n", res.Reason, err)
		default:
			fmt.Fprintf(stderr, "texelvt: %v\n", err)
		}
		return 1
	}
	msg := res.Reason.String()
	if res.Exited {
		msg += " (" + res.Status.String() + ")"
	}
	log.Printf("texelvt: Session ended: %s", msg)
	fmt.Fprintf(stderr, "texelvt: %s\n", msg)
	if res.Exited && res.Status.Code > 0 {
		return res.Status.Code
	}
	return 0
}
