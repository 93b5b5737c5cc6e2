// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/renogy-rtu/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := lookupCommand(os.Args[1])
	if cmd == nil {
		if os.Args[1] != "help" && os.Args[1] != "-h" && os.Args[1] != "--help" {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		}
		usage()
		os.Exit(2)
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file")
	verbose := fs.BoolP("verbose", "v", false, "Enable debug logging")
	addGlobalFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: renogy-rtu %s\n\n%s\n\nFlags:\n", cmd.usage, cmd.summary)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	// Load Configuration
	cfg, err := config.LoadConfig(*configFile, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, cfg, fs); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringP("port", "p", "/dev/ttyUSB0", "Serial port device")
	fs.IntP("device-id", "d", 1, "Modbus device id (1-247)")
	fs.IntP("baud", "b", 9600, "Baud rate")
	fs.Duration("timeout", 0, "Response timeout (default from config, 1s)")
	fs.Duration("settle", 0, "Delay between request and response read, 0 derives it from the baud rate")
	fs.String("driver", config.DriverNative, "Serial driver: native, rs485 or simulator")
	fs.StringP("output", "o", config.FormatText, "Output format: text, json or yaml")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("log-file", "", "Log file path, - or empty for stderr")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: renogy-rtu <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-30s %s\n", c.usage, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'renogy-rtu <command> --help' for command flags.\n")
}

// setupLogger writes to stderr unless a file is configured; stdout carries
// the rendered output.
func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
