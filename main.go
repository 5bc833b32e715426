// parley - terminal client for a local LLM chat backend.
//
// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-chat/parley/internal/backend"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/correlate"
	"github.com/parley-chat/parley/internal/transport"
	"github.com/parley-chat/parley/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("parley %s (%s, built %s)\n", Version, GitCommit, BuildDate)
			return
		case "config":
			handleConfig(os.Args[2:])
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	if err := runTUI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: parley [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none)          start the chat interface")
	fmt.Println("  config init     write a default config file")
	fmt.Println("  config path     print the config file location")
	fmt.Println("  version         print version information")
}

// handleConfig implements the config subcommands.
func handleConfig(args []string) {
	path, err := config.ConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "path", "":
		fmt.Println(path)
	case "init":
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Fprintf(os.Stderr, "config already exists at %s\n", path)
			os.Exit(1)
		}
		if err := config.Save(config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
	default:
		fmt.Fprintf(os.Stderr, "unknown config command: %s\n", sub)
		os.Exit(1)
	}
}

// setupLogging opens the log file and builds the application logger.
// The UI owns the terminal, so logs never go to stdout or stderr.
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	path, err := cfg.LogPath()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { file.Close() }, nil
}

func runTUI() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Info("starting", "version", Version)

	corr := correlate.New(logger)
	tr := transport.New(&transport.Config{
		Endpoint:             cfg.Connection.Endpoint,
		Token:                cfg.Connection.Token,
		BaseDelay:            cfg.ReconnectDelay(),
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
	}, corr, logger)

	client := backend.New(tr, corr, &backend.Config{
		ControlTimeout: cfg.ControlTimeout(),
		ChatTimeout:    cfg.ChatTimeout(),
		WatchdogWindow: cfg.WatchdogWindow(),
	}, logger)

	store := chat.NewStore(client, logger)
	if cfg.Generation.Model != "" {
		store.SetModel(cfg.Generation.Model)
	}

	if err := tr.Connect(); err != nil {
		logger.Warn("initial connect failed", "error", err)
		go retryInitialConnect(tr, cfg, logger)
	}

	model := ui.NewModel(store, client, cfg)
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Store, transport, and config watcher all push into the UI through
	// program.Send so every mutation lands on the Update goroutine.
	store.SetNotify(func(e chat.Event) {
		program.Send(ui.StoreEventMsg{Event: e})
	})
	tr.SetStateListener(func(state transport.State, err error) {
		program.Send(ui.ConnStateMsg{State: state, Err: err})
	})

	configPath, err := config.ConfigPath()
	if err == nil {
		stopWatch, watchErr := config.Watch(configPath, logger, func(reloaded *config.Config) {
			program.Send(ui.ConfigReloadedMsg{Config: reloaded})
		})
		if watchErr != nil {
			logger.Warn("config watch unavailable", "error", watchErr)
		} else {
			defer stopWatch()
		}
	}

	_, err = program.Run()
	tr.Disconnect()
	logger.Info("exiting")
	return err
}

// retryInitialConnect retries a failed startup dial with the same linear
// backoff the transport uses after a drop.
func retryInitialConnect(tr *transport.Transport, cfg *config.Config, logger *slog.Logger) {
	for attempt := 1; attempt <= cfg.Connection.MaxReconnectAttempts; attempt++ {
		time.Sleep(cfg.ReconnectDelay() * time.Duration(attempt))
		if err := tr.Connect(); err == nil {
			return
		}
		logger.Warn("startup reconnect failed", "attempt", attempt)
	}
	logger.Error("could not reach backend", "endpoint", cfg.Connection.Endpoint)
}
