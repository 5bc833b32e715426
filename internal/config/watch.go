// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of fsnotify events an editor save
// produces into one reload.
const debounceWindow = 200 * time.Millisecond

// WatchFunc receives each successfully reloaded configuration.
type WatchFunc func(*Config)

// Watch observes the config file and calls fn with a validated Config
// after every on-disk change. Reload failures are logged and skipped;
// the previous configuration stays in effect. The returned stop function
// ends the watch.
//
// The parent directory is watched rather than the file itself, because
// atomic saves replace the file and would otherwise drop the watch.
func Watch(path string, logger *slog.Logger, fn WatchFunc) (func(), error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)

	var mu sync.Mutex
	var pending *time.Timer

	reload := func() {
		cfg, err := LoadFromPath(target)
		if err != nil {
			logger.Warn("config reload failed", "path", target, "error", err)
			return
		}
		logger.Info("config reloaded", "path", target)
		fn(cfg)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(debounceWindow, reload)
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	stop := func() {
		mu.Lock()
		if pending != nil {
			pending.Stop()
		}
		mu.Unlock()
		watcher.Close()
	}
	return stop, nil
}
