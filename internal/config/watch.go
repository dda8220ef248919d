// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/haven-tui/internal/logging"
)

// =============================================================================
// CONFIG FILE WATCHER
// =============================================================================

// debounceDelay coalesces the write bursts editors produce when saving.
const debounceDelay = 500 * time.Millisecond

// Watcher reports external edits to the config file. Each edit burst
// produces one reloaded *Config on Changes.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	changes chan *Config

	ctx    context.Context
	cancel context.CancelFunc

	log *logging.Logger
}

// Watch starts watching the config file at path. The parent directory is
// watched rather than the file itself so atomic rename saves are seen.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:    path,
		fsw:     fsw,
		changes: make(chan *Config, 1),
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.New("config"),
	}
	go w.run()
	return w, nil
}

// Changes delivers a freshly loaded config after each external edit.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	return w.fsw.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
			} else {
				timer.Reset(debounceDelay)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			cfg, err := LoadFromPath(w.path)
			if err != nil {
				w.log.Warnf("config reload failed: %v", err)
				continue
			}
			select {
			case w.changes <- cfg:
			default:
				// A pending reload is superseded by this one.
				select {
				case <-w.changes:
				default:
				}
				w.changes <- cfg
			}
			w.log.Infof("config reloaded from %s", w.path)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warnf("config watch error: %v", err)
		}
	}
}
