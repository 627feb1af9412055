// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// HOT RELOAD
// =============================================================================

// debounceWindow coalesces editor write bursts into one reload. Editors
// that write via rename produce several events per save.
const debounceWindow = 250 * time.Millisecond

// Watcher hot-reloads the global config when the file changes on disk.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onReload func(*Config)
	done     chan struct{}
}

// Watch starts watching the config directory. onReload (optional) runs
// after each successful reload with the fresh config.
func Watch(onReload func(*Config)) (*Watcher, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := EnsureConfigDir(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: rename-based saves replace the
	// inode and would silently detach a file watch.
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	// The timer starts stopped and is rearmed per event burst. Reset on a
	// timer that already fired would leave the stale tick in the channel,
	// so it is stopped and drained first.
	timer := time.NewTimer(debounceWindow)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if name != "config.toml" && name != "config.json" {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounceWindow)

		case <-timer.C:
			if err := ReloadGlobal(); err != nil {
				log.Printf("config: reload failed, keeping previous config: %v", err)
				continue
			}
			if w.onReload != nil {
				w.onReload(Global())
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config: watch error: %v", err)
		}
	}
}
