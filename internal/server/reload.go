package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the write bursts editors produce when saving.
const reloadDebounce = 300 * time.Millisecond

// Reloader watches the weight and compensating-control files and swaps the
// server's configuration snapshot when they change.
type Reloader struct {
	watcher *fsnotify.Watcher
	server  *Server
	paths   []string
}

// NewReloader creates a file watcher for the given config paths. Paths that
// are empty or missing are skipped rather than failing startup.
func NewReloader(server *Server, paths []string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}

	return &Reloader{watcher: watcher, server: server, paths: watched}, nil
}

// Run watches for config file changes and reloads the snapshot. Blocks
// until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounce.C:
			if err := r.server.Reload(); err != nil {
				// Previous snapshot stays live.
				r.server.logger.Warn("config reload failed, keeping previous snapshot", "error", err)
			} else {
				r.server.logger.Info("configuration reloaded")
			}
			// Editors replace files by rename; re-add dropped watches.
			for _, p := range r.paths {
				if _, err := os.Stat(p); err == nil {
					_ = r.watcher.Add(p)
				}
			}

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(reloadDebounce)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.server.logger.Warn("config watcher error", "error", err)
		}
	}
}
