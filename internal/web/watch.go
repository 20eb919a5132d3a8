package web

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the templates whenever a file in dir changes, until ctx is done.
// Bursts of events are coalesced into a single reload.
func (r *Renderer) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.logger.Info("watching templates", "dir", dir)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
				fire = timer.C
			} else {
				timer.Reset(r.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("template watcher error", "error", err)

		case <-fire:
			timer = nil
			fire = nil
			if err := r.Reload(); err != nil {
				r.logger.Error("failed to reload templates", "dir", dir, "error", err)
				continue
			}
			r.logger.Info("reloaded templates", "dir", dir)
		}
	}
}
