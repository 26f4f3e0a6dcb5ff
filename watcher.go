package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay coalesces bursts of writes into one reload.
const reloadDelay = 500 * time.Millisecond

// Reloader rebuilds the store from disk.
type Reloader interface {
	Reload() error
}

// cutoffDirer locates the watched directory.
type cutoffDirer interface {
	Reloader
	TrendsDir() string
}

// TrendsDir returns the directory the store imports from.
func (d *DB) TrendsDir() string {
	return TrendsDir(d.dataDir)
}

// WatchCutoffs reloads the store when a yearly CSV is created, written,
// renamed or removed. It returns when ctx is cancelled.
func WatchCutoffs(ctx context.Context, store cutoffDirer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := store.TrendsDir()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if logger != nil {
		logger.Info("Watching cutoff files", zap.String("dir", dir))
	}

	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isCutoffFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Warn("Watcher error", zap.Error(err))
			}

		case <-timer.C:
			if err := store.Reload(); err != nil {
				if logger != nil {
					logger.Error("Cutoff reload failed", zap.Error(err))
				}
				continue
			}
			if logger != nil {
				logger.Info("Cutoff data reloaded", zap.String("dir", dir))
			}
		}
	}
}

// isCutoffFile matches the yearly CSV names the store imports.
func isCutoffFile(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".csv") {
		return false
	}
	year := strings.TrimSuffix(base, ".csv")
	for _, y := range cutoffYears {
		if fmt.Sprint(y) == year {
			return true
		}
	}
	return false
}
