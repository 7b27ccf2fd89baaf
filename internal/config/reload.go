package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/fsgate/internal/logging"
)

const reloadDebounce = 500 * time.Millisecond

// Reloader watches the settings file and hands each successfully parsed
// version to a callback. Parse failures keep the previous settings.
type Reloader struct {
	watcher  *fsnotify.Watcher
	path     string
	apply    func(*Config)
	logger   *logging.Logger
	debounce time.Duration
}

// NewReloader watches the directory holding path, so editors that replace
// the file by rename are picked up too.
func NewReloader(path string, apply func(*Config), logger *logging.Logger) (*Reloader, error) {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(path), err)
	}
	return &Reloader{
		watcher:  watcher,
		path:     filepath.Clean(path),
		apply:    apply,
		logger:   logger,
		debounce: reloadDebounce,
	}, nil
}

// Run watches for changes until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var (
		mu       sync.Mutex
		debounce *time.Timer
	)
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if debounce != nil {
			debounce.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(r.debounce, r.reload)
			mu.Unlock()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := Load(r.path)
	if err != nil {
		r.logger.Error("config reload failed", "path", r.path, "error", err)
		return
	}
	r.logger.Info("config reloaded", "path", r.path, "log_level", cfg.LogLevel)
	if r.apply != nil {
		r.apply(cfg)
	}
}
