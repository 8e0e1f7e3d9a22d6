package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads an AppConfig whenever its env file is written
type Watcher struct {
	logger *zap.Logger
	cfg    *AppConfig

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for cfg's env file
func NewWatcher(logger *zap.Logger, cfg *AppConfig) *Watcher {
	return &Watcher{logger: logger, cfg: cfg}
}

// Start begins watching. A missing config directory disables watching.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	dir := filepath.Dir(w.cfg.EnvFile())
	if _, err := os.Stat(dir); err != nil {
		w.logger.Info("Config directory missing, env file will not be watched", zap.String("dir", dir))
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.watcher = watcher
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(watchCtx, watcher)

	w.logger.Info("Watching env file for changes", zap.String("path", w.cfg.EnvFile()))
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	target := filepath.Clean(w.cfg.EnvFile())

	for {
		select {
		case <-ctx.Done():
			return
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
			w.logger.Info("Env file changed, reloading configuration", zap.String("op", event.Op.String()))
			if err := w.cfg.Reload(); err != nil {
				w.logger.Error("Failed to reload configuration", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

// Stop ends watching
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	watcher := w.watcher
	cancel := w.cancel
	w.watcher = nil
	w.cancel = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	cancel()
	err := watcher.Close()
	w.wg.Wait()
	return err
}
