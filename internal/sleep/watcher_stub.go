//go:build !linux

package sleep

import (
	"context"

	"go.uber.org/zap"
)

// ResumeFunc is called after the machine resumes
type ResumeFunc func(ctx context.Context)

// Watcher is a no-op on platforms without logind
type Watcher struct {
	logger *zap.Logger
}

// NewWatcher creates a watcher that never fires
func NewWatcher(logger *zap.Logger, _ ResumeFunc) *Watcher {
	return &Watcher{logger: logger}
}

// Start logs that resume detection is unavailable
func (w *Watcher) Start(context.Context) error {
	w.logger.Info("Resume detection is only supported on Linux")
	return nil
}

// Stop is a no-op
func (w *Watcher) Stop(context.Context) error {
	return nil
}
