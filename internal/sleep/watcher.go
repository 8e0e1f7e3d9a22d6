//go:build linux

// Package sleep tells the daemon when the machine wakes up from suspend, so
// playlists can catch up on image changes they slept through.
package sleep

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// ResumeFunc is called after the machine resumes
type ResumeFunc func(ctx context.Context)

// Watcher listens for logind's PrepareForSleep signal
type Watcher struct {
	logger   *zap.Logger
	onResume ResumeFunc
	connect  func() (DBusClient, error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	conn    DBusClient
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher that calls onResume after every resume
func NewWatcher(logger *zap.Logger, onResume ResumeFunc) *Watcher {
	return &Watcher{
		logger:   logger,
		onResume: onResume,
		connect: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Start subscribes to sleep signals and returns. Without a system bus the
// watcher stays idle and the playlists' periodic checks catch up instead.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	conn, err := w.connect()
	if err != nil {
		w.logger.Warn("System bus unavailable, resume detection disabled", zap.Error(err))
		return nil
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(login1Path),
		dbus.WithMatchInterface(login1Manager),
		dbus.WithMatchMember(prepareForSleep),
	); err != nil {
		if cerr := conn.Close(); cerr != nil {
			w.logger.Warn("Failed to close D-Bus connection", zap.Error(cerr))
		}
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.conn = conn
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.watch(watchCtx, signals)

	w.logger.Info("Sleep watcher started")
	return nil
}

// Stop ends the subscription and waits for a resume callback in progress
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	w.running = false
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	w.wg.Wait()

	if err := conn.Close(); err != nil {
		w.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
	}
	w.logger.Info("Sleep watcher stopped")
	return nil
}

func (w *Watcher) watch(ctx context.Context, signals <-chan *dbus.Signal) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig == nil {
				continue
			}
			w.handleSignal(ctx, sig)
		}
	}
}

// handleSignal processes one PrepareForSleep signal. Its only argument is
// true before suspending and false after resuming.
func (w *Watcher) handleSignal(ctx context.Context, sig *dbus.Signal) {
	if sig.Name != login1Manager+"."+prepareForSleep || len(sig.Body) < 1 {
		return
	}

	sleeping, ok := sig.Body[0].(bool)
	if !ok {
		w.logger.Warn("Invalid PrepareForSleep argument, ignoring",
			zap.String("type", fmt.Sprintf("%T", sig.Body[0])))
		return
	}

	if sleeping {
		w.logger.Info("System going to sleep")
		return
	}
	w.logger.Info("System resumed")
	w.onResume(ctx)
}
