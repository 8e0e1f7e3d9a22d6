package control

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/genricoloni/wallcycle/internal/engine"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry owns the running playlist engines, at most one per monitor
type Registry struct {
	logger *zap.Logger
	deps   engine.Deps

	// lifecycle serializes starts and stops so evicting the previous engine
	// and binding the new one cannot interleave
	lifecycle sync.Mutex

	mu      sync.Mutex
	engines map[string]*engine.Engine

	pick func(n int) int
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger, deps engine.Deps) *Registry {
	return &Registry{
		logger:  logger,
		deps:    deps,
		engines: make(map[string]*engine.Engine),
		pick:    rand.IntN,
	}
}

// Start runs playlistName on monitor, stopping whatever ran there before
func (r *Registry) Start(ctx context.Context, playlistName string, monitor domain.ActiveMonitor) (string, error) {
	if playlistName == "" || monitor.Name == "" {
		return "", fmt.Errorf("%w: start needs a playlist name and a monitor", domain.ErrConfiguration)
	}

	r.lifecycle.Lock()
	for _, old := range r.takeOverlapping(monitor) {
		r.logger.Info("Replacing running playlist",
			zap.String("old", old.Name()),
			zap.String("monitor", old.Monitor().Name),
			zap.String("new", playlistName))
		if err := old.Stop(ctx); err != nil {
			r.logger.Warn("Failed to stop replaced playlist", zap.Error(err))
		}
	}

	e, err := engine.New(ctx, r.deps, playlistName, monitor)
	if err != nil {
		r.lifecycle.Unlock()
		return "", err
	}
	r.mu.Lock()
	r.engines[monitor.Name] = e
	r.mu.Unlock()
	r.lifecycle.Unlock()

	if err := e.Start(ctx); err != nil {
		r.remove(monitor.Name, e)
		if serr := e.Stop(ctx); serr != nil {
			r.logger.Warn("Failed to clean up playlist that did not start", zap.Error(serr))
		}
		return "", err
	}
	return fmt.Sprintf("Started %s on %s", playlistName, monitor.Name), nil
}

// takeOverlapping removes and returns every engine sharing an output with monitor
func (r *Registry) takeOverlapping(monitor domain.ActiveMonitor) []*engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	var taken []*engine.Engine
	for name, e := range r.engines {
		if name == monitor.Name || overlaps(e.Monitor(), monitor) {
			taken = append(taken, e)
			delete(r.engines, name)
		}
	}
	return taken
}

func overlaps(a, b domain.ActiveMonitor) bool {
	for _, m := range a.Monitors {
		if slices.ContainsFunc(b.Monitors, func(o domain.Monitor) bool { return o.Name == m.Name }) {
			return true
		}
	}
	return false
}

func (r *Registry) remove(monitor string, e *engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engines[monitor] == e {
		delete(r.engines, monitor)
	}
}

// Lookup returns the engine running on monitor
func (r *Registry) Lookup(monitor string) (*engine.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engines[monitor]
	if !ok {
		return nil, fmt.Errorf("%w %q", domain.ErrRouting, monitor)
	}
	return e, nil
}

// Stop stops the playlist on monitor and forgets its binding
func (r *Registry) Stop(ctx context.Context, monitor string) (string, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	e, err := r.Lookup(monitor)
	if err != nil {
		return "", err
	}
	r.remove(monitor, e)

	if err := e.Stop(ctx); err != nil {
		// Keep the engine reachable so a later stop retries the removal
		r.mu.Lock()
		if _, taken := r.engines[monitor]; !taken {
			r.engines[monitor] = e
		}
		r.mu.Unlock()
		return "", err
	}
	return fmt.Sprintf("Stopped %s on %s", e.Name(), monitor), nil
}

// RandomImage shows a random stored image on monitor, or on every monitor
// with a running playlist when monitor is nil
func (r *Registry) RandomImage(ctx context.Context, monitor *domain.ActiveMonitor) (string, error) {
	images, err := r.deps.Store.GetAllImages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w: no images in the database", domain.ErrNotFound)
	}
	img := images[r.pick(len(images))]

	if monitor != nil {
		if e, err := r.Lookup(monitor.Name); err == nil {
			if err := e.SetImage(ctx, img); err != nil {
				return "", err
			}
		} else if err := engine.Apply(ctx, r.deps, *monitor, img, true); err != nil {
			r.deps.Notifier.Notify(ctx, err.Error())
			return "", err
		}
		return fmt.Sprintf("Setting: %s", img.Name), nil
	}

	running := r.all()
	if len(running) == 0 {
		return "", fmt.Errorf("%w: no monitor given and no playlist running", domain.ErrRouting)
	}
	var errs error
	for _, e := range running {
		errs = multierr.Append(errs, e.SetImage(ctx, img))
	}
	if errs != nil {
		return "", errs
	}
	return fmt.Sprintf("Setting: %s", img.Name), nil
}

// Info returns diagnostics for monitor, or for every engine when monitor is empty
func (r *Registry) Info(monitor string) ([]domain.Diagnostics, error) {
	if monitor != "" {
		e, err := r.Lookup(monitor)
		if err != nil {
			return nil, err
		}
		return []domain.Diagnostics{e.Diagnostics()}, nil
	}

	running := r.all()
	info := make([]domain.Diagnostics, 0, len(running))
	for _, e := range running {
		info = append(info, e.Diagnostics())
	}
	return info, nil
}

// ResumeActive starts every playlist that was bound to a monitor when the
// daemon last exited
func (r *Registry) ResumeActive(ctx context.Context) error {
	active, err := r.deps.Store.GetActivePlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active playlists: %w", err)
	}

	var errs error
	for _, a := range active {
		r.logger.Info("Resuming playlist",
			zap.String("playlist", a.Playlist.Name),
			zap.String("monitor", a.Monitor.Name))
		if _, err := r.Start(ctx, a.Playlist.Name, a.Monitor); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("resume %s on %s: %w", a.Playlist.Name, a.Monitor.Name, err))
		}
	}
	return errs
}

// Reconcile asks every engine to catch up on wake-ups it missed, as after
// the machine resumes from sleep
func (r *Registry) Reconcile(ctx context.Context) {
	running := r.all()
	r.logger.Info("Checking playlists for missed changes", zap.Int("count", len(running)))
	for _, e := range running {
		e.Reconcile(ctx)
	}
}

// ShutdownAll halts every engine, keeping their bindings for the next start
func (r *Registry) ShutdownAll() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	running := make([]*engine.Engine, 0, len(r.engines))
	for name, e := range r.engines {
		running = append(running, e)
		delete(r.engines, name)
	}
	r.mu.Unlock()

	for _, e := range running {
		e.Shutdown()
	}
	r.logger.Info("All playlists shut down", zap.Int("count", len(running)))
}

// all returns the running engines ordered by monitor name
func (r *Registry) all() []*engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)

	running := make([]*engine.Engine, 0, len(names))
	for _, name := range names {
		running = append(running, r.engines[name])
	}
	return running
}

// isRouting reports whether err only means nothing runs on the target
func isRouting(err error) bool {
	return errors.Is(err, domain.ErrRouting)
}
