package control

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/genricoloni/wallcycle/internal/engine"
	"github.com/genricoloni/wallcycle/internal/events"
	"github.com/genricoloni/wallcycle/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testConfig struct{}

func (testConfig) GetSocketPath() string               { return "" }
func (testConfig) GetDatabasePath() string             { return "" }
func (testConfig) GetImagesDir() string                { return "" }
func (testConfig) GetCacheDir() string                 { return "" }
func (testConfig) GetSetter() string                   { return "auto" }
func (testConfig) GetTransition() domain.Transition    { return domain.Transition{} }
func (testConfig) GetApplyRetries() int                { return 2 }
func (testConfig) GetRetryDelay() time.Duration        { return time.Millisecond }
func (testConfig) GetReconcileInterval() time.Duration { return 10 * time.Second }
func (testConfig) NotificationsEnabled() bool          { return true }

// fakeBackend records which images went to which monitor
type fakeBackend struct {
	mu      sync.Mutex
	applied map[string][]string
	fail    error
}

func (b *fakeBackend) record(img domain.Image, monitors []domain.Monitor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	for _, m := range monitors {
		b.applied[m.Name] = append(b.applied[m.Name], img.Name)
	}
	return nil
}

func (b *fakeBackend) ApplySpanned(_ context.Context, img domain.Image, monitors []domain.Monitor, _ bool) error {
	return b.record(img, monitors)
}

func (b *fakeBackend) ApplyDuplicated(_ context.Context, img domain.Image, monitors []domain.Monitor, _ bool) error {
	return b.record(img, monitors)
}

func (b *fakeBackend) RestartHelper(context.Context) error { return nil }

func (b *fakeBackend) on(output string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.applied[output]...)
}

func (b *fakeBackend) setFail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fixture struct {
	store    *store.Store
	backend  *fakeBackend
	notifier *recordingNotifier
	bus      *events.Bus
	clock    *clockwork.FakeClock
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(zap.NewNop(), filepath.Join(t.TempDir(), "wallcycle.sqlite3"))
	require.NoError(t, err)

	f := &fixture{
		store:    s,
		backend:  &fakeBackend{applied: make(map[string][]string)},
		notifier: &recordingNotifier{},
		bus:      events.NewBus(zap.NewNop()),
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 5, 15, 8, 20, 0, 0, time.Local)),
	}
	f.registry = NewRegistry(zap.NewNop(), engine.Deps{
		Logger:   zap.NewNop(),
		Store:    s,
		Backend:  f.backend,
		Notifier: f.notifier,
		Events:   f.bus,
		Config:   testConfig{},
		Clock:    f.clock,
	})
	t.Cleanup(func() {
		f.registry.ShutdownAll()
		f.bus.Close()
		_ = s.Close()
	})
	return f
}

func (f *fixture) seed(t *testing.T, name string, kind domain.PlaylistType, n int) domain.Playlist {
	t.Helper()
	ctx := context.Background()

	imgs := make([]domain.Image, n)
	for i := range imgs {
		imgs[i] = domain.Image{Name: fmt.Sprintf("%s-%d.jpg", name, i), Width: 1920, Height: 1080, Format: "jpg"}
	}
	stored, err := f.store.StoreImages(ctx, imgs)
	require.NoError(t, err)

	p := domain.Playlist{Name: name, Images: stored, Type: kind}
	if kind == domain.PlaylistTimer {
		interval := int64(60_000)
		p.Interval = &interval
	}
	p.ID, err = f.store.UpsertPlaylist(ctx, p)
	require.NoError(t, err)
	return p
}

func output(name string, x int) domain.Monitor {
	return domain.Monitor{Name: name, Width: 1920, Height: 1080, Position: domain.Position{X: x}}
}

var (
	dp1  = domain.ActiveMonitor{Name: "DP-1", Monitors: []domain.Monitor{output("DP-1", 0)}}
	dp2  = domain.ActiveMonitor{Name: "DP-2", Monitors: []domain.Monitor{output("DP-2", 1920)}}
	wall = domain.ActiveMonitor{
		Name:                 "wall",
		Monitors:             []domain.Monitor{output("DP-1", 0), output("DP-2", 1920)},
		ExtendAcrossMonitors: true,
	}
)

func TestRegistry_StartAndLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "loop", domain.PlaylistTimer, 3)

	msg, err := f.registry.Start(ctx, "loop", dp1)
	require.NoError(t, err)
	assert.Equal(t, "Started loop on DP-1", msg)
	assert.Equal(t, []string{"loop-0.jpg"}, f.backend.on("DP-1"))

	e, err := f.registry.Lookup("DP-1")
	require.NoError(t, err)
	assert.Equal(t, "loop", e.Name())

	_, err = f.registry.Lookup("HDMI-A-1")
	assert.ErrorIs(t, err, domain.ErrRouting)

	bound, err := f.store.GetActivePlaylistInfo(ctx, dp1)
	require.NoError(t, err)
	assert.Equal(t, "loop", bound.Name)
}

func TestRegistry_StartRejectsMissingTarget(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Start(context.Background(), "", dp1)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = f.registry.Start(context.Background(), "loop", domain.ActiveMonitor{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRegistry_StartReplacesSameMonitor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "first", domain.PlaylistNever, 1)
	f.seed(t, "second", domain.PlaylistNever, 1)

	_, err := f.registry.Start(ctx, "first", dp1)
	require.NoError(t, err)
	old, err := f.registry.Lookup("DP-1")
	require.NoError(t, err)

	_, err = f.registry.Start(ctx, "second", dp1)
	require.NoError(t, err)

	current, err := f.registry.Lookup("DP-1")
	require.NoError(t, err)
	assert.Equal(t, "second", current.Name())
	assert.False(t, old.Diagnostics().Running)

	active, err := f.store.GetActivePlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "second", active[0].Playlist.Name)
}

func TestRegistry_StartEvictsOverlappingOutputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "left", domain.PlaylistNever, 1)
	f.seed(t, "right", domain.PlaylistNever, 1)
	f.seed(t, "panorama", domain.PlaylistNever, 1)

	_, err := f.registry.Start(ctx, "left", dp1)
	require.NoError(t, err)
	_, err = f.registry.Start(ctx, "right", dp2)
	require.NoError(t, err)

	_, err = f.registry.Start(ctx, "panorama", wall)
	require.NoError(t, err)

	info, err := f.registry.Info("")
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, "panorama", info[0].PlaylistName)
	assert.Equal(t, "wall", info[0].Monitor)

	_, err = f.registry.Lookup("DP-1")
	assert.ErrorIs(t, err, domain.ErrRouting)
}

func TestRegistry_StartFailureLeavesNothingBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "broken", domain.PlaylistNever, 1)
	f.backend.setFail(errors.New("no compositor"))

	_, err := f.registry.Start(ctx, "broken", dp1)
	require.ErrorIs(t, err, domain.ErrApply)

	_, err = f.registry.Lookup("DP-1")
	assert.ErrorIs(t, err, domain.ErrRouting)

	active, err := f.store.GetActivePlaylists(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Positive(t, f.notifier.count())
}

func TestRegistry_StartUnknownPlaylist(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Start(context.Background(), "ghost", dp1)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = f.registry.Lookup("DP-1")
	assert.ErrorIs(t, err, domain.ErrRouting)
}

func TestRegistry_Stop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "loop", domain.PlaylistTimer, 2)

	_, err := f.registry.Start(ctx, "loop", dp1)
	require.NoError(t, err)

	msg, err := f.registry.Stop(ctx, "DP-1")
	require.NoError(t, err)
	assert.Equal(t, "Stopped loop on DP-1", msg)

	_, err = f.registry.Stop(ctx, "DP-1")
	assert.ErrorIs(t, err, domain.ErrRouting)

	active, err := f.store.GetActivePlaylists(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRegistry_StopFailureKeepsEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "loop", domain.PlaylistNever, 2)

	_, err := f.registry.Start(ctx, "loop", dp1)
	require.NoError(t, err)
	require.NoError(t, f.store.Close())

	_, err = f.registry.Stop(ctx, "DP-1")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = f.registry.Lookup("DP-1")
	assert.NoError(t, err, "a failed stop can be retried")
}

func TestRegistry_RandomImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "loop", domain.PlaylistNever, 3)
	f.registry.pick = func(int) int { return 2 }

	t.Run("running engine", func(t *testing.T) {
		_, err := f.registry.Start(ctx, "loop", dp1)
		require.NoError(t, err)

		msg, err := f.registry.RandomImage(ctx, &dp1)
		require.NoError(t, err)
		assert.Equal(t, "Setting: loop-2.jpg", msg)
		assert.Equal(t, []string{"loop-0.jpg", "loop-2.jpg"}, f.backend.on("DP-1"))
	})

	t.Run("idle monitor", func(t *testing.T) {
		_, err := f.registry.RandomImage(ctx, &dp2)
		require.NoError(t, err)
		assert.Equal(t, []string{"loop-2.jpg"}, f.backend.on("DP-2"))

		history, err := f.store.GetImageHistory(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, history)
	})

	t.Run("every running monitor", func(t *testing.T) {
		before := len(f.backend.on("DP-1"))
		_, err := f.registry.RandomImage(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, f.backend.on("DP-1"), before+1)
	})
}

func TestRegistry_RandomImageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.RandomImage(ctx, &dp1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.seed(t, "loop", domain.PlaylistNever, 1)
	_, err = f.registry.RandomImage(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrRouting)

	f.backend.setFail(errors.New("no compositor"))
	_, err = f.registry.RandomImage(ctx, &dp2)
	assert.ErrorIs(t, err, domain.ErrApply)
	assert.Equal(t, 1, f.notifier.count())
}

func TestRegistry_ResumeActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loop := f.seed(t, "loop", domain.PlaylistTimer, 2)
	still := f.seed(t, "still", domain.PlaylistNever, 1)

	require.NoError(t, f.store.InsertIntoActivePlaylists(ctx, loop.ID, dp1))
	require.NoError(t, f.store.InsertIntoActivePlaylists(ctx, still.ID, dp2))

	require.NoError(t, f.registry.ResumeActive(ctx))

	info, err := f.registry.Info("")
	require.NoError(t, err)
	require.Len(t, info, 2)
	assert.Equal(t, "DP-1", info[0].Monitor)
	assert.Equal(t, "loop", info[0].PlaylistName)
	assert.Equal(t, "DP-2", info[1].Monitor)
	assert.True(t, info[1].Running)
}

func TestRegistry_ShutdownAllKeepsBindings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "loop", domain.PlaylistTimer, 2)

	_, err := f.registry.Start(ctx, "loop", dp1)
	require.NoError(t, err)
	e, err := f.registry.Lookup("DP-1")
	require.NoError(t, err)

	f.registry.ShutdownAll()

	_, err = f.registry.Lookup("DP-1")
	assert.ErrorIs(t, err, domain.ErrRouting)
	assert.ErrorIs(t, e.Start(ctx), domain.ErrEngineStopped)

	active, err := f.store.GetActivePlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "DP-1", active[0].Monitor.Name)
}
