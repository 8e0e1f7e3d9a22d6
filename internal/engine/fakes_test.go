package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/genricoloni/wallcycle/internal/events"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wednesday 08:20:30 local
var epoch = time.Date(2024, 5, 15, 8, 20, 30, 0, time.Local)

func minute(m int) *int { return &m }

type testConfig struct {
	retries   int
	delay     time.Duration
	reconcile time.Duration
}

func (c testConfig) GetSocketPath() string               { return "" }
func (c testConfig) GetDatabasePath() string             { return "" }
func (c testConfig) GetImagesDir() string                { return "" }
func (c testConfig) GetCacheDir() string                 { return "" }
func (c testConfig) GetSetter() string                   { return "auto" }
func (c testConfig) GetTransition() domain.Transition    { return domain.Transition{} }
func (c testConfig) GetApplyRetries() int                { return c.retries }
func (c testConfig) GetRetryDelay() time.Duration        { return c.delay }
func (c testConfig) GetReconcileInterval() time.Duration { return c.reconcile }
func (c testConfig) NotificationsEnabled() bool          { return true }

var defaultTestConfig = testConfig{retries: 3, delay: time.Millisecond, reconcile: 10 * time.Second}

// memStore is an in-memory domain.Store
type memStore struct {
	mu         sync.Mutex
	playlists  map[string]domain.Playlist
	bindings   map[string]string
	history    []domain.HistoryEntry
	indexSaves []int
	failIndex  error
	failRemove error
}

func newMemStore(playlists ...domain.Playlist) *memStore {
	s := &memStore{
		playlists: make(map[string]domain.Playlist),
		bindings:  make(map[string]string),
	}
	for i, p := range playlists {
		p.ID = int64(i + 1)
		s.playlists[p.Name] = p
	}
	return s
}

func (s *memStore) GetPlaylistInfo(_ context.Context, name string) (*domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[name]
	if !ok {
		return nil, fmt.Errorf("playlist %s: %w", name, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *memStore) InsertIntoActivePlaylists(_ context.Context, playlistID int64, monitor domain.ActiveMonitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, p := range s.playlists {
		if p.ID == playlistID {
			s.bindings[monitor.Name] = name
			return nil
		}
	}
	return errors.New("no such playlist")
}

func (s *memStore) RemoveActivePlaylist(_ context.Context, playlistName string, monitor domain.ActiveMonitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRemove != nil {
		return s.failRemove
	}
	if s.bindings[monitor.Name] == playlistName {
		delete(s.bindings, monitor.Name)
	}
	return nil
}

func (s *memStore) GetActivePlaylistInfo(_ context.Context, monitor domain.ActiveMonitor) (*domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.bindings[monitor.Name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p := s.playlists[name]
	return &p, nil
}

func (s *memStore) UpdatePlaylistCurrentIndex(_ context.Context, name string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIndex != nil {
		return s.failIndex
	}
	p := s.playlists[name]
	p.CurrentImageIndex = index
	s.playlists[name] = p
	s.indexSaves = append(s.indexSaves, index)
	return nil
}

func (s *memStore) AddImageToHistory(_ context.Context, image domain.Image, monitor domain.ActiveMonitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, domain.HistoryEntry{Image: image, Monitor: monitor})
	return nil
}

func (s *memStore) GetAllImages(context.Context) ([]domain.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var images []domain.Image
	for _, p := range s.playlists {
		images = append(images, p.Images...)
	}
	return images, nil
}

func (s *memStore) GetActivePlaylists(context.Context) ([]domain.ActivePlaylist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []domain.ActivePlaylist
	for monitor, name := range s.bindings {
		active = append(active, domain.ActivePlaylist{
			Playlist: s.playlists[name],
			Monitor:  domain.ActiveMonitor{Name: monitor},
		})
	}
	return active, nil
}

func (s *memStore) binding(monitor string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.bindings[monitor]
	return name, ok
}

func (s *memStore) saves() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.indexSaves...)
}

func (s *memStore) setPlaylist(p domain.Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[p.Name] = p
}

// fakeBackend records applied image names
type fakeBackend struct {
	mu       sync.Mutex
	applied  []string
	spanned  int
	restarts int
}

func (b *fakeBackend) ApplySpanned(_ context.Context, img domain.Image, _ []domain.Monitor, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spanned++
	b.applied = append(b.applied, img.Name)
	return nil
}

func (b *fakeBackend) ApplyDuplicated(_ context.Context, img domain.Image, _ []domain.Monitor, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = append(b.applied, img.Name)
	return nil
}

func (b *fakeBackend) RestartHelper(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restarts++
	return nil
}

func (b *fakeBackend) images() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.applied...)
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

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type harness struct {
	store    *memStore
	backend  *fakeBackend
	notifier *recordingNotifier
	bus      *events.Bus
	clock    *clockwork.FakeClock
	deps     Deps
}

func newHarness(t *testing.T, playlists ...domain.Playlist) *harness {
	t.Helper()
	return newHarnessAt(t, epoch, playlists...)
}

func newHarnessAt(t *testing.T, now time.Time, playlists ...domain.Playlist) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(playlists...),
		backend:  &fakeBackend{},
		notifier: &recordingNotifier{},
		bus:      events.NewBus(zap.NewNop()),
		clock:    clockwork.NewFakeClockAt(now),
	}
	h.deps = Deps{
		Logger:   zap.NewNop(),
		Store:    h.store,
		Backend:  h.backend,
		Notifier: h.notifier,
		Events:   h.bus,
		Config:   defaultTestConfig,
		Clock:    h.clock,
	}
	t.Cleanup(h.bus.Close)
	return h
}

var testMonitor = domain.ActiveMonitor{
	Name:     "DP-1",
	Monitors: []domain.Monitor{{Name: "DP-1", Width: 1920, Height: 1080}},
}

func (h *harness) start(t *testing.T, name string) *Engine {
	t.Helper()
	e, err := New(context.Background(), h.deps, name, testMonitor)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop(context.Background()) })
	return e
}

func images(prefix string, n int) []domain.Image {
	out := make([]domain.Image, n)
	for i := range out {
		out[i] = domain.Image{ID: int64(i + 1), Name: fmt.Sprintf("%s-%d.jpg", prefix, i)}
	}
	return out
}

func timerPlaylist(name string, n int, intervalMs int64) domain.Playlist {
	return domain.Playlist{
		Name:     name,
		Images:   images(name, n),
		Type:     domain.PlaylistTimer,
		Interval: &intervalMs,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func appliedCount(b *fakeBackend, n int) func() bool {
	return func() bool { return len(b.images()) == n }
}
