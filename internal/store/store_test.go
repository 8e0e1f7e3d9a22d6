package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(zap.NewNop(), filepath.Join(t.TempDir(), "db", "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func minute(m int) *int { return &m }

func seedPlaylist(t *testing.T, s *Store, name string, kind domain.PlaylistType, n int) domain.Playlist {
	t.Helper()
	ctx := context.Background()

	images := make([]domain.Image, n)
	for i := range images {
		images[i] = domain.Image{Name: name + "-" + string(rune('a'+i)) + ".jpg", Width: 1920, Height: 1080, Format: "jpg"}
	}
	stored, err := s.StoreImages(ctx, images)
	require.NoError(t, err)

	if kind == domain.PlaylistTimeOfDay {
		for i := range stored {
			stored[i].Time = minute(i * 60)
		}
	}

	interval := int64(60000)
	p := domain.Playlist{
		Name:              name,
		Images:            stored,
		Type:              kind,
		CurrentImageIndex: 1,
		ShowAnimations:    true,
	}
	if kind == domain.PlaylistTimer {
		p.Interval = &interval
	}
	id, err := s.UpsertPlaylist(ctx, p)
	require.NoError(t, err)
	p.ID = id
	return p
}

var monitorA = domain.ActiveMonitor{
	Name:     "DP-1",
	Monitors: []domain.Monitor{{Name: "DP-1", Width: 2560, Height: 1440}},
}

func TestGetPlaylistInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seeded := seedPlaylist(t, s, "mornings", domain.PlaylistTimeOfDay, 3)

	got, err := s.GetPlaylistInfo(ctx, "mornings")
	require.NoError(t, err)

	assert.Equal(t, seeded.ID, got.ID)
	assert.Equal(t, domain.PlaylistTimeOfDay, got.Type)
	assert.Nil(t, got.Interval)
	assert.Equal(t, 1, got.CurrentImageIndex)
	assert.True(t, got.ShowAnimations)
	assert.False(t, got.AlwaysStartOnFirstImage)
	require.Len(t, got.Images, 3)
	for i, img := range got.Images {
		assert.Equal(t, seeded.Images[i].ID, img.ID)
		require.NotNil(t, img.Time)
		assert.Equal(t, i*60, *img.Time)
	}

	_, err = s.GetPlaylistInfo(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertPlaylist_ReplacesDefinition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPlaylist(t, s, "loop", domain.PlaylistTimer, 4)

	p.Images = p.Images[:2]
	p.Type = domain.PlaylistNever
	p.Interval = nil
	id, err := s.UpsertPlaylist(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	got, err := s.GetPlaylistInfo(ctx, "loop")
	require.NoError(t, err)
	assert.Equal(t, domain.PlaylistNever, got.Type)
	assert.Nil(t, got.Interval)
	assert.Len(t, got.Images, 2)
}

func TestActivePlaylistBindings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := seedPlaylist(t, s, "first", domain.PlaylistTimer, 2)
	second := seedPlaylist(t, s, "second", domain.PlaylistNever, 2)

	_, err := s.GetActivePlaylistInfo(ctx, monitorA)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.InsertIntoActivePlaylists(ctx, first.ID, monitorA))
	got, err := s.GetActivePlaylistInfo(ctx, monitorA)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	// A monitor holds at most one binding
	require.NoError(t, s.InsertIntoActivePlaylists(ctx, second.ID, monitorA))
	active, err := s.GetActivePlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "second", active[0].Playlist.Name)
	assert.Equal(t, monitorA, active[0].Monitor)

	// Removing another playlist's binding leaves this one alone
	require.NoError(t, s.RemoveActivePlaylist(ctx, "first", monitorA))
	_, err = s.GetActivePlaylistInfo(ctx, monitorA)
	require.NoError(t, err)

	require.NoError(t, s.RemoveActivePlaylist(ctx, "second", monitorA))
	_, err = s.GetActivePlaylistInfo(ctx, monitorA)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdatePlaylistCurrentIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPlaylist(t, s, "loop", domain.PlaylistTimer, 4)

	require.NoError(t, s.UpdatePlaylistCurrentIndex(ctx, "loop", 3))
	got, err := s.GetPlaylistInfo(ctx, "loop")
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentImageIndex)

	err = s.UpdatePlaylistCurrentIndex(ctx, "nope", 1)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddImageToHistory_UpsertsPerMonitor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedPlaylist(t, s, "loop", domain.PlaylistTimer, 2)
	monitorB := domain.ActiveMonitor{Name: "HDMI-A-1"}

	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.AddImageToHistory(ctx, p.Images[0], monitorA))
	clock = clock.Add(time.Hour)
	require.NoError(t, s.AddImageToHistory(ctx, p.Images[0], monitorA))

	history, err := s.GetImageHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1, "same image and monitor must not duplicate")
	assert.Equal(t, clock.UnixMilli(), history[0].Time.UnixMilli())
	assert.Equal(t, "DP-1", history[0].Monitor.Name)

	// Other monitors keep their own row and timestamp
	require.NoError(t, s.AddImageToHistory(ctx, p.Images[0], monitorB))
	history, err = s.GetImageHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestGetAllImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPlaylist(t, s, "loop", domain.PlaylistTimer, 3)

	images, err := s.GetAllImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "loop-a.jpg", images[0].Name)
	assert.Less(t, images[0].ID, images[2].ID, "insertion order")
}
