package domain

import (
	"context"
	"time"
)

// Store is the persistence gateway consumed by playlist engines and the control server.
//
//go:generate mockgen -destination=mocks/domain_mock.go -package=mocks github.com/genricoloni/wallcycle/internal/domain Store,Backend,Notifier
type Store interface {
	// GetPlaylistInfo loads a playlist and its ordered images by name.
	// Returns ErrNotFound if no playlist has that name.
	GetPlaylistInfo(ctx context.Context, name string) (*Playlist, error)

	// InsertIntoActivePlaylists binds a playlist to a monitor, replacing any previous binding
	InsertIntoActivePlaylists(ctx context.Context, playlistID int64, monitor ActiveMonitor) error

	// RemoveActivePlaylist deletes the binding of playlistName on monitor
	RemoveActivePlaylist(ctx context.Context, playlistName string, monitor ActiveMonitor) error

	// GetActivePlaylistInfo returns the playlist currently bound to monitor.
	// Returns ErrNotFound if the monitor has no binding.
	GetActivePlaylistInfo(ctx context.Context, monitor ActiveMonitor) (*Playlist, error)

	// UpdatePlaylistCurrentIndex persists the rotation cursor
	UpdatePlaylistCurrentIndex(ctx context.Context, name string, index int) error

	// AddImageToHistory upserts the (image, monitor) history row with the current time
	AddImageToHistory(ctx context.Context, image Image, monitor ActiveMonitor) error

	// GetAllImages returns the image catalog
	GetAllImages(ctx context.Context) ([]Image, error)

	// GetActivePlaylists returns every persisted playlist/monitor binding
	GetActivePlaylists(ctx context.Context) ([]ActivePlaylist, error)
}

// Backend applies images to displays
type Backend interface {
	// ApplySpanned stretches one image across all monitors
	ApplySpanned(ctx context.Context, image Image, monitors []Monitor, animate bool) error

	// ApplyDuplicated sets the same image on every monitor
	ApplyDuplicated(ctx context.Context, image Image, monitors []Monitor, animate bool) error

	// RestartHelper (re)starts the process that serves wallpapers to the compositor
	RestartHelper(ctx context.Context) error
}

// Notifier shows user-visible alerts
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Publisher receives engine lifecycle events
type Publisher interface {
	Publish(event Event)
}

// Config defines the interface for application configuration
type Config interface {
	// GetSocketPath returns the control socket location
	GetSocketPath() string

	// GetDatabasePath returns the SQLite database file
	GetDatabasePath() string

	// GetImagesDir returns the directory holding stored images
	GetImagesDir() string

	// GetCacheDir returns the directory for generated (cropped) images
	GetCacheDir() string

	// GetSetter returns the preferred wallpaper setter ("auto", "swww", "hyprpaper")
	GetSetter() string

	// GetTransition returns the animation settings used when animations are enabled
	GetTransition() Transition

	// GetApplyRetries returns how many times an image application is attempted
	GetApplyRetries() int

	// GetRetryDelay returns the base delay between application attempts
	GetRetryDelay() time.Duration

	// GetReconcileInterval returns the cadence of the missed-event check
	GetReconcileInterval() time.Duration

	// NotificationsEnabled reports whether desktop notifications are shown
	NotificationsEnabled() bool
}

// Transition holds swww transition settings
type Transition struct {
	Type     string
	FPS      int
	Duration float64
}
