package domain

import "time"

// PlaylistType is the rotation policy of a playlist
type PlaylistType string

const (
	// PlaylistTimer rotates every Interval milliseconds
	PlaylistTimer PlaylistType = "timer"
	// PlaylistNever shows one image until told otherwise
	PlaylistNever PlaylistType = "never"
	// PlaylistTimeOfDay shows each image from its minute-of-day onwards
	PlaylistTimeOfDay PlaylistType = "timeofday"
	// PlaylistDayOfWeek shows one image per weekday, Sunday first
	PlaylistDayOfWeek PlaylistType = "dayofweek"
)

// MinutesPerDay bounds Image.Time
const MinutesPerDay = 1440

// Image is a stored wallpaper
type Image struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	// Time is minutes since local midnight (0-1439). Only used by time-of-day playlists.
	Time *int `json:"time"`
}

// Position is the top-left corner of an output in the compositor layout
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Monitor is one physical output
type Monitor struct {
	Name     string   `json:"name"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Position Position `json:"position"`
}

// ActiveMonitor is a named logical display target made of one or more outputs
type ActiveMonitor struct {
	Name     string    `json:"name"`
	Monitors []Monitor `json:"monitors"`
	// ExtendAcrossMonitors spans one image over every output instead of duplicating it
	ExtendAcrossMonitors bool `json:"extendAcrossMonitors"`
}

// Playlist is a persisted, ordered image sequence plus its rotation policy
type Playlist struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Images []Image      `json:"images"`
	Type   PlaylistType `json:"type"`
	// Interval is in milliseconds; only set for timer playlists
	Interval                *int64 `json:"interval"`
	CurrentImageIndex       int    `json:"currentImageIndex"`
	AlwaysStartOnFirstImage bool   `json:"alwaysStartOnFirstImage"`
	ShowAnimations          bool   `json:"showAnimations"`
}

// ActivePlaylist binds a playlist to the monitor it runs on
type ActivePlaylist struct {
	Playlist Playlist
	Monitor  ActiveMonitor
}

// HistoryEntry records the last time an image was shown on a monitor
type HistoryEntry struct {
	Image   Image         `json:"image"`
	Monitor ActiveMonitor `json:"monitor"`
	Time    time.Time     `json:"time"`
}

// EventKind names a playlist engine lifecycle event
type EventKind string

const (
	EventPlaylistStarted EventKind = "playlist-started"
	EventPlaylistStopped EventKind = "playlist-stopped"
	EventImageSet        EventKind = "image-set"
	EventEngineError     EventKind = "engine-error"
)

// Event is published by playlist engines to interested subscribers
type Event struct {
	Kind     EventKind `json:"kind"`
	Playlist string    `json:"playlist"`
	Monitor  string    `json:"monitor"`
	Image    *Image    `json:"image,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Diagnostics is a read-only snapshot of a running playlist engine
type Diagnostics struct {
	PlaylistName       string       `json:"playlistName"`
	Type               PlaylistType `json:"type"`
	CurrentIndex       int          `json:"playlistCurrentIndex"`
	Monitor            string       `json:"monitor"`
	Running            bool         `json:"running"`
	TimerID            string       `json:"timerID"`
	ExecutionTimeStamp time.Time    `json:"executionTimeStamp"`
	EventCheckerID     string       `json:"eventCheckerID"`
	Images             []string     `json:"playlistImages"`
	Interval           *int64       `json:"playlistInterval"`
	DaemonPID          int          `json:"daemonPID"`
}
