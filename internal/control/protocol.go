// Package control implements the daemon's command channel: newline-delimited
// JSON messages over a Unix socket, routed to the playlist running on the
// targeted monitor.
package control

import "github.com/genricoloni/wallcycle/internal/domain"

// Action names a control command
type Action string

const (
	ActionStartPlaylist  Action = "start-playlist"
	ActionPausePlaylist  Action = "pause-playlist"
	ActionResumePlaylist Action = "resume-playlist"
	ActionStopPlaylist   Action = "stop-playlist"
	ActionNextImage      Action = "next-image"
	ActionPreviousImage  Action = "previous-image"
	ActionRandomImage    Action = "random-image"
	ActionStopDaemon     Action = "stop-daemon"
	ActionUpdateConfig   Action = "update-config"

	// ActionGetInfo returns engine diagnostics
	ActionGetInfo Action = "get-info"
	// ActionGetHistory returns when each image was last shown
	ActionGetHistory Action = "get-history"
	// ActionWatchEvents turns the connection into a stream of lifecycle events
	ActionWatchEvents Action = "watch-events"
)

// maxMessageSize bounds one command line
const maxMessageSize = 1 << 20

// Message is one command as sent by clients
type Message struct {
	Action   Action          `json:"action"`
	Playlist *PlaylistTarget `json:"playlist,omitempty"`
}

// PlaylistTarget names a playlist and the monitor it runs on
type PlaylistTarget struct {
	Name    string               `json:"name"`
	Monitor domain.ActiveMonitor `json:"monitor"`
}

// Reply is written back after every command. Clients that only send
// commands may ignore it.
type Reply struct {
	OK      bool                  `json:"ok"`
	Message string                `json:"message,omitempty"`
	Error   string                `json:"error,omitempty"`
	Info    []domain.Diagnostics  `json:"info,omitempty"`
	History []domain.HistoryEntry `json:"history,omitempty"`

	err error
}

func okReply(message string) Reply {
	return Reply{OK: true, Message: message}
}

func errReply(err error) Reply {
	return Reply{OK: false, Error: err.Error(), err: err}
}
