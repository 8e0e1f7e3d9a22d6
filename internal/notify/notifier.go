// Package notify shows user-visible alerts as desktop notifications.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	appName = "wallcycle"
	appIcon = "preferences-desktop-wallpaper"
	summary = "Wallpaper engine"

	notifyTimeout = 3 * time.Second
	expireAfter   = int32(5000)
)

// DBusNotifier implements domain.Notifier over org.freedesktop.Notifications.
// Every message is logged; delivery failures never reach the caller.
type DBusNotifier struct {
	logger  *zap.Logger
	cfg     domain.Config
	connect func() (DBusClient, error)

	mu     sync.Mutex
	client DBusClient
	// lastID lets a new message replace the previous one instead of stacking
	lastID uint32
}

// NewDBusNotifier creates a notifier that connects to the session bus on first use
func NewDBusNotifier(logger *zap.Logger, cfg domain.Config) *DBusNotifier {
	return &DBusNotifier{
		logger: logger,
		cfg:    cfg,
		connect: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Notify shows message to the user
func (n *DBusNotifier) Notify(ctx context.Context, message string) {
	n.logger.Info("Notification", zap.String("message", message))

	if !n.cfg.NotificationsEnabled() {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client == nil {
		client, err := n.connect()
		if err != nil {
			n.logger.Warn("Failed to connect to session bus, notification dropped", zap.Error(err))
			return
		}
		n.client = client
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(1)),
	}
	id, err := n.client.Notify(ctx, n.lastID, summary, message, hints, expireAfter)
	if err != nil {
		n.logger.Warn("Failed to send notification", zap.Error(err))
		// Reconnect on the next message; the bus may have restarted
		if cerr := n.client.Close(); cerr != nil {
			n.logger.Debug("Failed to close D-Bus connection", zap.Error(cerr))
		}
		n.client = nil
		n.lastID = 0
		return
	}
	n.lastID = id
}

// Close releases the D-Bus connection, if any
func (n *DBusNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client == nil {
		return nil
	}
	err := n.client.Close()
	n.client = nil
	return err
}
