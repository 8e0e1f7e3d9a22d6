package notify

import (
	"context"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notificationsNotify = "org.freedesktop.Notifications.Notify"
)

// DBusClient defines the D-Bus operations the notifier needs.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/wallcycle/internal/notify DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// Notify shows a desktop notification and returns its server-side id.
	// A non-zero replacesID updates that notification in place.
	Notify(ctx context.Context, replacesID uint32, summary, body string, hints map[string]dbus.Variant, timeout int32) (uint32, error)
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient opens a private connection to the session bus
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// Notify calls org.freedesktop.Notifications.Notify
func (c *StdDBusClient) Notify(ctx context.Context, replacesID uint32, summary, body string, hints map[string]dbus.Variant, timeout int32) (uint32, error) {
	var id uint32
	obj := c.conn.Object(notificationsName, dbus.ObjectPath(notificationsPath))
	err := obj.CallWithContext(ctx, notificationsNotify, 0,
		appName, replacesID, appIcon, summary, body, []string{}, hints, timeout,
	).Store(&id)
	return id, err
}
