package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/genricoloni/wallcycle/internal/domain"
)

const dialTimeout = 2 * time.Second

// Client sends commands to a running daemon
type Client struct {
	addr string
}

// NewClient creates a client for the socket at addr
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.addr)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s: %w", c.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// Send writes msg and waits for the daemon's reply
func (c *Client) Send(ctx context.Context, msg Message) (Reply, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("failed to send %s: %w", msg.Action, err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("failed to read reply to %s: %w", msg.Action, err)
	}
	return reply, nil
}

// Watch streams lifecycle events to fn until ctx is done, the daemon closes
// the connection or fn returns an error
func (c *Client) Watch(ctx context.Context, fn func(domain.Event) error) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := json.NewEncoder(conn).Encode(Message{Action: ActionWatchEvents}); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	dec := json.NewDecoder(bufio.NewReader(conn))
	var ack Reply
	if err := dec.Decode(&ack); err != nil {
		return fmt.Errorf("failed to read subscription reply: %w", err)
	}
	if !ack.OK {
		return errors.New(ack.Error)
	}

	for {
		var ev domain.Event
		if err := dec.Decode(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream closed: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
