package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/genricoloni/wallcycle/internal/events"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("control server closed")

// Reloader re-reads daemon configuration
type Reloader interface {
	Reload() error
}

// HistoryReader lists when images were last shown, most recent first
type HistoryReader interface {
	GetImageHistory(ctx context.Context) ([]domain.HistoryEntry, error)
}

// Server accepts control connections on a Unix socket
type Server struct {
	logger     *zap.Logger
	addr       string
	registry   *Registry
	history    HistoryReader
	bus        *events.Bus
	reloader   Reloader
	shutdowner fx.Shutdowner

	ctx    context.Context
	cancel context.CancelFunc
	lanes  *lanes

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	quit     atomic.Bool
	wg       conc.WaitGroup
}

// NewServer creates a server listening on addr once Listen is called
func NewServer(
	logger *zap.Logger,
	addr string,
	registry *Registry,
	history HistoryReader,
	bus *events.Bus,
	reloader Reloader,
	shutdowner fx.Shutdowner,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		logger:     logger,
		addr:       addr,
		registry:   registry,
		history:    history,
		bus:        bus,
		reloader:   reloader,
		shutdowner: shutdowner,
		ctx:        ctx,
		cancel:     cancel,
		lanes:      newLanes(),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Addr returns the socket path
func (s *Server) Addr() string {
	return s.addr
}

// Listen binds the socket, replacing a stale socket file left by a crash
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.addr), 0o700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	_ = os.Remove(s.addr)

	listener, err := net.Listen("unix", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Control socket listening", zap.String("addr", s.addr))
	return nil
}

// Serve accepts connections until Shutdown. Each connection is handled on
// its own goroutine; commands on one connection run in order.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("control server is not listening")
	}

	for {
		conn, err := listener.Accept()
		if s.quit.Load() {
			if conn != nil {
				_ = conn.Close()
			}
			return ErrServerClosed
		}
		if err != nil {
			s.logger.Warn("Failed to accept connection", zap.Error(err))
			continue
		}

		s.track(conn, true)
		s.wg.Go(func() {
			defer s.track(conn, false)
			s.handleConn(conn)
		})
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxMessageSize)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Warn("Malformed control message", zap.ByteString("line", line), zap.Error(err))
			if werr := enc.Encode(errReply(fmt.Errorf("malformed message: %w", err))); werr != nil {
				return
			}
			continue
		}

		if msg.Action == ActionWatchEvents {
			s.streamEvents(enc)
			return
		}

		reply := s.Handle(s.ctx, msg)
		if err := enc.Encode(reply); err != nil {
			// Fire-and-forget clients hang up without reading
			s.logger.Debug("Client went away before reply", zap.Error(err))
			return
		}
	}
	if err := scanner.Err(); err != nil && !s.quit.Load() {
		s.logger.Warn("Failed to read from control connection", zap.Error(err))
	}
}

// Handle executes one command. Commands for the same monitor run one at a
// time in the order they were received, whichever connection they came on.
func (s *Server) Handle(ctx context.Context, msg Message) Reply {
	t := s.lanes.enter(laneKey(msg))
	t.wait()
	defer t.leave()

	logger := s.logger.With(zap.String("action", string(msg.Action)))
	if msg.Playlist != nil {
		logger = logger.With(
			zap.String("playlist", msg.Playlist.Name),
			zap.String("monitor", msg.Playlist.Monitor.Name))
	}
	logger.Info("Control command received")

	reply := s.dispatch(ctx, msg)
	switch {
	case reply.OK:
	case isRouting(reply.err):
		logger.Info("No playlist running on target, ignoring", zap.String("error", reply.Error))
	default:
		logger.Warn("Control command failed", zap.String("error", reply.Error))
	}
	return reply
}

func (s *Server) dispatch(ctx context.Context, msg Message) Reply {
	switch msg.Action {
	case ActionStopDaemon:
		s.registry.ShutdownAll()
		if err := s.shutdowner.Shutdown(); err != nil {
			return errReply(err)
		}
		return okReply("Stopping daemon")

	case ActionRandomImage:
		var monitor *domain.ActiveMonitor
		if msg.Playlist != nil && msg.Playlist.Monitor.Name != "" {
			monitor = &msg.Playlist.Monitor
		}
		return result(s.registry.RandomImage(ctx, monitor))

	case ActionGetInfo:
		monitor := ""
		if msg.Playlist != nil {
			monitor = msg.Playlist.Monitor.Name
		}
		info, err := s.registry.Info(monitor)
		if err != nil {
			return errReply(err)
		}
		return Reply{OK: true, Info: info}

	case ActionGetHistory:
		history, err := s.history.GetImageHistory(ctx)
		if err != nil {
			return errReply(err)
		}
		if msg.Playlist != nil && msg.Playlist.Monitor.Name != "" {
			history = slices.DeleteFunc(history, func(h domain.HistoryEntry) bool {
				return h.Monitor.Name != msg.Playlist.Monitor.Name
			})
		}
		return Reply{OK: true, History: history}

	case ActionUpdateConfig:
		if msg.Playlist == nil || msg.Playlist.Monitor.Name == "" {
			if err := s.reloader.Reload(); err != nil {
				return errReply(err)
			}
			return okReply("Configuration reloaded")
		}
	}

	if msg.Playlist == nil {
		return errReply(fmt.Errorf("action %q needs a playlist target", msg.Action))
	}
	target := msg.Playlist

	if msg.Action == ActionStartPlaylist {
		return result(s.registry.Start(ctx, target.Name, target.Monitor))
	}
	if msg.Action == ActionStopPlaylist {
		return result(s.registry.Stop(ctx, target.Monitor.Name))
	}

	e, err := s.registry.Lookup(target.Monitor.Name)
	if err != nil {
		return errReply(err)
	}

	switch msg.Action {
	case ActionPausePlaylist:
		return result(e.Pause(ctx))
	case ActionResumePlaylist:
		return result(e.Resume(ctx))
	case ActionNextImage:
		return result(e.NextImage(ctx))
	case ActionPreviousImage:
		return result(e.PreviousImage(ctx))
	case ActionUpdateConfig:
		if err := e.UpdatePlaylist(ctx); err != nil {
			return errReply(err)
		}
		return okReply(fmt.Sprintf("Reloaded %s", e.Name()))
	default:
		return errReply(fmt.Errorf("unknown action %q", msg.Action))
	}
}

func result(message string, err error) Reply {
	if err != nil {
		return errReply(err)
	}
	return okReply(message)
}

// streamEvents writes every lifecycle event to the connection until the
// client goes away or the server shuts down
func (s *Server) streamEvents(enc *json.Encoder) {
	id := "watch-" + uuid.NewString()
	ch, err := s.bus.Subscribe(id, 64)
	if err != nil {
		_ = enc.Encode(errReply(err))
		return
	}
	defer func() {
		if dropped := s.bus.Dropped(id); dropped > 0 {
			s.logger.Warn("Event watcher missed events", zap.String("id", id), zap.Uint64("dropped", dropped))
		}
		s.bus.Unsubscribe(id)
	}()

	if err := enc.Encode(okReply("Watching events")); err != nil {
		return
	}
	s.logger.Debug("Event watcher connected", zap.String("id", id))

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				s.logger.Debug("Event watcher disconnected", zap.String("id", id))
				return
			}
		}
	}
}

// Shutdown stops accepting, closes open connections and waits for their
// handlers. The socket file is removed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.quit.Load() {
		s.mu.Unlock()
		return nil
	}
	s.quit.Store(true)
	s.cancel()

	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for control connections to finish")
	}

	_ = os.Remove(s.addr)
	s.logger.Info("Control socket closed")
	return err
}
