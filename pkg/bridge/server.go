package bridge

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/gyptix/observable-go/pkg/mutation"
)

// DefaultReadLimit is the maximum frame size accepted by default.
const DefaultReadLimit = 1 << 20

// ServerConfig configures a Server.
type ServerConfig struct {
	// Logger receives connection and frame errors. Nil discards them.
	Logger *slog.Logger

	// ReadLimit caps the size of one frame. Zero uses DefaultReadLimit.
	ReadLimit int64

	// CheckOrigin validates the Origin header of the upgrade request.
	// Nil accepts same-origin requests only.
	CheckOrigin func(r *http.Request) bool

	// Resolve maps node IDs to targets. Nil uses the ID as the target.
	Resolve func(id string) any
}

// ServerStats counts frames handled by a Server.
type ServerStats struct {
	Connections int
	Batches     int
	Rejected    int
}

// Server accepts mutation batches from web views over WebSocket and hands
// them to its subscribers. It implements mutation.Source and http.Handler.
//
// Batches from all connections are delivered one at a time, in the order
// they are read.
type Server struct {
	config   ServerConfig
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[uint64]func([]mutation.Record)
	nextID uint64
	conns  map[*websocket.Conn]struct{}
	closed bool
	stats  ServerStats

	deliverMu sync.Mutex
}

// NewServer creates a bridge server.
func NewServer(config ServerConfig) *Server {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = DefaultReadLimit
	}
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
		subs:  make(map[uint64]func([]mutation.Record)),
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Subscribe registers fn for batches received after the call.
func (s *Server) Subscribe(fn func(batch []mutation.Record)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// ServeHTTP upgrades the request and reads batches until the peer
// disconnects or the server is closed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Warn("bridge upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)

	conn.SetReadLimit(s.config.ReadLimit)
	s.config.Logger.Debug("bridge connected", "remote", r.RemoteAddr)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.config.Logger.Debug("bridge disconnected", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		var format Format
		switch messageType {
		case websocket.BinaryMessage:
			format = FormatCBOR
		case websocket.TextMessage:
			format = FormatJSON
		default:
			continue
		}

		batch, err := Decode(format, message, s.config.Resolve)
		if err != nil {
			s.reject(r.RemoteAddr, format, err)
			continue
		}
		s.deliver(batch)
	}
}

// Stats returns frame counters.
func (s *Server) Stats() ServerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close disconnects every peer and rejects new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.stats.Connections++
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) reject(remote string, format Format, err error) {
	s.mu.Lock()
	s.stats.Rejected++
	s.mu.Unlock()

	s.config.Logger.Warn("bridge rejected frame",
		"remote", remote,
		"format", format.String(),
		"error", err)
}

func (s *Server) deliver(batch []mutation.Record) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.stats.Batches++
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func([]mutation.Record), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(slices.Clone(batch))
	}
}

// Compile-time interface satisfaction checks.
var (
	_ mutation.Source = (*Server)(nil)
	_ http.Handler    = (*Server)(nil)
)
