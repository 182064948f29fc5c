package signaling

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wavecall/signal-relay/internal/metrics"
	"github.com/wavecall/signal-relay/internal/relay"
)

// Config wires together the runtime dependencies for the signaling service.
type Config struct {
	// Rooms is the room registry connections join. If nil, the server creates
	// a private one, which is convenient for tests.
	Rooms *relay.Registry

	Logger *slog.Logger
	Events *metrics.Metrics

	// IdleTimeout closes connections that produce no reads (frames or pongs)
	// for this long. PingInterval must be shorter than IdleTimeout.
	IdleTimeout  time.Duration
	PingInterval time.Duration

	// Inbound signaling hardening.
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
}

// Server implements the relay's WebSocket signaling surface.
//
// Endpoints:
//   - GET /rtc : room signaling WebSocket (query params: room, user)
type Server struct {
	// Rooms is the registry connections join.
	//
	// These fields are intentionally exported so tests and callers can use a
	// simple struct literal (e.g. &Server{Rooms: reg}).
	Rooms *relay.Registry

	Logger *slog.Logger
	Events *metrics.Metrics

	IdleTimeout  time.Duration
	PingInterval time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int

	mu    sync.Mutex
	conns map[*conn]struct{}
}

func NewServer(cfg Config) *Server {
	events := cfg.Events
	if events == nil {
		events = metrics.New()
	}
	return &Server{
		Rooms:  cfg.Rooms,
		Logger: cfg.Logger,
		Events: events,

		IdleTimeout:  cfg.IdleTimeout,
		PingInterval: cfg.PingInterval,

		MaxMessageBytes:      cfg.MaxMessageBytes,
		MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,

		conns: make(map[*conn]struct{}),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /rtc", s.ServeSignal)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Close forcibly closes every live connection. Each connection's read loop
// observes the closure and runs its normal leave sequence.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	if s.conns == nil {
		s.conns = make(map[*conn]struct{})
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, c)
	}
	s.mu.Unlock()
}

func (s *Server) rooms() *relay.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Rooms == nil {
		s.Rooms = relay.NewRegistry(s.logger(), s.eventsLocked())
	}
	return s.Rooms
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// events lazily defaults Events under s.mu so concurrent connections on a
// zero-value Server agree on one Metrics instance.
func (s *Server) events() *metrics.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventsLocked()
}

func (s *Server) eventsLocked() *metrics.Metrics {
	if s.Events == nil {
		s.Events = metrics.New()
	}
	return s.Events
}

func (s *Server) idleTimeout() time.Duration {
	if s.IdleTimeout <= 0 {
		return 60 * time.Second
	}
	return s.IdleTimeout
}

func (s *Server) pingInterval() time.Duration {
	if s.PingInterval <= 0 || s.PingInterval >= s.idleTimeout() {
		return s.idleTimeout() / 3
	}
	return s.PingInterval
}

func (s *Server) maxMessageBytes() int64 {
	if s.MaxMessageBytes <= 0 {
		return 64 * 1024
	}
	return s.MaxMessageBytes
}

func (s *Server) maxMessagesPerSecond() int {
	if s.MaxMessagesPerSecond <= 0 {
		return 50
	}
	return s.MaxMessagesPerSecond
}

// ServeSignal handles one signaling WebSocket request. Exported so the
// binary can wrap it in the origin policy before registration.
func (s *Server) ServeSignal(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		// Origin checks are enforced by the outer httpserver origin middleware.
		// For unit tests that don't use httpserver.Server, accept all origins
		// here.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	q := r.URL.Query()
	roomID := q.Get("room")
	if roomID == "" {
		roomID = "default"
	}
	name := q.Get("user")
	if name == "" {
		name = "anon"
	}

	c := newConn(s, ws, roomID, name)
	s.track(c)
	defer s.untrack(c)
	c.run()
}
