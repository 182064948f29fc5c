package metrics

import "sync"

// Event counter names. Kept as plain strings so new call sites don't need a
// registry change; the Prometheus handler exposes whatever was incremented.
const (
	EventRoomCreated   = "room_created"
	EventRoomDeleted   = "room_deleted"
	EventPeerJoined    = "peer_joined"
	EventPeerLeft      = "peer_left"
	EventPeerKicked    = "peer_kicked"
	EventPeerPruned    = "peer_pruned"
	EventHostChanged   = "host_changed"
	EventMessageRouted = "message_routed"
	EventBlindRelay    = "blind_relay"
	EventSignalDropped = "signal_dropped"
	EventRateLimited   = "rate_limited"
	EventFrameTooLarge = "frame_too_large"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// The service deliberately does not pull in a metrics client library; the
// counters it needs are plain monotonic events, and the Prometheus text
// handler in this package is enough for scraping.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Add(name string, delta uint64) {
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
