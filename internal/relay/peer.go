package relay

// Peer is one admitted duplex connection, owned by the transport layer
// (internal/signaling). The registry references peers through this interface
// only; it never touches transport internals.
type Peer interface {
	// ID identifies the connection itself. Display names are not unique
	// within a room, so rooms key membership by Peer identity and use the id
	// for logging.
	ID() string

	// Send writes one wire message to the peer. It must be safe to call from
	// multiple goroutines and must not block indefinitely (the transport is
	// expected to enforce a write deadline). A non-nil error marks the peer
	// as dead for delivery purposes.
	Send(payload []byte) error

	// Close forcibly closes the underlying transport. It must be idempotent.
	// The peer's dispatch loop observes the closure and runs the normal
	// leave sequence; Close itself must not mutate room state.
	Close()
}
