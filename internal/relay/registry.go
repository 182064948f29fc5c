package relay

import (
	"log/slog"
	"sync"

	"github.com/wavecall/signal-relay/internal/metrics"
)

// Registry is the process-wide room table. It is an injected dependency, not
// a package-level singleton, so tests and future embedders can run several
// isolated registries.
//
// A single mutex guards the room table and all room state. Every event (an
// admission, one routed message, a leave) runs start-to-finish under it, which
// gives the same atomicity the original single-threaded relay loop had: state
// mutations and the notifications that depend on them can never interleave
// with another event in the same room. Sends performed under the lock are
// bounded by the transport's write deadline, and signaling traffic is
// low-rate, so the serialization is cheap.
type Registry struct {
	log *slog.Logger
	evs *metrics.Metrics

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(logger *slog.Logger, evs *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if evs == nil {
		evs = metrics.New()
	}
	return &Registry{
		log:   logger,
		evs:   evs,
		rooms: make(map[string]*Room),
	}
}

// Join admits a peer into the room with the given id, creating the room if it
// does not exist. Room ids and display names are accepted unconditionally:
// no uniqueness check, no key validation, reconnecting under an existing name
// neither merges nor rejects.
//
// Admission side effects, atomically with other events in the room:
//  1. if the room has no host, the joiner is elected and host_changed is
//     broadcast to everyone including the joiner;
//  2. the joiner receives a peer_list snapshot naming every member and the
//     current host;
//  3. everyone else receives peer_joined.
func (g *Registry) Join(roomID, name string, p Peer) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.rooms[roomID]
	if r == nil {
		r = newRoom(roomID)
		g.rooms[roomID] = r
		g.evs.Inc(metrics.EventRoomCreated)
	}

	r.members[p] = name
	if r.host == "" {
		r.host = name
		g.evs.Inc(metrics.EventHostChanged)
		r.broadcastLocked(hostChangedPayload(name), nil, g.onPrune(r))
	}

	_ = p.Send(peerListPayload(r.namesLocked(), r.host))
	r.broadcastLocked(peerJoinedPayload(name), p, g.onPrune(r))

	g.evs.Inc(metrics.EventPeerJoined)
	g.log.Info("peer joined", "room", roomID, "user", name, "conn", p.ID(), "members", len(r.members))
	return r
}

// Leave runs the disconnect sequence for a peer exactly once; the caller
// guards against double invocation. The name is taken from the connection,
// not the member map, so a peer that was already pruned by a failed broadcast
// still produces a correct peer_left and host failover.
//
// Order matters: remove, peer_left, host failover, then room deletion, so
// remaining members never observe a peer_left for the host without a
// subsequent host_changed, and the registry never retains an empty room.
func (g *Registry) Leave(r *Room, p Peer, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(r.members, p)
	r.broadcastLocked(peerLeftPayload(name), nil, g.onPrune(r))

	if r.host == name {
		newHost := ""
		if names := r.namesLocked(); len(names) > 0 {
			newHost = names[0]
		}
		r.host = newHost
		g.evs.Inc(metrics.EventHostChanged)
		r.broadcastLocked(hostChangedPayload(newHost), nil, g.onPrune(r))
	}

	if len(r.members) == 0 {
		// Identity check: the map may already hold a fresh room under the
		// same id if this leave raced a rejoin... it cannot, under one lock,
		// but the check keeps deletion safe if the locking ever changes.
		if g.rooms[r.id] == r {
			delete(g.rooms, r.id)
			g.evs.Inc(metrics.EventRoomDeleted)
		}
	}

	g.evs.Inc(metrics.EventPeerLeft)
	g.log.Info("peer left", "room", r.id, "user", name, "conn", p.ID(), "members", len(r.members))
}

// Dispatch routes one inbound frame from sender. Parsing happens outside the
// lock; everything the frame does to room state happens under it.
func (g *Registry) Dispatch(r *Room, sender Peer, raw []byte) {
	msg := ParseMessage(raw)

	g.mu.Lock()
	defer g.mu.Unlock()

	senderName, ok := r.members[sender]
	if !ok {
		// Pruned or kicked with frames still in flight; the original relay
		// kept handling these under a fallback name, and clients rely on the
		// blind relay still working during that window.
		senderName = "anon"
	}
	g.route(r, sender, senderName, msg)
}

func (g *Registry) route(r *Room, sender Peer, senderName string, msg Message) {
	g.evs.Inc(metrics.EventMessageRouted)

	switch msg.Kind {
	case KindHello:
		// Optional client greeting; acknowledged by silence.

	case KindIAmHost:
		if r.host != "" {
			return
		}
		r.host = senderName
		g.evs.Inc(metrics.EventHostChanged)
		g.log.Info("host claimed", "room", r.id, "user", senderName)
		r.broadcastLocked(hostChangedPayload(senderName), nil, g.onPrune(r))

	case KindHostMuteAll:
		if senderName != r.host {
			return
		}
		// Directed sends, not a broadcast: mute must never reach the host,
		// and a failed send here does not prune (the disconnect path does).
		payload := hostMutePayload()
		for p, name := range r.members {
			if name != r.host {
				_ = p.Send(payload)
			}
		}

	case KindHostKick:
		if senderName != r.host || msg.Target == "" {
			return
		}
		target := r.peerByNameLocked(msg.Target)
		if target == nil {
			return
		}
		_ = target.Send(hostKickPayload(msg.Target))
		target.Close()
		g.evs.Inc(metrics.EventPeerKicked)
		g.log.Info("peer kicked", "room", r.id, "host", senderName, "target", msg.Target)

	case KindTransferHost:
		if senderName != r.host || !r.hasNameLocked(msg.To) {
			return
		}
		r.host = msg.To
		g.evs.Inc(metrics.EventHostChanged)
		g.log.Info("host transferred", "room", r.id, "from", senderName, "to", msg.To)
		r.broadcastLocked(hostChangedPayload(msg.To), nil, g.onPrune(r))

	case KindIntroducePair:
		if senderName != r.host || msg.A == "" || msg.B == "" {
			return
		}
		// Each side is delivered independently; a missing side is dropped
		// without affecting the other.
		r.sendToNameLocked(msg.A, introPayload(msg.A, msg.B))
		r.sendToNameLocked(msg.B, introPayload(msg.B, msg.A))

	case KindSignal:
		// Relay the full envelope, overwriting any client-supplied "from"
		// with the sender's bound name.
		msg.Fields["from"] = senderName
		if !r.sendToNameLocked(msg.To, marshal(msg.Fields)) {
			g.evs.Inc(metrics.EventSignalDropped)
		}

	case KindChat:
		if msg.Text == "" {
			return
		}
		if msg.To != "" && msg.To != "*" {
			// Private: deliver to the target, and echo to the sender with the
			// target attached so the sender's UI can render its own message.
			r.sendToNameLocked(msg.To, chatPayload(senderName, msg.Text, true, ""))
			r.sendToNameLocked(senderName, chatPayload(senderName, msg.Text, true, msg.To))
			return
		}
		r.broadcastLocked(chatPayload(senderName, msg.Text, false, ""), nil, g.onPrune(r))

	default:
		// Blind relay: unrecognized or non-JSON payloads go to every other
		// member unchanged.
		g.evs.Inc(metrics.EventBlindRelay)
		r.broadcastLocked(msg.Raw, sender, g.onPrune(r))
	}
}

func (g *Registry) onPrune(r *Room) func(Peer, string) {
	return func(p Peer, name string) {
		g.evs.Inc(metrics.EventPeerPruned)
		g.log.Warn("pruned dead peer mid-broadcast", "room", r.id, "user", name, "conn", p.ID())
	}
}

// Rooms reports the number of live rooms.
func (g *Registry) Rooms() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Snapshot returns the member names and host of a room, or ok=false if the
// room does not exist. Intended for tests and introspection endpoints.
func (g *Registry) Snapshot(roomID string) (users []string, host string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.rooms[roomID]
	if r == nil {
		return nil, "", false
	}
	return r.namesLocked(), r.host, true
}

// CloseAll forcibly closes every live connection. Used on shutdown; the
// individual dispatch loops run their own leave sequences as the transports
// report closure.
func (g *Registry) CloseAll() {
	g.mu.Lock()
	peers := make([]Peer, 0)
	for _, r := range g.rooms {
		for p := range r.members {
			peers = append(peers, p)
		}
	}
	g.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
}
