package relay

import "sort"

// Room is the live state of one named room: its members and the current host.
// All fields are guarded by the owning Registry's mutex; rooms are never
// touched outside a registry event. A room with zero members never survives
// the event that emptied it.
type Room struct {
	id string

	// members maps each connection to the display name it joined under. Keys
	// are unique by connection identity, not by name: two connections may
	// share a display name.
	members map[Peer]string

	// host is the display name of the current host, or "" when no election
	// has occurred. At every event boundary it is either "" or a name present
	// in members.
	host string
}

func newRoom(id string) *Room {
	return &Room{id: id, members: make(map[Peer]string)}
}

func (r *Room) ID() string { return r.id }

// namesLocked returns the display names of all current members, sorted so
// peer_list payloads and failover elections are deterministic.
func (r *Room) namesLocked() []string {
	names := make([]string, 0, len(r.members))
	for _, name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// peerByNameLocked resolves a display name to a connection. When several
// connections share the name the match is arbitrary (first hit in map order);
// duplicate names have no defined owner.
func (r *Room) peerByNameLocked(name string) Peer {
	for p, n := range r.members {
		if n == name {
			return p
		}
	}
	return nil
}

func (r *Room) hasNameLocked(name string) bool {
	return r.peerByNameLocked(name) != nil
}

// broadcastLocked delivers payload to every member except the excluded peer.
// A failed send prunes that member from the room but neither aborts delivery
// to the rest nor triggers the leave sequence: the failed peer's own dispatch
// loop observes the broken transport and runs it.
func (r *Room) broadcastLocked(payload []byte, except Peer, onPrune func(Peer, string)) {
	targets := make([]Peer, 0, len(r.members))
	for p := range r.members {
		if p != except {
			targets = append(targets, p)
		}
	}
	for _, p := range targets {
		if err := p.Send(payload); err != nil {
			name := r.members[p]
			delete(r.members, p)
			if onPrune != nil {
				onPrune(p, name)
			}
		}
	}
}

// sendToNameLocked delivers payload to the first connection mapped to name
// and reports whether the send succeeded. Unlike broadcast it never mutates
// membership: only the receive/disconnect path prunes, so a directed send
// cannot race an in-flight close into a half-removed member.
func (r *Room) sendToNameLocked(name string, payload []byte) bool {
	p := r.peerByNameLocked(name)
	if p == nil {
		return false
	}
	return p.Send(payload) == nil
}
