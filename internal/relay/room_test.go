package relay

import "testing"

func TestBroadcastLocked_PrunesFailedSendAndContinues(t *testing.T) {
	r := newRoom("r1")
	amy := newFakePeer("c-amy")
	bob := newFakePeer("c-bob")
	zig := newFakePeer("c-zig")
	r.members[amy] = "amy"
	r.members[bob] = "bob"
	r.members[zig] = "zig"

	bob.setFail(true)

	var pruned []string
	r.broadcastLocked([]byte(`{"type":"x"}`), nil, func(p Peer, name string) {
		pruned = append(pruned, name)
	})

	if !equalStrings(pruned, []string{"bob"}) {
		t.Fatalf("pruned=%v, want [bob]", pruned)
	}
	if _, ok := r.members[bob]; ok {
		t.Fatalf("bob still a member after failed send")
	}
	if len(amy.received(t)) != 1 || len(zig.received(t)) != 1 {
		t.Fatalf("delivery aborted for healthy members: amy=%d zig=%d",
			len(amy.received(t)), len(zig.received(t)))
	}
}

func TestBroadcastLocked_ExcludesSender(t *testing.T) {
	r := newRoom("r1")
	amy := newFakePeer("c-amy")
	bob := newFakePeer("c-bob")
	r.members[amy] = "amy"
	r.members[bob] = "bob"

	r.broadcastLocked([]byte(`{"type":"x"}`), amy, nil)

	if len(amy.received(t)) != 0 {
		t.Fatalf("excluded peer received broadcast")
	}
	if len(bob.received(t)) != 1 {
		t.Fatalf("bob received %d frames, want 1", len(bob.received(t)))
	}
}

func TestSendToNameLocked_NeverMutatesMembership(t *testing.T) {
	r := newRoom("r1")
	amy := newFakePeer("c-amy")
	r.members[amy] = "amy"
	amy.setFail(true)

	if ok := r.sendToNameLocked("amy", []byte(`{}`)); ok {
		t.Fatalf("expected failed send to report false")
	}
	if _, ok := r.members[amy]; !ok {
		t.Fatalf("directed send pruned membership")
	}

	if ok := r.sendToNameLocked("nobody", []byte(`{}`)); ok {
		t.Fatalf("expected send to absent name to report false")
	}
}

func TestNamesLocked_Sorted(t *testing.T) {
	r := newRoom("r1")
	r.members[newFakePeer("1")] = "zig"
	r.members[newFakePeer("2")] = "amy"
	r.members[newFakePeer("3")] = "bob"

	if got := r.namesLocked(); !equalStrings(got, []string{"amy", "bob", "zig"}) {
		t.Fatalf("names=%v, want sorted", got)
	}
}
