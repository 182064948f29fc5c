package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/wavecall/signal-relay/internal/metrics"
)

var errSendFailed = errors.New("send failed")

// fakePeer records everything sent to it. Setting fail makes every Send
// error, which is how tests exercise the pruning paths.
type fakePeer struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errSendFailed
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	p.sent = append(p.sent, cp)
	return nil
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) setFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.sent = nil
	p.mu.Unlock()
}

// received decodes every sent frame as a JSON object. Frames that are not
// JSON objects (blind-relayed opaque payloads) appear as {"_raw": <frame>}.
func (p *fakePeer) received(t *testing.T) []map[string]any {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]map[string]any, 0, len(p.sent))
	for _, frame := range p.sent {
		var m map[string]any
		if err := json.Unmarshal(frame, &m); err != nil || m == nil {
			m = map[string]any{"_raw": string(frame)}
		}
		out = append(out, m)
	}
	return out
}

func (p *fakePeer) receivedTypes(t *testing.T) []string {
	t.Helper()
	msgs := p.received(t)
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		typ, _ := m["type"].(string)
		if typ == "" {
			typ = fmt.Sprintf("%v", m["_raw"])
		}
		types = append(types, typ)
	}
	return types
}

func newTestRegistry() *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(logger, metrics.New())
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
