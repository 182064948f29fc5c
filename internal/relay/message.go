package relay

import (
	"encoding/json"
	"sort"
	"strings"
)

// Kind is the closed set of client message variants the router understands,
// plus two explicit fallback variants for everything it does not.
type Kind int

const (
	// KindOpaque is a frame that is not a JSON object at all. It is relayed
	// verbatim to the rest of the room.
	KindOpaque Kind = iota
	// KindUnknown is a JSON object whose type the router does not recognize.
	// Like KindOpaque it is blind-relayed; the distinction only matters for
	// metrics.
	KindUnknown
	KindHello
	KindIAmHost
	KindHostMuteAll
	KindHostKick
	KindTransferHost
	KindIntroducePair
	KindSignal
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindUnknown:
		return "unknown"
	case KindHello:
		return "hello"
	case KindIAmHost:
		return "iam_host"
	case KindHostMuteAll:
		return "host_mute_all"
	case KindHostKick:
		return "host_kick"
	case KindTransferHost:
		return "transfer_host"
	case KindIntroducePair:
		return "introduce_pair"
	case KindSignal:
		return "signal"
	case KindChat:
		return "chat"
	default:
		return "invalid"
	}
}

// Message is one parsed inbound frame. Only the fields relevant to Kind are
// populated; Raw always holds the original frame and Fields the decoded JSON
// object for variants that are relayed with rewriting (signal) or verbatim
// (unknown).
type Message struct {
	Kind Kind

	Target string // host_kick
	To     string // transfer_host, signal, chat (private recipient)
	A, B   string // introduce_pair
	Text   string // chat, trimmed

	Fields map[string]any
	Raw    []byte
}

// ParseMessage classifies an inbound frame. It never fails: anything that is
// not a recognized JSON object degrades to a blind-relay variant, by design.
func ParseMessage(raw []byte) Message {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Message{Kind: KindOpaque, Raw: raw}
	}

	msg := Message{Kind: KindUnknown, Fields: fields, Raw: raw}
	typ, _ := fields["type"].(string)
	switch typ {
	case "hello":
		msg.Kind = KindHello
	case "iam_host":
		msg.Kind = KindIAmHost
	case "host_mute_all":
		msg.Kind = KindHostMuteAll
	case "host_kick":
		msg.Kind = KindHostKick
		msg.Target = stringField(fields, "target")
	case "transfer_host":
		msg.Kind = KindTransferHost
		msg.To = stringField(fields, "to")
	case "introduce_pair":
		msg.Kind = KindIntroducePair
		msg.A = stringField(fields, "a")
		msg.B = stringField(fields, "b")
	case "signal":
		// A signal without a "to" key is not addressable; it falls through to
		// the blind relay like any other unrecognized payload.
		if _, ok := fields["to"]; ok {
			msg.Kind = KindSignal
			msg.To = stringField(fields, "to")
		}
	case "chat":
		msg.Kind = KindChat
		msg.To = stringField(fields, "to")
		msg.Text = strings.TrimSpace(stringField(fields, "text"))
	}
	return msg
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// Server -> client wire messages. Hosts are nullable on the wire: a room that
// lost its last member mid-failover reports host:null, matching what browser
// clients already handle.

type wirePeerList struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
	Host  *string  `json:"host"`
}

type wirePeerEvent struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type wireHostChanged struct {
	Type string  `json:"type"`
	Host *string `json:"host"`
}

type wireHostMute struct {
	Type string `json:"type"`
}

type wireHostKick struct {
	Type string `json:"type"`
	To   string `json:"to"`
}

type wireSignal struct {
	Type string `json:"type"`
	To   string `json:"to"`
	From string `json:"from"`
	Data any    `json:"data"`
}

type wireIntro struct {
	Type  string `json:"type"`
	Other string `json:"other"`
}

type wireChat struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	Text    string `json:"text"`
	Private bool   `json:"private,omitempty"`
	To      string `json:"to,omitempty"`
}

func peerListPayload(users []string, host string) []byte {
	sort.Strings(users)
	return marshal(wirePeerList{Type: "peer_list", Users: users, Host: nullableName(host)})
}

func peerJoinedPayload(user string) []byte {
	return marshal(wirePeerEvent{Type: "peer_joined", User: user})
}

func peerLeftPayload(user string) []byte {
	return marshal(wirePeerEvent{Type: "peer_left", User: user})
}

func hostChangedPayload(host string) []byte {
	return marshal(wireHostChanged{Type: "host_changed", Host: nullableName(host)})
}

func hostMutePayload() []byte {
	return marshal(wireHostMute{Type: "host_mute"})
}

func hostKickPayload(to string) []byte {
	return marshal(wireHostKick{Type: "host_kick", To: to})
}

func introPayload(to, other string) []byte {
	return marshal(wireSignal{
		Type: "signal",
		To:   to,
		From: "host",
		Data: wireIntro{Type: "intro", Other: other},
	})
}

func chatPayload(from, text string, private bool, to string) []byte {
	return marshal(wireChat{Type: "chat", From: from, Text: text, Private: private, To: to})
}

func nullableName(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}

// marshal serializes server-built wire messages; the inputs are closed structs
// and decoded JSON values, so encoding cannot fail.
func marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
