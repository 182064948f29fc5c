package relay

import (
	"encoding/json"
	"testing"
)

func TestParseMessage_Classification(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Kind
	}{
		{"non-json", "not json at all", KindOpaque},
		{"json array", `[1,2,3]`, KindOpaque},
		{"json null", `null`, KindOpaque},
		{"empty object", `{}`, KindUnknown},
		{"unrecognized type", `{"type":"dance"}`, KindUnknown},
		{"numeric type", `{"type":42}`, KindUnknown},
		{"hello", `{"type":"hello"}`, KindHello},
		{"iam_host", `{"type":"iam_host"}`, KindIAmHost},
		{"host_mute_all", `{"type":"host_mute_all"}`, KindHostMuteAll},
		{"host_kick", `{"type":"host_kick","target":"bob"}`, KindHostKick},
		{"transfer_host", `{"type":"transfer_host","to":"bob"}`, KindTransferHost},
		{"introduce_pair", `{"type":"introduce_pair","a":"x","b":"y"}`, KindIntroducePair},
		{"signal", `{"type":"signal","to":"bob","data":1}`, KindSignal},
		{"signal null to", `{"type":"signal","to":null}`, KindSignal},
		{"signal without to", `{"type":"signal","data":1}`, KindUnknown},
		{"chat", `{"type":"chat","text":"hi"}`, KindChat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := ParseMessage([]byte(tc.raw))
			if msg.Kind != tc.want {
				t.Fatalf("ParseMessage(%s).Kind=%v, want %v", tc.raw, msg.Kind, tc.want)
			}
			if string(msg.Raw) != tc.raw {
				t.Fatalf("Raw not preserved: %q", msg.Raw)
			}
		})
	}
}

func TestParseMessage_FieldExtraction(t *testing.T) {
	msg := ParseMessage([]byte(`{"type":"host_kick","target":"bob"}`))
	if msg.Target != "bob" {
		t.Fatalf("Target=%q, want bob", msg.Target)
	}

	msg = ParseMessage([]byte(`{"type":"introduce_pair","a":"amy","b":"zig"}`))
	if msg.A != "amy" || msg.B != "zig" {
		t.Fatalf("A=%q B=%q, want amy zig", msg.A, msg.B)
	}

	// Non-string fields degrade to "" rather than failing the parse.
	msg = ParseMessage([]byte(`{"type":"signal","to":7}`))
	if msg.Kind != KindSignal || msg.To != "" {
		t.Fatalf("Kind=%v To=%q, want signal with empty To", msg.Kind, msg.To)
	}
}

func TestParseMessage_ChatTrimsText(t *testing.T) {
	msg := ParseMessage([]byte(`{"type":"chat","text":"  hi there  "}`))
	if msg.Text != "hi there" {
		t.Fatalf("Text=%q, want trimmed", msg.Text)
	}

	msg = ParseMessage([]byte(`{"type":"chat","text":"   "}`))
	if msg.Text != "" {
		t.Fatalf("Text=%q, want empty after trim", msg.Text)
	}
}

func TestPeerListPayload_SortedUsersAndNullableHost(t *testing.T) {
	payload := peerListPayload([]string{"zig", "amy", "bob"}, "bob")

	var got struct {
		Type  string   `json:"type"`
		Users []string `json:"users"`
		Host  *string  `json:"host"`
	}
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "peer_list" {
		t.Fatalf("type=%q", got.Type)
	}
	if !equalStrings(got.Users, []string{"amy", "bob", "zig"}) {
		t.Fatalf("users=%v, want sorted", got.Users)
	}
	if got.Host == nil || *got.Host != "bob" {
		t.Fatalf("host=%v, want bob", got.Host)
	}
}

func TestHostChangedPayload_EmptyHostIsNull(t *testing.T) {
	var got struct {
		Host *string `json:"host"`
	}
	if err := json.Unmarshal(hostChangedPayload(""), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Host != nil {
		t.Fatalf("host=%v, want null", *got.Host)
	}
}

func TestIntroPayload_Shape(t *testing.T) {
	var got struct {
		Type string `json:"type"`
		To   string `json:"to"`
		From string `json:"from"`
		Data struct {
			Type  string `json:"type"`
			Other string `json:"other"`
		} `json:"data"`
	}
	if err := json.Unmarshal(introPayload("amy", "zig"), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "signal" || got.To != "amy" || got.From != "host" {
		t.Fatalf("envelope=%+v", got)
	}
	if got.Data.Type != "intro" || got.Data.Other != "zig" {
		t.Fatalf("data=%+v", got.Data)
	}
}
