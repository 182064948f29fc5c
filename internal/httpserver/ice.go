package httpserver

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// withTURNCredentials returns a copy of servers with username/credential set
// on every entry that carries a turn: or turns: URL. STUN-only entries are
// left untouched.
func withTURNCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	if len(servers) == 0 {
		// Preserve empty (non-nil) slices so JSON responses consistently
		// encode as `[]` rather than `null`.
		return servers
	}
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if iceServerHasTURNURL(server) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

func iceServerHasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		url := strings.ToLower(strings.TrimSpace(raw))
		if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
			return true
		}
	}
	return false
}
