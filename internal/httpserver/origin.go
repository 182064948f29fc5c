package httpserver

import (
	"net/http"
	"strings"

	"github.com/wavecall/signal-relay/internal/origin"
)

func (s *Server) withOriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		originHeader := strings.TrimSpace(r.Header.Get("Origin"))
		if originHeader == "" {
			next(w, r)
			return
		}

		normalized, ok := origin.Normalize(originHeader)
		if !ok || !origin.Allowed(normalized, r.Host, s.cfg.AllowedOrigins) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		// CORS headers only matter when the browser sends an Origin header.
		// Sending them for same-origin requests is harmless and lets the
		// frontend run on a separate origin during development.
		w.Header().Set("Access-Control-Allow-Origin", normalized)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
			if requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers")); requestHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// OriginPolicy exposes the origin/CORS gate for routes registered outside
// this package, such as the signaling WebSocket endpoint.
func (s *Server) OriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	return s.withOriginPolicy(next)
}
