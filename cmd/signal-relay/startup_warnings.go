package main

import (
	"log/slog"

	"github.com/wavecall/signal-relay/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	// The signaling protocol has no authentication step: anyone who can reach
	// the endpoint can join any room under any display name.
	logger.Warn("startup security warning: signaling is unauthenticated; restrict exposure via network controls and ALLOWED_ORIGINS",
		"warning_code", "signaling_unauthenticated",
		"mode", cfg.Mode,
	)

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && len(cfg.AllowedOrigins) == 0 {
		logger.Warn("startup security warning: ALLOWED_ORIGINS is empty while --mode=prod (browsers on other origins are rejected; non-browser clients are not)",
			"warning_code", "allowed_origins_empty_in_prod",
			"mode", cfg.Mode,
		)
	}

	// Oversized frames weaken the relay's DoS hardening since every inbound
	// frame is buffered in full before routing.
	if cfg.MaxMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (increases per-message allocation risk)",
			"warning_code", "max_message_bytes_large",
			"max_message_bytes", cfg.MaxMessageBytes,
			"mode", cfg.Mode,
		)
	}
}

func containsString(xs []string, v string) bool {
	for _, s := range xs {
		if s == v {
			return true
		}
	}
	return false
}
