package main

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/wavecall/signal-relay/internal/config"
)

type recordedLog struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	mu      *sync.Mutex
	records *[]recordedLog
	attrs   []slog.Attr
	groups  []string
}

func newRecordingLogger() (*slog.Logger, func() []recordedLog) {
	mu := &sync.Mutex{}
	records := &[]recordedLog{}
	h := &recordingHandler{mu: mu, records: records}
	logger := slog.New(h)
	return logger, func() []recordedLog {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedLog, len(*records))
		copy(out, *records)
		return out
	}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := recordedLog{
		level: r.Level,
		msg:   r.Message,
		attrs: map[string]any{},
	}
	for _, a := range h.attrs {
		rec.attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	nh.attrs = append(nh.attrs, attrs...)
	return nh
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *recordingHandler) clone() *recordingHandler {
	cp := &recordingHandler{
		mu:      h.mu,
		records: h.records,
	}
	if len(h.attrs) > 0 {
		cp.attrs = append([]slog.Attr(nil), h.attrs...)
	}
	if len(h.groups) > 0 {
		cp.groups = append([]string(nil), h.groups...)
	}
	return cp
}

func warningCodes(records []recordedLog) map[string]bool {
	codes := map[string]bool{}
	for _, r := range records {
		if r.level != slog.LevelWarn {
			continue
		}
		if code, ok := r.attrs["warning_code"].(string); ok {
			codes[code] = true
		}
	}
	return codes
}

func TestStartupSecurityWarnings_AlwaysWarnsUnauthenticated(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{Mode: config.ModeDev})

	if !warningCodes(records())["signaling_unauthenticated"] {
		t.Fatalf("expected warning_code=signaling_unauthenticated, got %#v", records())
	}
}

func TestStartupSecurityWarnings_AllowedOriginsWildcard(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:           config.ModeDev,
		AllowedOrigins: []string{"*"},
	})

	if !warningCodes(records())["allowed_origins_wildcard"] {
		t.Fatalf("expected warning_code=allowed_origins_wildcard, got %#v", records())
	}
}

func TestStartupSecurityWarnings_EmptyAllowlistInProd(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{Mode: config.ModeProd})

	codes := warningCodes(records())
	if !codes["allowed_origins_empty_in_prod"] {
		t.Fatalf("expected warning_code=allowed_origins_empty_in_prod, got %#v", records())
	}

	logger, records = newRecordingLogger()
	logStartupSecurityWarnings(logger, config.Config{
		Mode:           config.ModeProd,
		AllowedOrigins: []string{"https://app.example.com"},
	})
	if warningCodes(records())["allowed_origins_empty_in_prod"] {
		t.Fatalf("unexpected empty-allowlist warning with allowlist set")
	}
}

func TestStartupSecurityWarnings_LargeMessageBytes(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:            config.ModeDev,
		MaxMessageBytes: 2 << 20,
	})

	if !warningCodes(records())["max_message_bytes_large"] {
		t.Fatalf("expected warning_code=max_message_bytes_large, got %#v", records())
	}
}
