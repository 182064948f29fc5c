package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wavecall/signal-relay/internal/origin"
)

const (
	envVarListenAddr      = "SIGNAL_RELAY_LISTEN_ADDR"
	envVarMode            = "SIGNAL_RELAY_MODE"
	envVarLogFormat       = "SIGNAL_RELAY_LOG_FORMAT"
	envVarLogLevel        = "SIGNAL_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "SIGNAL_RELAY_SHUTDOWN_TIMEOUT"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// Signaling WebSocket hardening.
	envVarWSIdleTimeout        = "SIGNALING_WS_IDLE_TIMEOUT"
	envVarWSPingInterval       = "SIGNALING_WS_PING_INTERVAL"
	envVarMaxMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"

	DefaultListenAddr      = "127.0.0.1:8000"
	DefaultShutdown        = 15 * time.Second
	DefaultMode       Mode = ModeDev

	DefaultWSIdleTimeout        = 60 * time.Second
	DefaultWSPingInterval       = 20 * time.Second
	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 50

	DefaultTURNRestTTL            = time.Hour
	DefaultTURNRestUsernamePrefix = "wavecall"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TURNRestConfig enables per-request TURN credential minting compatible with
// coturn's REST API auth. When enabled, TURN entries in the ICE server list
// may omit static credentials; GET /rtc/ice fills them in per request.
type TURNRestConfig struct {
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string
}

func (c TURNRestConfig) Enabled() bool {
	return strings.TrimSpace(c.SharedSecret) != ""
}

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// AllowedOrigins is the normalized browser origin allowlist ("*" allowed).
	// Empty means same-host only.
	AllowedOrigins []string

	WSIdleTimeout  time.Duration
	WSPingInterval time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int

	// ICEServers is the STUN/TURN list served to clients at GET /rtc/ice so
	// they can complete the peer connections this relay signals for.
	ICEServers []webrtc.ICEServer

	TURNRest TURNRestConfig

	iceConfigErr error
}

// ICEConfigError reports a deferred ICE configuration error. Invalid ICE
// config does not fail startup (the relay itself works without it), but
// /readyz and /rtc/ice surface it.
func (c Config) ICEConfigError() error {
	return c.iceConfigErr
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, _ := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, _ := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	allowedOriginsStr := envOrDefault(lookup, envVarAllowedOrigins, "")
	iceServersJSON := envOrDefault(lookup, envICEServersJSON, "")
	stunURLs := envOrDefault(lookup, envStunURLs, "")
	turnURLs := envOrDefault(lookup, envTurnURLs, "")
	turnUsername := envOrDefault(lookup, envTurnUsername, "")
	turnCredential := envOrDefault(lookup, envTurnCredential, "")
	turnRestSecret := envOrDefault(lookup, envTurnRestSecret, "")
	turnRestUsernamePrefix := envOrDefault(lookup, envTurnRestUsernamePrefix, DefaultTURNRestUsernamePrefix)

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}
	wsIdleTimeout, err := envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	wsPingInterval, err := envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	turnRestTTL, err := envDurationOrDefault(lookup, envTurnRestTTL, DefaultTURNRestTTL)
	if err != nil {
		return Config{}, err
	}

	maxMessageBytes := DefaultMaxMessageBytes
	if raw, ok := lookup(envVarMaxMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxMessageBytes, raw, err)
		}
		maxMessageBytes = n
	}

	maxMessagesPerSecond := DefaultMaxMessagesPerSecond
	if raw, ok := lookup(envVarMaxMessagesPerSecond); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxMessagesPerSecond, raw, err)
		}
		maxMessagesPerSecond = n
	}

	fs := flag.NewFlagSet("signal-relay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port; env "+envVarListenAddr+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod (env "+envVarMode+")")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json (env "+envVarLogFormat+")")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error (env "+envVarLogLevel+")")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (env "+envVarShutdownTimeout+")")
	fs.StringVar(&allowedOriginsStr, "allowed-origins", allowedOriginsStr, "Comma-separated list of allowed browser origins (env "+envVarAllowedOrigins+")")
	fs.DurationVar(&wsIdleTimeout, "ws-idle-timeout", wsIdleTimeout, "Close idle signaling connections after this duration (env "+envVarWSIdleTimeout+")")
	fs.DurationVar(&wsPingInterval, "ws-ping-interval", wsPingInterval, "Ping interval on signaling connections (must be < --ws-idle-timeout; env "+envVarWSPingInterval+")")
	fs.Int64Var(&maxMessageBytes, "max-message-bytes", maxMessageBytes, "Max inbound signaling message size in bytes (env "+envVarMaxMessageBytes+")")
	fs.IntVar(&maxMessagesPerSecond, "max-messages-per-second", maxMessagesPerSecond, "Max inbound signaling messages per second per connection (env "+envVarMaxMessagesPerSecond+")")
	fs.StringVar(&iceServersJSON, "ice-servers-json", iceServersJSON, "ICE server JSON config (env "+envICEServersJSON+")")
	fs.StringVar(&stunURLs, "stun-urls", stunURLs, "Comma-separated STUN URLs (env "+envStunURLs+")")
	fs.StringVar(&turnURLs, "turn-urls", turnURLs, "Comma-separated TURN URLs (env "+envTurnURLs+")")
	fs.StringVar(&turnUsername, "turn-username", turnUsername, "TURN username (env "+envTurnUsername+")")
	fs.StringVar(&turnCredential, "turn-credential", turnCredential, "TURN credential (env "+envTurnCredential+")")
	fs.StringVar(&turnRestSecret, "turn-rest-secret", turnRestSecret, "TURN REST shared secret; enables ephemeral TURN credentials (env "+envTurnRestSecret+")")
	fs.DurationVar(&turnRestTTL, "turn-rest-ttl", turnRestTTL, "TURN REST credential lifetime (env "+envTurnRestTTL+")")
	fs.StringVar(&turnRestUsernamePrefix, "turn-rest-username-prefix", turnRestUsernamePrefix, "TURN REST username prefix, no ':' (env "+envTurnRestUsernamePrefix+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	// A --mode flag moves the log defaults with it unless format/level were
	// pinned explicitly.
	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	if listenAddr == "" {
		return Config{}, fmt.Errorf("listen address must not be empty")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--shutdown-timeout must be > 0", envVarShutdownTimeout)
	}
	if wsIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--ws-idle-timeout must be > 0", envVarWSIdleTimeout)
	}
	if wsPingInterval <= 0 {
		return Config{}, fmt.Errorf("%s/--ws-ping-interval must be > 0", envVarWSPingInterval)
	}
	if wsPingInterval >= wsIdleTimeout {
		return Config{}, fmt.Errorf("%s/--ws-ping-interval must be < %s/--ws-idle-timeout", envVarWSPingInterval, envVarWSIdleTimeout)
	}
	if maxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-message-bytes must be > 0", envVarMaxMessageBytes)
	}
	if maxMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s/--max-messages-per-second must be > 0", envVarMaxMessagesPerSecond)
	}

	allowedOrigins, err := parseAllowedOrigins(allowedOriginsStr)
	if err != nil {
		return Config{}, fmt.Errorf("%s/--allowed-origins: %w", envVarAllowedOrigins, err)
	}

	if strings.TrimSpace(turnRestSecret) != "" {
		if turnRestTTL < time.Second {
			return Config{}, fmt.Errorf("%s/--turn-rest-ttl must be at least 1s when %s is set", envTurnRestTTL, envTurnRestSecret)
		}
		if strings.TrimSpace(turnRestUsernamePrefix) == "" {
			return Config{}, fmt.Errorf("%s/--turn-rest-username-prefix must be non-empty when %s is set", envTurnRestUsernamePrefix, envTurnRestSecret)
		}
		if strings.Contains(turnRestUsernamePrefix, ":") {
			return Config{}, fmt.Errorf("%s/--turn-rest-username-prefix must not contain ':'", envTurnRestUsernamePrefix)
		}
	}

	cfg := Config{
		ListenAddr:      listenAddr,
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,
		AllowedOrigins:  allowedOrigins,

		WSIdleTimeout:  wsIdleTimeout,
		WSPingInterval: wsPingInterval,

		MaxMessageBytes:      maxMessageBytes,
		MaxMessagesPerSecond: maxMessagesPerSecond,

		TURNRest: TURNRestConfig{
			SharedSecret:   turnRestSecret,
			TTL:            turnRestTTL,
			UsernamePrefix: turnRestUsernamePrefix,
		},
	}

	iceServers, err := parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential, cfg.TURNRest.Enabled())
	if err != nil {
		cfg.iceConfigErr = err
	} else {
		cfg.ICEServers = iceServers
	}

	return cfg, nil
}

func parseAllowedOrigins(raw string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			out = append(out, part)
			continue
		}
		normalized, ok := origin.Normalize(part)
		if !ok {
			return nil, fmt.Errorf("invalid origin %q", part)
		}
		out = append(out, normalized)
	}
	return out, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", raw)
	}
}
