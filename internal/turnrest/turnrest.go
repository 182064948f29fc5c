// Package turnrest mints ephemeral TURN credentials following the coturn
// REST API convention (draft-uberti-behave-turn-rest): the username carries
// a unix expiry and the credential is an HMAC-SHA1 over the username, so the
// TURN server can verify credentials without a shared database.
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Credentials is a time-limited TURN username/credential pair.
type Credentials struct {
	Username   string
	Credential string
	ExpiresAt  int64
}

// Config configures a Minter. Now and SessionID are injectable for tests and
// default to time.Now and a crypto/rand session ID.
type Config struct {
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string

	Now       func() time.Time
	SessionID func() (string, error)
}

// Minter produces Credentials accepted by a TURN server configured with the
// same shared secret (coturn: use-auth-secret + static-auth-secret).
type Minter struct {
	secret    []byte
	ttl       time.Duration
	prefix    string
	now       func() time.Time
	sessionID func() (string, error)
}

func New(cfg Config) (*Minter, error) {
	if strings.TrimSpace(cfg.SharedSecret) == "" {
		return nil, errors.New("turnrest: shared secret must not be empty")
	}
	if cfg.TTL < time.Second {
		return nil, fmt.Errorf("turnrest: ttl %v must be at least 1s", cfg.TTL)
	}
	prefix := strings.TrimSpace(cfg.UsernamePrefix)
	if prefix == "" {
		return nil, errors.New("turnrest: username prefix must not be empty")
	}
	if strings.Contains(prefix, ":") {
		return nil, errors.New("turnrest: username prefix must not contain ':'")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sessionID := cfg.SessionID
	if sessionID == nil {
		sessionID = randomSessionID
	}

	return &Minter{
		secret:    []byte(cfg.SharedSecret),
		ttl:       cfg.TTL,
		prefix:    prefix,
		now:       now,
		sessionID: sessionID,
	}, nil
}

// Mint returns credentials bound to sessionID. The username is
// "<expiry>:<prefix>:<sessionID>"; colons are the field separator, so the
// session ID must not contain one.
func (m *Minter) Mint(sessionID string) (Credentials, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Credentials{}, errors.New("turnrest: session id must not be empty")
	}
	if strings.Contains(sessionID, ":") {
		return Credentials{}, errors.New("turnrest: session id must not contain ':'")
	}

	expiry := m.now().UTC().Add(m.ttl).Unix()
	username := fmt.Sprintf("%d:%s:%s", expiry, m.prefix, sessionID)

	return Credentials{
		Username:   username,
		Credential: m.sign(username),
		ExpiresAt:  expiry,
	}, nil
}

// MintRandom mints credentials with a fresh random session ID.
func (m *Minter) MintRandom() (Credentials, error) {
	sessionID, err := m.sessionID()
	if err != nil {
		return Credentials{}, fmt.Errorf("turnrest: session id: %w", err)
	}
	return m.Mint(sessionID)
}

func (m *Minter) sign(username string) string {
	mac := hmac.New(sha1.New, m.secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func randomSessionID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
