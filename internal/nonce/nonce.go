// Package nonce issues and verifies forgery-protection tokens for admin forms.
//
// Tokens follow the WordPress nonce scheme: an HMAC over the current tick, the
// action name, and the operator, where a tick is half the token lifetime. A token
// verifies during the tick it was issued in and the one after, so it is valid for
// between half and the full lifetime.
package nonce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// DefaultLifetime matches WordPress' nonce_life default.
const DefaultLifetime = 24 * time.Hour

// tokenBytes is how much of the MAC is kept in the token.
const tokenBytes = 10

// Age reports which tick a verified token was issued in.
type Age int

const (
	Invalid  Age = 0
	Current  Age = 1
	Previous Age = 2
)

// Manager creates and checks tokens.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager signing with secret.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("nonce secret is required")
	}
	m := &Manager{
		secret:   []byte(secret),
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create returns a token for action bound to operator.
func (m *Manager) Create(action, operator string) string {
	return m.token(m.tick(), action, operator)
}

// Verify checks token against the current and previous tick.
func (m *Manager) Verify(token, action, operator string) Age {
	if token == "" {
		return Invalid
	}
	tick := m.tick()
	if hmac.Equal([]byte(token), []byte(m.token(tick, action, operator))) {
		return Current
	}
	if hmac.Equal([]byte(token), []byte(m.token(tick-1, action, operator))) {
		return Previous
	}
	return Invalid
}

// Valid is Verify reduced to a boolean.
func (m *Manager) Valid(token, action, operator string) bool {
	return m.Verify(token, action, operator) != Invalid
}

func (m *Manager) tick() int64 {
	half := int64(m.lifetime / 2)
	return (m.now().UnixNano() + half - 1) / half
}

func (m *Manager) token(tick int64, action, operator string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	mac.Write([]byte{'|'})
	mac.Write([]byte(operator))
	return hex.EncodeToString(mac.Sum(nil)[:tokenBytes])
}
