package nonce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m, err := NewManager("test-secret", WithLifetime(24*time.Hour), WithClock(clock.now))
	require.NoError(t, err)
	return m, clock
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("")
	assert.Error(t, err)
}

func TestVerifyRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	token := m.Create("edd_create_payment_nonce", "admin")

	assert.Len(t, token, tokenBytes*2)
	assert.Equal(t, Current, m.Verify(token, "edd_create_payment_nonce", "admin"))
	assert.True(t, m.Valid(token, "edd_create_payment_nonce", "admin"))
}

func TestVerifyRejectsMismatches(t *testing.T) {
	m, _ := newTestManager(t)
	token := m.Create("edd_create_payment_nonce", "admin")

	assert.Equal(t, Invalid, m.Verify(token, "other_action", "admin"))
	assert.Equal(t, Invalid, m.Verify(token, "edd_create_payment_nonce", "editor"))
	assert.Equal(t, Invalid, m.Verify("", "edd_create_payment_nonce", "admin"))
	assert.Equal(t, Invalid, m.Verify("deadbeef", "edd_create_payment_nonce", "admin"))

	other, err := NewManager("another-secret")
	require.NoError(t, err)
	assert.False(t, other.Valid(token, "edd_create_payment_nonce", "admin"))
}

func TestVerifyAcrossTicks(t *testing.T) {
	m, clock := newTestManager(t)
	token := m.Create("edd_create_payment_nonce", "admin")

	clock.t = clock.t.Add(12 * time.Hour)
	assert.Equal(t, Previous, m.Verify(token, "edd_create_payment_nonce", "admin"))

	clock.t = clock.t.Add(12 * time.Hour)
	assert.Equal(t, Invalid, m.Verify(token, "edd_create_payment_nonce", "admin"))
}
