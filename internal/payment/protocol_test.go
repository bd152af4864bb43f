package payment

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinned(t time.Time) *Protocol {
	return &Protocol{Now: func() time.Time { return t }, MaxAge: 30 * time.Second}
}

func TestDigestDeterministic(t *testing.T) {
	a, err := Digest("client-01", "actor-1", 50_000, "n1")
	require.NoError(t, err)
	b, err := Digest("client-01", "actor-1", 50_000, "n1")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "sha256:"))

	c, err := Digest("client-01", "actor-1", 50_001, "n1")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestChallengeCarriesMinorUnits(t *testing.T) {
	p := pinned(time.Unix(1_700_000_000, 0))
	ch := p.IssueChallenge("actor-1", "code-review", 0.061234, "work-1")
	assert.Equal(t, int64(61_234), ch.AmountMinor)
	assert.Equal(t, int64(30), ch.MaxAgeSeconds)
	assert.Equal(t, "actor-1", ch.PayTo)
}

func TestSettleInsideWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := pinned(now)
	auth, err := p.Authorize(p.IssueChallenge("actor-1", "research", 0.04, "w"), "client-02", "nonce")
	require.NoError(t, err)

	s := p.Settle(auth)
	assert.True(t, s.Success)
	assert.NoError(t, s.Err)
	assert.True(t, strings.HasPrefix(s.Reference, "stl_"))
	assert.Equal(t, now, s.Timestamp)
}

func TestSettleDigestMismatch(t *testing.T) {
	p := pinned(time.Unix(1_700_000_000, 0))
	auth, err := p.Authorize(p.IssueChallenge("actor-1", "research", 0.04, "w"), "client-02", "nonce")
	require.NoError(t, err)

	auth.AmountMinor *= 2
	s := p.Settle(auth)
	assert.False(t, s.Success)
	assert.ErrorIs(t, s.Err, ErrDigestMismatch)
	assert.Empty(t, s.Reference)
}

func TestSettleOutsideWindow(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	p := pinned(issued)
	auth, err := p.Authorize(p.IssueChallenge("actor-1", "research", 0.04, "w"), "client-02", "nonce")
	require.NoError(t, err)

	late := pinned(issued.Add(31 * time.Second))
	s := late.Settle(auth)
	assert.False(t, s.Success)
	assert.ErrorIs(t, s.Err, ErrOutsideWindow)

	early := pinned(issued.Add(-time.Second))
	s = early.Settle(auth)
	assert.False(t, s.Success)
	assert.ErrorIs(t, s.Err, ErrOutsideWindow)

	edge := pinned(issued.Add(30 * time.Second))
	assert.True(t, edge.Settle(auth).Success)
}

func TestPayRoundTrip(t *testing.T) {
	p := NewProtocol()
	s, err := p.Pay("client-03", "actor-9", "translation", 0.02, "w-9")
	require.NoError(t, err)
	assert.True(t, s.Success)
}

func TestMinorConversion(t *testing.T) {
	assert.Equal(t, int64(1_000_000), ToMinor(1))
	assert.InDelta(t, 0.125, FromMinor(ToMinor(0.125)), 1e-12)
}
