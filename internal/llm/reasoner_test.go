package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scripted(answers ...string) Provider {
	var i int32
	return ProviderFunc(func(ctx context.Context, _ []Message, _ string) (string, error) {
		n := int(atomic.AddInt32(&i, 1)) - 1
		if n >= len(answers) {
			n = len(answers) - 1
		}
		return answers[n], nil
	})
}

func failing() Provider {
	return ProviderFunc(func(ctx context.Context, _ []Message, _ string) (string, error) {
		return "", errors.New("upstream 529")
	})
}

func TestBreakerTripsAndStaysOpen(t *testing.T) {
	b := NewBreaker(3)
	assert.False(t, b.Failure())
	assert.False(t, b.Failure())
	b.Success()
	assert.Equal(t, 0, b.Failures())

	b.Failure()
	b.Failure()
	assert.True(t, b.Failure())
	assert.True(t, b.Open())
	assert.False(t, b.Allow())

	b.Success()
	assert.True(t, b.Open(), "breaker never auto-resets")
}

func TestReasonerDisabledDoesNotCount(t *testing.T) {
	var c *Client
	r := NewReasoner(c, NewBreaker(1), time.Second)
	assert.False(t, r.Enabled())

	_, err := r.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, r.Breaker().Open())
}

func TestReasonerProviderFailuresTripBreaker(t *testing.T) {
	r := NewReasoner(failing(), NewBreaker(3), time.Second)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := GenerateAcceptDecision(ctx, r, ActorContext{Name: "a"}, 0.05, "job")
		require.Error(t, err)
	}
	assert.True(t, r.Breaker().Open())

	_, err := r.Complete(ctx, "s", "u")
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestReasonerTimeoutCountsAsFailure(t *testing.T) {
	slow := ProviderFunc(func(ctx context.Context, _ []Message, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	r := NewReasoner(slow, NewBreaker(2), 20*time.Millisecond)
	_, err := r.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, r.Breaker().Failures())
}

func TestMalformedResponseCountsAsFailure(t *testing.T) {
	r := NewReasoner(scripted("I would rather not say", `{"accept": true, "reason": "fair"}`), NewBreaker(5), time.Second)
	ctx := context.Background()

	_, err := GenerateAcceptDecision(ctx, r, ActorContext{}, 0.05, "job")
	require.Error(t, err)
	assert.Equal(t, 1, r.Breaker().Failures())

	d, err := GenerateAcceptDecision(ctx, r, ActorContext{}, 0.05, "job")
	require.NoError(t, err)
	assert.True(t, d.Accept)
	assert.Equal(t, 0, r.Breaker().Failures(), "success resets the count")
}

func TestParseCartelClampsMultiplier(t *testing.T) {
	p, err := parseCartelResponse(`Sure. {"join": true, "multiplier": 3.5, "reason": "greed"}`)
	require.NoError(t, err)
	assert.Equal(t, MaxMultiplier, p.Multiplier)

	p, err = parseCartelResponse(`{"join": false}`)
	require.NoError(t, err)
	assert.False(t, p.Join)

	_, err = parseCartelResponse(`{"join": true}`)
	assert.Error(t, err)
}

func TestParseStrategyRejectsUnknownMode(t *testing.T) {
	a, err := parseStrategyResponse(`{"pricing": " Premium ", "reason": "strong brand"}`)
	require.NoError(t, err)
	assert.Equal(t, "premium", a.Pricing)

	_, err = parseStrategyResponse(`{"pricing": "free"}`)
	assert.Error(t, err)
}

func TestParseScamRequiresField(t *testing.T) {
	_, err := parseScamResponse(`{"reason": "hmm"}`)
	assert.Error(t, err)

	a, err := parseScamResponse(`{"scam": false, "reason": "honest"}`)
	require.NoError(t, err)
	assert.False(t, a.Scam)
}

func TestClientFallsBackAcrossCredentials(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		seen = append(seen, key)
		if key == "bad" {
			http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"text":"{\"accept\":true}"}],"usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewClient([]string{"bad", "good"}, "", 6000, 10)
	require.NotNil(t, c)
	c.url = srv.URL

	text, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "sys")
	require.NoError(t, err)
	assert.Equal(t, `{"accept":true}`, text)
	assert.Equal(t, []string{"bad", "good"}, seen)
}

func TestNewClientWithoutKeys(t *testing.T) {
	assert.Nil(t, NewClient(nil, "", 10, 1))
	assert.Nil(t, NewClient([]string{""}, "", 10, 1))
}
