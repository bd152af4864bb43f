package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/engine"
	"github.com/talgya/swarm-arena/internal/entropy"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	cfg := config.Default()
	sim := engine.NewSimulation(cfg, engine.Options{Source: entropy.NewSeeded(3)})
	eng := engine.NewEngine(sim, time.Hour)
	t.Cleanup(eng.Stop)

	scfg := cfg.Server
	scfg.AdminKey = "admin"
	scfg.RelayKey = "relay"
	scfg.TickPerSec = 1
	return New(eng, nil, scfg), eng
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReadEndpoints(t *testing.T) {
	s, eng := newTestServer(t)
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/api/v1/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st engine.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, eng.Sim.ActorCount(), st.Actors)

	rec = do(t, h, http.MethodGet, "/api/v1/agents", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []agents.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, eng.Sim.ActorCount())

	rec = do(t, h, http.MethodGet, "/api/v1/agents/"+list[0].ID, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/agents/nobody", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/agents?category=nonexistent", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	for _, path := range []string{"/history", "/ledger?limit=5", "/events", "/cartels", "/alliances", "/market"} {
		rec = do(t, h, http.MethodGet, "/api/v1"+path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/mirror/transactions", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAuth(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/tick", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/tick", "wrong", "").Code)

	s.Cfg.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, s.Router(), http.MethodPost, "/api/v1/tick", "admin", "").Code)
}

func TestTickIsRateLimited(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/tick", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st engine.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, uint64(1), st.Cycle)

	rec = do(t, h, http.MethodPost, "/api/v1/tick", "admin", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestStartStop(t *testing.T) {
	s, eng := newTestServer(t)
	h := s.Router()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/start", "admin", "").Code)
	assert.Equal(t, engine.StateRunning, eng.State())
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/start", "admin", "").Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/stop", "admin", "").Code)
	assert.Equal(t, engine.StateStopped, eng.State())

	// A stopped engine does not advance on demand.
	rec := do(t, h, http.MethodPost, "/api/v1/tick", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st engine.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, uint64(0), st.Cycle)
	assert.Equal(t, string(engine.StateStopped), st.State)
}

func TestSubmitWork(t *testing.T) {
	s, eng := newTestServer(t)
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/work", "admin", `{"category":"nope","payment":0.1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/work", "admin", `{"category":"research","payment":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/work", "admin", `{"category":"research","payment":0.1,"extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/work", "admin", `{"category":"research","payment":0.1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, eng.Sim.Stats().PendingWork)
	var item economy.WorkItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, economy.WorkPending, item.Status)
	assert.NotEmpty(t, item.ID)
}

func TestSubmitWorkWhileRunning(t *testing.T) {
	s, eng := newTestServer(t)
	eng.Interval = time.Millisecond
	h := s.Router()
	require.NoError(t, eng.Start(context.Background()))

	for i := 0; i < 20; i++ {
		rec := do(t, h, http.MethodPost, "/api/v1/work", "admin", `{"category":"research","payment":0.1}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		var item economy.WorkItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
		assert.Equal(t, economy.WorkPending, item.Status)
	}
	eng.Stop()
}

func TestLatestSnapshot(t *testing.T) {
	s, eng := newTestServer(t)
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/api/v1/history/latest", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	eng.RunTick(context.Background())
	rec = do(t, h, http.MethodGet, "/api/v1/history/latest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap engine.BalanceSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, uint64(1), snap.Cycle)
}

func TestStreamAuthAndDelivery(t *testing.T) {
	s, eng := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stream")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer relay")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	eng.RunTick(context.Background())

	found := make(chan bool, 1)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
		for sc.Scan() {
			if sc.Text() == "event: stats" {
				found <- true
				return
			}
		}
		found <- false
	}()

	select {
	case ok := <-found:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no stats event on the stream")
	}
	cancel()
}

func TestStreamConnectionCap(t *testing.T) {
	s, _ := newTestServer(t)
	s.Cfg.MaxSSEConns = 1
	s.sseConns = 1

	rec := do(t, s.Router(), http.MethodGet, "/api/v1/stream", "relay", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))

	now = now.Add(time.Hour)
	rl.Allow("3.3.3.3")
	rl.mu.Lock()
	_, stale := rl.clients["1.1.1.1"]
	rl.mu.Unlock()
	assert.False(t, stale)
}
