// Package api provides the HTTP API for observing and driving the arena.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/talgya/swarm-arena/internal/agents"
	"github.com/talgya/swarm-arena/internal/config"
	"github.com/talgya/swarm-arena/internal/economy"
	"github.com/talgya/swarm-arena/internal/engine"
	"github.com/talgya/swarm-arena/internal/persistence"
)

const (
	catchUpEvents   = 50
	heartbeatPeriod = 15 * time.Second
)

// Server serves the arena over HTTP.
type Server struct {
	Eng *engine.Engine
	DB  *persistence.DB // optional; enables the mirror read endpoints
	Cfg config.ServerConfig

	// ArenaID selects mirror rows when the request names no arena.
	ArenaID string

	// BaseContext parents the engine loop when started over HTTP.
	BaseContext context.Context

	tickLimiter *rate.Limiter
	readLimiter *RateLimiter
	sseConns    int32
	heartbeat   time.Duration
	http        *http.Server
}

// New creates a server for the engine.
func New(eng *engine.Engine, db *persistence.DB, cfg config.ServerConfig) *Server {
	perSec := cfg.TickPerSec
	if perSec <= 0 {
		perSec = 1
	}
	return &Server{
		Eng:         eng,
		DB:          db,
		Cfg:         cfg,
		BaseContext: context.Background(),
		tickLimiter: rate.NewLimiter(rate.Limit(perSec), 1),
		readLimiter: NewRateLimiter(20, 40),
		heartbeat:   heartbeatPeriod,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.readLimiter.Middleware)
			r.Get("/stats", s.handleStats)
			r.Get("/agents", s.handleAgents)
			r.Get("/agents/{id}", s.handleAgent)
			r.Get("/history", s.handleHistory)
			r.Get("/history/latest", s.handleLatestSnapshot)
			r.Get("/ledger", s.handleLedger)
			r.Get("/events", s.handleEvents)
			r.Get("/cartels", s.handleCartels)
			r.Get("/alliances", s.handleAlliances)
			r.Get("/market", s.handleMarket)
			r.Get("/mirror/transactions", s.handleMirrorTransactions)
			r.Get("/mirror/deaths", s.handleMirrorDeaths)
		})

		// SSE streaming endpoint (relay key, no read limiter on long-lived connections).
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/tick", s.handleTick)
			r.Post("/start", s.handleStart)
			r.Post("/stop", s.handleStop)
			r.Post("/work", s.handleWork)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Cfg.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.Cfg.AdminKey != "", "relay_auth", s.Cfg.RelayKey != "")

	errc := make(chan error, 1)
	go func() { errc <- s.http.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		<-errc
		return nil
	}
}

// cors adds CORS headers for allowed frontend origins. Localhost dev
// servers are always allowed.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range s.Cfg.CORSOrigins {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// adminOnly requires the admin bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Cfg.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no ARENA_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if tok, ok := bearer(r); !ok || tok != s.Cfg.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Eng.Stats())
}

// handleAgents lists actors richest first. Optional filters: category, status.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snaps := s.Eng.Sim.Agents()
	cat := r.URL.Query().Get("category")
	status := r.URL.Query().Get("status")

	out := make([]agents.Snapshot, 0, len(snaps))
	for _, a := range snaps {
		if cat != "" && string(a.Category) != cat {
			continue
		}
		if status != "" && string(a.Status) != status {
			continue
		}
		a.Events = nil
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Eng.Sim.Agent(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Eng.Sim.History())
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Eng.Sim.LatestSnapshot()
	if !ok {
		http.Error(w, "no cycle has run yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Eng.Sim.Ledger(limitParam(r, 100)))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Eng.Sim.Events(limitParam(r, 100)))
}

func (s *Server) handleCartels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Eng.Sim.Cartels())
}

func (s *Server) handleAlliances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Eng.Sim.Alliances())
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Eng.Sim.Market())
}

func (s *Server) handleMirrorTransactions(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "mirror disabled", http.StatusNotFound)
		return
	}
	rows, err := s.DB.RecentTransactions(s.arena(r), limitParam(r, 100))
	if err != nil {
		slog.Error("mirror transactions query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMirrorDeaths(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "mirror disabled", http.StatusNotFound)
		return
	}
	rows, err := s.DB.Deaths(s.arena(r))
	if err != nil {
		slog.Error("mirror deaths query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleTick runs one cycle on demand, limited to Cfg.TickPerSec.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if !s.tickLimiter.Allow() {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "tick rate exceeded", http.StatusTooManyRequests)
		return
	}
	writeJSON(w, http.StatusOK, s.Eng.RunTick(r.Context()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Eng.Start(s.BaseContext); err != nil {
		if errors.Is(err, engine.ErrRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": s.Eng.State()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Eng.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"state": s.Eng.State()})
}

type workRequest struct {
	Requester   string  `json:"requester"`
	Category    string  `json:"category"`
	Payment     float64 `json:"payment"`
	Description string  `json:"description"`
}

// handleWork queues an external work item for the next cycle.
func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	var req workRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	cat, err := economy.ParseCategory(req.Category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Payment <= 0 {
		http.Error(w, "payment must be positive", http.StatusBadRequest)
		return
	}
	if req.Requester == "" {
		req.Requester = "client-api"
	}
	if req.Description == "" {
		req.Description = economy.Description(cat, 0)
	}
	item := economy.NewWorkItem(req.Requester, cat, req.Payment, req.Description, time.Now())
	// The matcher owns item once submitted; respond with the pending copy.
	accepted := *item
	s.Eng.Sim.Submit(item)
	slog.Info("work submitted", "id", accepted.ID, "category", cat, "payment", req.Payment)
	writeJSON(w, http.StatusAccepted, accepted)
}

// handleStream provides an SSE endpoint for real-time event streaming.
// Requires the relay bearer token and limits concurrent connections.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Cfg.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	if tok, ok := bearer(r); !ok || tok != s.Cfg.RelayKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	maxConns := int32(s.Cfg.MaxSSEConns)
	if maxConns < 1 {
		maxConns = 1
	}
	if atomic.AddInt32(&s.sseConns, 1) > maxConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Eng.Sim.Subscribe(256)
	defer s.Eng.Sim.Unsubscribe(subID)

	for _, e := range s.Eng.Sim.Events(catchUpEvents) {
		writeSSEEvent(w, e)
	}
	flusher.Flush()
	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}

func (s *Server) arena(r *http.Request) string {
	if v := r.URL.Query().Get("arena"); v != "" {
		return v
	}
	return s.ArenaID
}

func limitParam(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > 1000 {
		n = 1000
	}
	return n
}
