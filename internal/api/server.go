// Package api provides the HTTP API for querying colony state.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/engine"
	"github.com/talgya/rim-radio/internal/listening"
	"github.com/talgya/rim-radio/internal/persistence"
	"github.com/talgya/rim-radio/internal/world"
)

// Server serves the colony state over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
	AssignLimit int    // Session starts per minute per client; 0 = unlimited
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agents/{id}", s.handleAgentDetail)
	mux.HandleFunc("GET /api/v1/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/v1/effects", s.handleEffects)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)

	assign := s.adminOnly(s.handleAssign)
	if s.AssignLimit > 0 {
		assign = RateLimitMiddleware(NewRateLimiter(s.AssignLimit, time.Minute), assign)
	}
	mux.HandleFunc("POST /api/v1/sessions", assign)
	mux.HandleFunc("POST /api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no RADIOSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Sim.View(func() {
		status = map[string]any{
			"name":           "rim-radio",
			"tick":           s.Sim.LastTick,
			"sim_time":       engine.SimTime(s.Sim.LastTick),
			"colonists":      s.Sim.Roster.Len(),
			"listening":      len(s.Sim.Tasks),
			"speakers":       len(s.Sim.World.Speakers()),
			"sessions_done":  s.Sim.Stats.SessionsDone,
			"active_effects": s.Sim.Stats.ActiveEffects,
		}
	})
	if s.Eng != nil {
		status["running"] = s.Eng.Running()
		status["speed"] = s.Eng.Speed
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats engine.SimStats
	s.Sim.View(func() { stats = s.Sim.Stats })
	writeJSON(w, stats)
}

type agentSummary struct {
	ID        agents.AgentID `json:"id"`
	Name      string         `json:"name"`
	Position  world.HexCoord `json:"position"`
	Stance    string         `json:"stance"`
	Joy       float64        `json:"joy"`
	Mood      float64        `json:"mood"`
	Statuses  int            `json:"statuses"`
	Listening bool           `json:"listening"`
	Alive     bool           `json:"alive"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	faction := r.URL.Query().Get("faction")

	var result []agentSummary
	s.Sim.View(func() {
		for _, a := range s.Sim.Roster.All() {
			if faction != "" && strconv.FormatUint(a.Faction, 10) != faction {
				continue
			}
			busy := false
			for _, t := range s.Sim.Tasks {
				if t.AgentID() == a.ID {
					busy = true
					break
				}
			}
			result = append(result, agentSummary{
				ID:        a.ID,
				Name:      a.Name,
				Position:  a.Position,
				Stance:    a.Stance.String(),
				Joy:       a.Joy,
				Mood:      a.Mood,
				Statuses:  len(a.Statuses),
				Listening: busy,
				Alive:     a.Alive,
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	// Marshal under the lock; the agent is mutated by the tick loop.
	var body []byte
	found := false
	s.Sim.View(func() {
		a := s.Sim.Roster.Get(agents.AgentID(id))
		if a == nil {
			return
		}
		found = true
		body, err = json.MarshalIndent(a, "", "  ")
	})
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "encode agent", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

type taskView struct {
	listening.Task
	AgentName string `json:"agent_name"`
	Album     string `json:"album"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	var result []taskView
	s.Sim.View(func() {
		for _, t := range s.Sim.Tasks {
			v := taskView{Task: *t, AgentName: t.Agent.Name}
			if item := s.Sim.World.Thing(t.Item); item != nil {
				v.Album = item.Def
			}
			result = append(result, v)
		}
	})
	writeJSON(w, result)
}

type locationEffects struct {
	LocationID world.ThingID    `json:"location_id"`
	Position   world.HexCoord   `json:"position"`
	Records    []effects.Record `json:"records"`
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	var result []locationEffects
	s.Sim.View(func() {
		for _, sp := range s.Sim.World.Speakers() {
			result = append(result, locationEffects{
				LocationID: sp.ID,
				Position:   sp.Position,
				Records:    sp.Effects.Records(),
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.Sim.View(func() {
		for _, e := range s.Sim.Events {
			if category == "" || e.Category == category {
				events = append(events, e)
			}
		}
	})

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID uint64 `json:"agent_id"`
		ItemID  uint64 `json:"item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	task, err := s.Sim.Assign(agents.AgentID(req.AgentID), world.ThingID(req.ItemID))
	switch {
	case errors.Is(err, engine.ErrUnknownAgent), errors.Is(err, listening.ErrItemUnavailable):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, engine.ErrHasSession), errors.Is(err, listening.ErrItemReserved), errors.Is(err, listening.ErrAgentBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("session assigned via API", "task", task.ID, "agent", req.AgentID, "album", req.ItemID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"task_id": task.ID, "phase": task.Phase})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
