package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/config"
	"github.com/talgya/rim-radio/internal/engine"
	"github.com/talgya/rim-radio/internal/entropy"
	"github.com/talgya/rim-radio/internal/quality"
	"github.com/talgya/rim-radio/internal/world"
)

func newTestServer(t *testing.T) (*Server, *world.Thing) {
	t.Helper()
	w := world.New(world.NewFloorMap(5))
	w.Add(&world.Thing{Def: "Speaker", Kind: world.KindStructure, Faction: 1, Speaker: true})
	album := w.Add(&world.Thing{Def: "Album_Jazz", Kind: world.KindItem, Faction: 1, Position: world.HexCoord{Q: 2, R: 0}, Placed: true, Quality: quality.Good})
	roster := agents.NewRoster([]*agents.Agent{
		{ID: 1, Gen: 1, Name: "Finn Voss", Faction: 1, Alive: true, Statuses: map[string]float64{}},
		{ID: 2, Gen: 1, Name: "Iris Harper", Faction: 2, Alive: true, Statuses: map[string]float64{}},
	})
	sim := engine.NewSimulation(config.Default(), w, roster, entropy.NewSequence(0.9))
	return &Server{Sim: sim, AdminKey: "secret"}, album
}

func do(t *testing.T, h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth {
		req.Header.Set("Authorization", "Bearer secret")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusAndAgents(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.EqualValues(t, 2, status["colonists"])
	assert.EqualValues(t, 1, status["speakers"])

	rec = do(t, h, http.MethodGet, "/api/v1/agents?faction=2", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []agentSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Iris Harper", list[0].Name)

	rec = do(t, h, http.MethodGet, "/api/v1/agents/1", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Finn Voss")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/agents/99", "", false).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/agents/abc", "", false).Code)
}

func TestAssignSession(t *testing.T) {
	s, album := newTestServer(t)
	h := s.Handler()
	body := `{"agent_id": 1, "item_id": ` + jsonNumber(uint64(album.ID)) + `}`

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/sessions", body, false).Code)

	rec := do(t, h, http.MethodPost, "/api/v1/sessions", body, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"phase":"travel"`)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/sessions", body, true).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/sessions", `{"agent_id": 9, "item_id": 1}`, true).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/sessions", `{`, true).Code)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Finn Voss", tasks[0]["agent_name"])
	assert.Equal(t, "Album_Jazz", tasks[0]["album"])
}

func TestEffectsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	finn := s.Sim.Roster.Get(1)
	s.Sim.World.Speakers()[0].Effects.Apply(1, finn, "MusicMellow", 60, 0.5)

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/effects", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []locationEffects
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Len(t, got[0].Records, 1)
	assert.Equal(t, "MusicMellow", got[0].Records[0].Kind)
	assert.Equal(t, uint64(61), got[0].Records[0].ExpireAt)
}

func TestAdminEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodPost, "/api/v1/snapshot", "", true).Code)

	s.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, s.Handler(), http.MethodPost, "/api/v1/snapshot", "", true).Code)
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients are limited separately")
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimitedAssign(t *testing.T) {
	s, _ := newTestServer(t)
	s.AssignLimit = 1
	h := s.Handler()

	do(t, h, http.MethodPost, "/api/v1/sessions", `{}`, true)
	rec := do(t, h, http.MethodPost, "/api/v1/sessions", `{}`, true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
