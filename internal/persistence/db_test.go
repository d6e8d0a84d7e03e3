package persistence

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/config"
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/engine"
	"github.com/talgya/rim-radio/internal/entropy"
	"github.com/talgya/rim-radio/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "radiosim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestAgents_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	in := []*agents.Agent{
		{
			ID: 1, Gen: 3, Name: "Finn Voss", Position: world.HexCoord{Q: 2, R: -1},
			Faction: 1, Joy: 0.42, Mood: 5, Alive: true, BornTick: 10,
			Statuses: map[string]float64{"MusicMellow": 0.5},
			Memories: []agents.Memory{{Tick: 7, Kind: "ListenedToAlbum", Content: "nice", MoodOffset: 4, ExpireTick: 100}},
		},
		{ID: 2, Gen: 1, Name: "Iris Harper", Faction: 1, Downed: true, Prisoner: true},
	}
	require.NoError(t, db.SaveAgents(in))

	out, err := db.LoadAgents()
	require.NoError(t, err)
	require.Len(t, out, 2)

	a := out[0]
	assert.Equal(t, agents.AgentID(1), a.ID)
	assert.Equal(t, uint32(3), a.Gen)
	assert.Equal(t, in[0].Position, a.Position)
	assert.InDelta(t, 0.42, a.Joy, 1e-12)
	assert.True(t, a.Alive)
	assert.Equal(t, in[0].Statuses, a.Statuses)
	assert.Equal(t, in[0].Memories, a.Memories)

	b := out[1]
	assert.False(t, b.Alive)
	assert.True(t, b.Downed)
	assert.True(t, b.Prisoner)
	assert.NotNil(t, b.Statuses)
	assert.Empty(t, b.Memories)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	assert.False(t, db.HasWorldState())
	tick, err := db.LastTick()
	require.NoError(t, err)
	assert.Zero(t, tick)

	require.NoError(t, db.SaveMeta("last_tick", "1440"))
	assert.True(t, db.HasWorldState())
	tick, err = db.LastTick()
	require.NoError(t, err)
	assert.Equal(t, uint64(1440), tick)
}

// newSim builds a one-speaker colony over the given roster.
func newSim(roster *agents.Roster) (*engine.Simulation, *world.Thing) {
	w := world.New(world.NewFloorMap(4))
	speaker := w.Add(&world.Thing{Def: "Speaker", Kind: world.KindStructure, Faction: 1, Speaker: true})
	sim := engine.NewSimulation(config.Default(), w, roster, entropy.NewSequence(0.5))
	return sim, speaker
}

func TestEffects_RestorePrunesUnresolvable(t *testing.T) {
	db := openTestDB(t)

	stored := []effects.RecordState{
		{ListenerID: ptr(uint64(1)), ListenerGen: ptr(uint32(1)), Kind: "MusicGroove", Severity: 0.5, ExpireAt: 200},
		// ID reissued under a new generation.
		{ListenerID: ptr(uint64(2)), ListenerGen: ptr(uint32(1)), Kind: "MusicGroove", Severity: 0.5, ExpireAt: 200},
		// Listener gone.
		{ListenerID: ptr(uint64(3)), ListenerGen: ptr(uint32(1)), Kind: "EarAche", Severity: 0.2, ExpireAt: 150},
		// No ref at all.
		{ListenerID: nil, Kind: "MusicGroove", Severity: 0.9, ExpireAt: 300},
		{ListenerID: ptr(uint64(4)), ListenerGen: ptr(uint32(1)), Kind: "MusicCalm", Severity: 0.3, ExpireAt: 180},
	}

	roster := agents.NewRoster([]*agents.Agent{
		{ID: 1, Gen: 1, Alive: true},
		{ID: 2, Gen: 2, Alive: true},
		{ID: 4, Gen: 1, Alive: true},
	})
	sim, speaker := newSim(roster)
	require.NoError(t, db.SaveEffectRecords(map[world.ThingID][]effects.RecordState{speaker.ID: stored}))

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	kept, dropped, err := db.RestoreEffects(sim)
	require.NoError(t, err)
	assert.Equal(t, 2, kept)
	assert.Equal(t, 3, dropped)
	assert.Empty(t, logs.String(), "stale records are pruned quietly")

	rec, ok := speaker.Effects.Find(effects.ListenerRef{ID: 4, Gen: 1}, "MusicCalm")
	require.True(t, ok)
	assert.Equal(t, uint64(180), rec.ExpireAt)
	assert.InDelta(t, 0.3, rec.Severity, 1e-12)
}

func TestSaveWorldState_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	finn := &agents.Agent{ID: 1, Gen: 1, Name: "Finn Voss", Faction: 1, Alive: true, Statuses: map[string]float64{}}
	sim, speaker := newSim(agents.NewRoster([]*agents.Agent{finn}))
	speaker.Effects.Apply(5, finn, "MusicGroove", 60, 0.5)
	sim.LastTick = 9
	sim.Events = append(sim.Events, engine.Event{Tick: 6, Description: "Finn Voss finished listening", Category: "session"})

	require.NoError(t, db.SaveWorldState(sim))
	require.NoError(t, db.SaveWorldState(sim))

	events, err := db.RecentEvents(10)
	require.NoError(t, err)
	assert.Len(t, events, 1, "events are written once")

	rows, err := db.AllEffectRecords()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(speaker.ID), rows[0].LocationID)
	require.NotNil(t, rows[0].ListenerID)
	assert.Equal(t, uint64(1), *rows[0].ListenerID)
	assert.Equal(t, int64(65), rows[0].ExpireAt)

	loaded, err := db.LoadAgents()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.InDelta(t, 0.5, loaded[0].Statuses["MusicGroove"], 1e-12)

	// A fresh run with the same roster keeps the record.
	restored := &agents.Agent{ID: 1, Gen: 1, Alive: true, Statuses: loaded[0].Statuses}
	sim2, speaker2 := newSim(agents.NewRoster([]*agents.Agent{restored}))
	kept, dropped, err := db.RestoreEffects(sim2)
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	assert.Zero(t, dropped)
	assert.Equal(t, 1, speaker2.Effects.Len())
}
