package listening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/entropy"
	"github.com/talgya/rim-radio/internal/quality"
	"github.com/talgya/rim-radio/internal/world"
)

const (
	colony     = uint64(1)
	kindMellow = "MusicMellow"
	kindGroove = "MusicGroove"
	kindAche   = "EarAche"
	memoryKind = "ListenedToAlbum"
)

type fakeStage struct {
	roster        *agents.Roster
	tracker       *effects.Tracker
	radius        int
	audienceCalls int
}

func (s *fakeStage) Audience(center world.HexCoord, faction uint64) []effects.Listener {
	s.audienceCalls++
	var out []effects.Listener
	for _, a := range s.roster.All() {
		if a.Faction == faction && a.CanListen() && world.Distance(a.Position, center) <= s.radius {
			out = append(out, a)
		}
	}
	return out
}

func (s *fakeStage) Venue(world.HexCoord) *effects.Tracker {
	return s.tracker
}

type fixture struct {
	w       *world.World
	roster  *agents.Roster
	agent   *agents.Agent
	friend  *agents.Agent
	album   *world.Thing
	stage   *fakeStage
	machine *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := world.New(world.NewFloorMap(6))
	album := w.Add(&world.Thing{
		Def:      "Album_Jazz",
		Kind:     world.KindItem,
		Faction:  colony,
		Position: world.HexCoord{Q: 3, R: 0},
		Placed:   true,
		Quality:  quality.Good,
	})

	agent := &agents.Agent{ID: 1, Gen: 1, Name: "Finn Voss", Faction: colony, Alive: true, Position: world.HexCoord{Q: -3, R: 0}}
	friend := &agents.Agent{ID: 2, Gen: 1, Name: "Iris Harper", Faction: colony, Alive: true, Position: world.HexCoord{Q: 2, R: -1}}
	roster := agents.NewRoster([]*agents.Agent{agent, friend})

	catalog := effects.NewCatalog(
		effects.Definition{Kind: kindMellow, MoodPerUnit: 6},
		effects.Definition{Kind: kindGroove, MoodPerUnit: 8},
		effects.Definition{Kind: kindAche, MoodPerUnit: -10, Negative: true},
	)
	stage := &fakeStage{roster: roster, tracker: effects.NewTracker(roster, catalog), radius: 5}
	resolver := &effects.Resolver{
		Table:          quality.DefaultTable(),
		Rand:           entropy.NewSequence(0.99),
		Catalog:        catalog,
		TicksPerMinute: 1,
		NegativeKind:   kindAche,
		DefaultKind:    kindGroove,
		Genres:         []effects.GenreKeyword{{Keyword: "jazz", Kind: kindMellow}},
	}
	settings := Settings{
		SeatRadius:         4,
		DefaultListenTicks: 5,
		Default: ItemType{
			Mode:   RewardOnCompletion,
			Memory: &MemoryDef{Kind: memoryKind, MoodOffset: 4, DurationTicks: 100},
		},
	}

	return &fixture{
		w:       w,
		roster:  roster,
		agent:   agent,
		friend:  friend,
		album:   album,
		stage:   stage,
		machine: NewMachine(w, stage, resolver, settings, nil),
	}
}

func (f *fixture) addSeat(pos world.HexCoord, comfort float64) *world.Thing {
	return f.w.Add(&world.Thing{Def: "Armchair", Kind: world.KindStructure, Faction: colony, Position: pos, Seat: true, Comfort: comfort})
}

// run advances the task until it terminates, calling hook before each tick.
func (f *fixture) run(t *testing.T, task *Task, hook func(tick uint64)) uint64 {
	t.Helper()
	var tick uint64
	for tick = 1; tick < 500 && !task.Phase.IsTerminal(); tick++ {
		if hook != nil {
			hook(tick)
		}
		f.machine.Advance(task, tick)
	}
	require.True(t, task.Phase.IsTerminal(), "task did not terminate, phase %s", task.Phase)
	return tick
}

func TestFindBestSeat(t *testing.T) {
	w := world.New(world.NewFloorMap(6))
	center := world.HexCoord{}
	req := Requester{ID: 1, Faction: colony, Position: world.HexCoord{Q: -1, R: 0}}

	_, ok := FindBestSeat(w, center, 3, req)
	assert.False(t, ok, "empty world")

	w.Add(&world.Thing{Def: "Stool", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 5, R: 0}, Seat: true, Comfort: 1})
	_, ok = FindBestSeat(w, center, 3, req)
	assert.False(t, ok, "only seat is outside radius")

	near := w.Add(&world.Thing{Def: "Stool", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 1, R: 0}, Seat: true, Comfort: 0.4})
	comfy := w.Add(&world.Thing{Def: "Armchair", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 3, R: 0}, Seat: true, Comfort: 0.5})
	// Same score as comfy but later in world order.
	twin := w.Add(&world.Thing{Def: "Armchair", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 0, R: 3}, Seat: true, Comfort: 0.5})

	// Rejected candidates with high comfort.
	w.Add(&world.Thing{Def: "Throne", Kind: world.KindStructure, Faction: 2, Position: world.HexCoord{Q: 0, R: 1}, Seat: true, Comfort: 1})
	w.Add(&world.Thing{Def: "Throne", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 0, R: 1}, Seat: true, Comfort: 1, Forbidden: true})
	w.Add(&world.Thing{Def: "Throne", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 0, R: 1}, Seat: true, Comfort: 1, Destroyed: true})
	w.Add(&world.Thing{Def: "Table", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 0, R: 1}, Comfort: 1})
	taken := w.Add(&world.Thing{Def: "Throne", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: 0, R: -1}, Seat: true, Comfort: 1})
	require.True(t, w.Reserve(99, taken.ID))

	walled := world.HexCoord{Q: -2, R: 2}
	for _, n := range walled.Neighbors() {
		w.Map.SetTerrain(n, world.TerrainWall)
	}
	w.Add(&world.Thing{Def: "Throne", Kind: world.KindStructure, Faction: colony, Position: walled, Seat: true, Comfort: 1})

	best, ok := FindBestSeat(w, center, 3, req)
	require.True(t, ok)
	assert.Equal(t, comfy.ID, best.ID, "0.5*100-3*0.75 beats 0.4*100-1*0.75; first of equal scores wins")

	_, held := w.ReservedBy(best.ID)
	assert.False(t, held, "selection takes no reservation")

	comfy.Comfort = 0.3
	best, ok = FindBestSeat(w, center, 3, req)
	require.True(t, ok)
	assert.Equal(t, twin.ID, best.ID)

	twin.Forbidden = true
	best, ok = FindBestSeat(w, center, 3, req)
	require.True(t, ok)
	assert.Equal(t, near.ID, best.ID, "0.4*100-0.75 beats 0.3*100-2.25")
}

func TestStart_Errors(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.w.Reserve(uint64(f.friend.ID), f.album.ID))
	_, err := f.machine.Start(f.agent, f.album.ID, 0)
	assert.ErrorIs(t, err, ErrItemReserved)

	f.w.Release(uint64(f.friend.ID), f.album.ID)
	f.album.Destroyed = true
	_, err = f.machine.Start(f.agent, f.album.ID, 0)
	assert.ErrorIs(t, err, ErrItemUnavailable)

	_, err = f.machine.Start(f.agent, world.ThingID(404), 0)
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestStart_OriginFromHolder(t *testing.T) {
	f := newFixture(t)
	shelf := f.w.Add(&world.Thing{Def: "Shelf", Kind: world.KindStructure, Faction: colony, Position: world.HexCoord{Q: -1, R: 2}})
	f.album.Placed = false
	f.album.Holder = &shelf.ID

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, shelf.Position, task.Origin)
	assert.NotEmpty(t, task.ID)
}

func TestSession_WithSeat(t *testing.T) {
	f := newFixture(t)
	seat := f.addSeat(world.HexCoord{Q: 3, R: -1}, 0.8)
	origin := f.album.Position

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)

	sawSeated := false
	var facing *world.HexCoord
	f.run(t, task, func(uint64) {
		if task.Phase == PhaseListen && f.agent.Stance == agents.StanceSeated {
			sawSeated = true
			_, held := f.w.ReservedBy(seat.ID)
			assert.True(t, held)
			if f.agent.Facing != nil {
				facing = f.agent.Facing
			}
		}
	})

	assert.Equal(t, PhaseDone, task.Phase)
	require.NotNil(t, task.Seat)
	assert.Equal(t, seat.ID, *task.Seat)
	assert.True(t, sawSeated)
	require.NotNil(t, facing)
	assert.Equal(t, origin, *facing, "seated listener faces the album's cell")
	assert.Nil(t, f.agent.Facing)

	// Album back where it came from, nothing held.
	assert.True(t, f.album.Placed)
	assert.Nil(t, f.album.Carrier)
	assert.Equal(t, origin, f.album.Position)
	assert.Nil(t, f.agent.Carrying)
	_, held := f.w.ReservedBy(f.album.ID)
	assert.False(t, held)
	_, held = f.w.ReservedBy(seat.ID)
	assert.False(t, held)
	assert.Equal(t, agents.StanceStanding, f.agent.Stance)

	// Audience effects: both colonists are in range.
	require.Len(t, task.Outcomes, 2)
	assert.Equal(t, 1, f.stage.audienceCalls)
	assert.Equal(t, 2, f.stage.tracker.Len())
	sev, ok := f.friend.Status(kindMellow)
	require.True(t, ok)
	assert.InDelta(t, 0.5, sev, 1e-9)

	require.Len(t, f.agent.Memories, 1)
	assert.Equal(t, memoryKind, f.agent.Memories[0].Kind)
	assert.Contains(t, f.agent.Memories[0].Content, "Album_Jazz")
}

func TestSession_NoSeatListensStanding(t *testing.T) {
	f := newFixture(t)
	// Only seat is far outside the search radius.
	f.addSeat(world.HexCoord{Q: -5, R: 0}, 1)

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)

	sawListen := false
	f.run(t, task, func(uint64) {
		if task.Phase == PhaseListen {
			sawListen = true
			assert.Equal(t, agents.StanceStanding, f.agent.Stance)
			if f.agent.Facing != nil {
				assert.Equal(t, world.HexCoord{Q: 3, R: 0}, *f.agent.Facing)
				assert.NotEqual(t, f.agent.Position, *f.agent.Facing)
			}
		}
	})

	assert.True(t, sawListen)
	assert.Equal(t, PhaseDone, task.Phase)
	assert.Nil(t, task.Seat)
	assert.Empty(t, task.FailReason)
	assert.NotEmpty(t, task.Outcomes)
	assert.Len(t, f.agent.Memories, 1)
}

func TestSession_ForbiddenMidListenFails(t *testing.T) {
	f := newFixture(t)
	seat := f.addSeat(world.HexCoord{Q: 3, R: -1}, 0.8)

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)

	listenTicks := 0
	f.run(t, task, func(uint64) {
		if task.Phase == PhaseListen {
			listenTicks++
			if listenTicks == 3 {
				f.album.Forbidden = true
			}
		}
	})

	assert.Equal(t, PhaseFailed, task.Phase)
	assert.Equal(t, "album forbidden", task.FailReason)
	assert.Equal(t, 0, f.stage.audienceCalls, "resolver never runs on failure")
	assert.Empty(t, task.Outcomes)
	assert.Equal(t, 0, f.stage.tracker.Len())
	assert.Empty(t, f.agent.Memories)

	_, held := f.w.ReservedBy(f.album.ID)
	assert.False(t, held)
	_, held = f.w.ReservedBy(seat.ID)
	assert.False(t, held)

	// Dropped where the agent stood.
	assert.True(t, f.album.Placed)
	assert.Nil(t, f.agent.Carrying)
	assert.LessOrEqual(t, world.Distance(f.album.Position, f.agent.Position), 1)
}

func TestSession_SeatDestroyedMidListenFails(t *testing.T) {
	f := newFixture(t)
	seat := f.addSeat(world.HexCoord{Q: 3, R: -1}, 0.8)

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)
	f.run(t, task, func(uint64) {
		if task.Phase == PhaseListen {
			seat.Destroyed = true
		}
	})
	assert.Equal(t, PhaseFailed, task.Phase)
	assert.Equal(t, "seat destroyed", task.FailReason)
}

func TestSession_SeatForbiddenMidListenFails(t *testing.T) {
	f := newFixture(t)
	seat := f.addSeat(world.HexCoord{Q: 3, R: -1}, 0.8)

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)
	f.run(t, task, func(uint64) {
		if task.Phase == PhaseListen {
			seat.Forbidden = true
		}
	})
	assert.Equal(t, PhaseFailed, task.Phase)
	assert.Equal(t, "seat forbidden", task.FailReason)
	assert.Empty(t, task.Outcomes)
	_, held := f.w.ReservedBy(seat.ID)
	assert.False(t, held)
	assert.Equal(t, agents.StanceStanding, f.agent.Stance)
}

func TestSession_ContestedDuringTravelFails(t *testing.T) {
	f := newFixture(t)
	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)

	f.run(t, task, func(tick uint64) {
		if tick == 2 {
			other := uint64(f.friend.ID)
			f.album.Carrier = &other
		}
	})

	assert.Equal(t, PhaseFailed, task.Phase)
	assert.Equal(t, "album contested", task.FailReason)
	assert.Nil(t, f.agent.Carrying)
	_, held := f.w.ReservedBy(f.album.ID)
	assert.False(t, held)
	assert.Equal(t, 0, f.stage.audienceCalls)
}

func TestSession_SeatSearchCentresOnAlbum(t *testing.T) {
	f := newFixture(t)
	f.machine.Settings.SeatRadius = 3
	// Within 3 of where the agent picks the album up, 4 from the album.
	behind := f.addSeat(world.HexCoord{Q: -1, R: 0}, 1)
	// Within 3 of the album, 4 from the agent.
	byAlbum := f.addSeat(world.HexCoord{Q: 6, R: -1}, 0.5)

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)
	f.run(t, task, nil)

	assert.Equal(t, PhaseDone, task.Phase)
	require.NotNil(t, task.Seat)
	assert.Equal(t, byAlbum.ID, *task.Seat)
	assert.NotEqual(t, behind.ID, *task.Seat)
}

func TestSession_PerTickReward(t *testing.T) {
	f := newFixture(t)
	f.machine.Settings.ItemTypes = map[string]ItemType{
		"Album_Jazz": {Def: "Album_Jazz", ListenTicks: 10, JoyPerTick: 0.02, Mode: RewardPerTick},
	}
	f.agent.Joy = 0.1

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)
	f.run(t, task, nil)

	assert.Equal(t, PhaseDone, task.Phase)
	assert.InDelta(t, 0.3, f.agent.Joy, 1e-9)
	assert.Equal(t, 0, f.stage.audienceCalls)
	assert.Empty(t, f.agent.Memories, "type has no completion memory")
}

func TestSession_UnreachableAlbumFails(t *testing.T) {
	f := newFixture(t)
	for _, n := range f.album.Position.Neighbors() {
		f.w.Map.SetTerrain(n, world.TerrainRock)
	}

	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)
	f.run(t, task, nil)

	assert.Equal(t, PhaseFailed, task.Phase)
	assert.Equal(t, "album unreachable", task.FailReason)
	_, held := f.w.ReservedBy(f.album.ID)
	assert.False(t, held)
}

func TestCancel_DropsCarriedAlbum(t *testing.T) {
	f := newFixture(t)
	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)

	for tick := uint64(1); task.Phase == PhaseTravel; tick++ {
		f.machine.Advance(task, tick)
	}
	require.NotNil(t, f.agent.Carrying)

	f.machine.Cancel(task, "drafted")
	assert.Equal(t, PhaseFailed, task.Phase)
	assert.Equal(t, "cancelled: drafted", task.FailReason)
	assert.Nil(t, f.agent.Carrying)
	assert.True(t, f.album.Placed)
	_, held := f.w.ReservedBy(f.album.ID)
	assert.False(t, held)

	// Cancelling a finished task is a no-op.
	f.machine.Cancel(task, "again")
	assert.Equal(t, "cancelled: drafted", task.FailReason)
}

func TestCancel_NoRoomLeavesAlbumUnheld(t *testing.T) {
	f := newFixture(t)
	task, err := f.machine.Start(f.agent, f.album.ID, 0)
	require.NoError(t, err)
	for tick := uint64(1); task.Phase == PhaseTravel; tick++ {
		f.machine.Advance(task, tick)
	}
	require.NotNil(t, f.agent.Carrying)

	for c := range f.w.Map.Hexes {
		f.w.Add(&world.Thing{Def: "Crate", Kind: world.KindItem, Faction: colony, Position: c, Placed: true})
	}

	f.machine.Cancel(task, "drafted")
	assert.Equal(t, PhaseFailed, task.Phase)
	assert.Nil(t, f.agent.Carrying)
	assert.Nil(t, f.album.Carrier, "no agent keeps the album")
	assert.False(t, f.album.Placed)
	assert.Equal(t, f.agent.Position, f.album.Position)

	_, err = f.machine.Start(f.friend, f.album.ID, 10)
	assert.NoError(t, err, "album is free for someone else")
}

func TestSettings_ItemTypeFallback(t *testing.T) {
	s := Settings{
		DefaultListenTicks: 7,
		Default:            ItemType{Mode: RewardOnCompletion},
		ItemTypes:          map[string]ItemType{"Album_Rock": {Def: "Album_Rock", ListenTicks: 3, Mode: RewardPerTick}},
	}
	assert.Equal(t, 3, s.listenTicks(s.ItemType("Album_Rock")))

	it := s.ItemType("Album_Polka")
	assert.Equal(t, "Album_Polka", it.Def)
	assert.Equal(t, RewardOnCompletion, it.Mode)
	assert.Equal(t, 7, s.listenTicks(it))

	assert.Equal(t, 1, Settings{}.listenTicks(ItemType{}))
}
