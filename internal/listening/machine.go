package listening

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/world"
)

// World is the set of world services a listening task uses.
type World interface {
	SeatWorld
	Thing(id world.ThingID) *world.Thing
	CurrentLocation(id world.ThingID) (world.Location, bool)
	Reserve(agent uint64, id world.ThingID) bool
	Release(agent uint64, id world.ThingID)
	ReservedBy(id world.ThingID) (uint64, bool)
	StepToward(from, to world.HexCoord) (world.HexCoord, bool)
	PickUp(agent uint64, id world.ThingID) bool
	PlaceNear(id world.ThingID, cell world.HexCoord) (world.HexCoord, bool)
}

// Machine advances listening tasks one tick at a time.
type Machine struct {
	World    World
	Stage    Stage
	Resolver *effects.Resolver
	Settings Settings
	Narrator Narrator
	Logger   *slog.Logger
}

// NewMachine creates a task machine. A nil narrator falls back to NullNarrator.
func NewMachine(w World, stage Stage, resolver *effects.Resolver, settings Settings, narrator Narrator) *Machine {
	if narrator == nil {
		narrator = NullNarrator{}
	}
	return &Machine{
		World:    w,
		Stage:    stage,
		Resolver: resolver,
		Settings: settings,
		Narrator: narrator,
		Logger:   slog.Default(),
	}
}

// Start sets up a task: records where the album should go back to and
// reserves it for the agent. On error no task exists and nothing is held.
func (m *Machine) Start(a *agents.Agent, itemID world.ThingID, now uint64) (*Task, error) {
	if a.Carrying != nil {
		return nil, ErrAgentBusy
	}
	item := m.World.Thing(itemID)
	if !item.Usable() || item.Kind != world.KindItem {
		return nil, fmt.Errorf("start listening to %d: %w", itemID, ErrItemUnavailable)
	}
	loc, _ := m.World.CurrentLocation(itemID)
	if loc.Carrier != nil && *loc.Carrier != uint64(a.ID) {
		return nil, fmt.Errorf("start listening to %d: %w", itemID, ErrItemReserved)
	}

	origin := a.Position
	if loc.Placed || loc.Holder != nil {
		origin = loc.Cell
	}
	if !m.World.Reserve(uint64(a.ID), itemID) {
		return nil, fmt.Errorf("start listening to %d: %w", itemID, ErrItemReserved)
	}

	t := &Task{
		ID:          uuid.NewString(),
		Agent:       a,
		Item:        itemID,
		Origin:      origin,
		Phase:       PhaseTravel,
		StartedTick: now,
	}
	m.Logger.Debug("listening task started", "task", t.ID, "agent", a.Name, "album", item.Def, "origin", origin)
	return t, nil
}

// Advance runs one tick of the task and returns its phase afterwards.
// Terminal tasks are left untouched.
func (m *Machine) Advance(t *Task, now uint64) Phase {
	switch t.Phase {
	case PhaseTravel:
		m.travel(t)
	case PhaseSeatTravel:
		m.seatTravel(t)
	case PhaseListen:
		m.listen(t, now)
	case PhaseReward:
		m.reward(t, now)
	case PhaseReturn:
		m.returnItem(t)
	}
	return t.Phase
}

// Cancel aborts a task from outside. Reservations are released and a carried
// album is dropped where the agent stands.
func (m *Machine) Cancel(t *Task, reason string) {
	if t.Phase.IsTerminal() {
		return
	}
	m.fail(t, "cancelled: "+reason)
}

// ── Phases ───────────────────────────────────────────────────────────

func (m *Machine) travel(t *Task) {
	a := t.Agent
	item := m.World.Thing(t.Item)
	if reason := m.itemProblem(t, item); reason != "" {
		m.fail(t, reason)
		return
	}
	loc, _ := m.World.CurrentLocation(t.Item)

	if world.InRange(a.Position, loc.Cell) {
		if !m.World.PickUp(uint64(a.ID), t.Item) {
			m.fail(t, "album contested")
			return
		}
		id := t.Item
		a.Carrying = &id
		t.Phase = PhaseSeatTravel
		return
	}

	next, ok := m.World.StepToward(a.Position, loc.Cell)
	if !ok {
		m.fail(t, "album unreachable")
		return
	}
	a.Position = next
}

func (m *Machine) seatTravel(t *Task) {
	a := t.Agent
	if reason := m.itemProblem(t, m.World.Thing(t.Item)); reason != "" {
		m.fail(t, reason)
		return
	}

	if !t.seatSearched {
		t.seatSearched = true
		req := Requester{ID: uint64(a.ID), Faction: a.Faction, Position: a.Position}
		loc, _ := m.World.CurrentLocation(t.Item)
		seat, ok := FindBestSeat(m.World, loc.Cell, m.Settings.SeatRadius, req)
		if ok && m.World.Reserve(uint64(a.ID), seat.ID) {
			id := seat.ID
			t.Seat = &id
			return
		}
		m.Logger.Debug("no seat found, listening standing", "task", t.ID, "agent", a.Name)
		m.beginListen(t)
		return
	}
	if t.Seat == nil {
		m.beginListen(t)
		return
	}

	seat := m.World.Thing(*t.Seat)
	if reason := seatProblem(seat); reason != "" {
		m.fail(t, reason)
		return
	}

	if t.seated {
		t.TicksRemaining--
		if t.TicksRemaining <= 0 {
			m.beginListen(t)
		}
		return
	}
	if a.Position == seat.Position {
		a.Stance = agents.StanceSeated
		t.seated = true
		t.TicksRemaining = 1
		return
	}
	next, ok := m.World.StepToward(a.Position, seat.Position)
	if !ok || next == a.Position {
		m.fail(t, "seat unreachable")
		return
	}
	a.Position = next
}

func (m *Machine) beginListen(t *Task) {
	item := m.World.Thing(t.Item)
	t.Phase = PhaseListen
	t.TicksRemaining = m.Settings.listenTicks(m.Settings.ItemType(item.Def))
}

func (m *Machine) listen(t *Task, now uint64) {
	a := t.Agent
	item := m.World.Thing(t.Item)
	if reason := m.itemProblem(t, item); reason != "" {
		m.fail(t, reason)
		return
	}
	if t.Seat != nil {
		if reason := seatProblem(m.World.Thing(*t.Seat)); reason != "" {
			m.fail(t, reason)
			return
		}
	}
	loc, _ := m.World.CurrentLocation(t.Item)
	facing := facingCell(a.Position, loc.Cell)
	a.Facing = &facing

	it := m.Settings.ItemType(item.Def)
	if it.Mode == RewardPerTick {
		a.GainJoy(it.JoyPerTick)
	}

	t.TicksRemaining--
	if t.TicksRemaining > 0 {
		return
	}
	if it.Mode == RewardOnCompletion {
		m.resolveAudience(t, item, it, now)
	}
	t.Phase = PhaseReward
}

func (m *Machine) resolveAudience(t *Task, item *world.Thing, it ItemType, now uint64) {
	if m.Resolver == nil || m.Stage == nil {
		m.Logger.Warn("no effect resolver configured, skipping audience effects", "task", t.ID)
		return
	}
	a := t.Agent
	listeners := m.Stage.Audience(a.Position, a.Faction)
	tracker := m.Stage.Venue(a.Position)
	profile := effects.ItemProfile{Def: item.Def, Quality: item.Quality, Override: it.EffectOverride}
	t.Outcomes = m.Resolver.ResolveForAudience(now, profile, listeners, tracker)
}

func (m *Machine) reward(t *Task, now uint64) {
	a := t.Agent
	item := m.World.Thing(t.Item)
	if item == nil {
		m.fail(t, "album destroyed")
		return
	}
	it := m.Settings.ItemType(item.Def)
	if it.Memory != nil && it.Memory.Kind != "" {
		mem := agents.Memory{
			Tick:       now,
			Kind:       it.Memory.Kind,
			Content:    m.Narrator.MemoryText(a.Name, item.Def, item.Quality),
			MoodOffset: it.Memory.MoodOffset,
		}
		if it.Memory.DurationTicks > 0 {
			mem.ExpireTick = now + it.Memory.DurationTicks
		}
		agents.AddMemory(a, mem)
	}
	a.Stance = agents.StanceStanding
	a.Facing = nil
	t.Phase = PhaseReturn
}

func (m *Machine) returnItem(t *Task) {
	a := t.Agent
	item := m.World.Thing(t.Item)
	if item == nil || item.Destroyed {
		m.fail(t, "album destroyed")
		return
	}

	if world.InRange(a.Position, t.Origin) {
		if _, ok := m.World.PlaceNear(t.Item, t.Origin); !ok {
			m.fail(t, "no room to return album")
			return
		}
		a.Carrying = nil
		m.finish(t)
		return
	}

	next, ok := m.World.StepToward(a.Position, t.Origin)
	if !ok || next == a.Position {
		m.fail(t, "origin unreachable")
		return
	}
	a.Position = next
}

// ── Completion ───────────────────────────────────────────────────────

func (m *Machine) finish(t *Task) {
	m.release(t)
	t.Phase = PhaseDone
	m.Logger.Debug("listening task done", "task", t.ID, "agent", t.Agent.Name)
}

func (m *Machine) fail(t *Task, reason string) {
	a := t.Agent
	if a.Carrying != nil && *a.Carrying == t.Item {
		if item := m.World.Thing(t.Item); item != nil && !item.Destroyed {
			if _, ok := m.World.PlaceNear(t.Item, a.Position); !ok {
				// Unplaced at the agent's cell, carried by nobody.
				item.Carrier = nil
				item.Position = a.Position
				m.Logger.Warn("no room to drop album, left unplaced",
					"task", t.ID, "agent", a.Name, "album", item.Def, "cell", a.Position)
			}
		}
		a.Carrying = nil
	}
	m.release(t)
	t.Phase = PhaseFailed
	t.FailReason = reason
	m.Logger.Info("listening task failed", "task", t.ID, "agent", a.Name, "reason", reason)
}

func (m *Machine) release(t *Task) {
	a := t.Agent
	m.World.Release(uint64(a.ID), t.Item)
	if t.Seat != nil {
		m.World.Release(uint64(a.ID), *t.Seat)
	}
	a.Stance = agents.StanceStanding
	a.Facing = nil
}

// itemProblem returns why the album can no longer be used, or "".
func (m *Machine) itemProblem(t *Task, item *world.Thing) string {
	switch {
	case item == nil || item.Destroyed:
		return "album destroyed"
	case item.Forbidden:
		return "album forbidden"
	}
	if holder, ok := m.World.ReservedBy(t.Item); ok && holder != uint64(t.Agent.ID) {
		return "album contested"
	}
	if item.Carrier != nil && *item.Carrier != uint64(t.Agent.ID) {
		return "album contested"
	}
	return ""
}

// facingCell is the neighbour of from closest to target, or from's first
// neighbour when the two coincide.
func facingCell(from, target world.HexCoord) world.HexCoord {
	ns := from.Neighbors()
	best := ns[0]
	for _, n := range ns[1:] {
		if world.Distance(n, target) < world.Distance(best, target) {
			best = n
		}
	}
	return best
}

func seatProblem(seat *world.Thing) string {
	switch {
	case seat == nil || seat.Destroyed:
		return "seat destroyed"
	case seat.Forbidden:
		return "seat forbidden"
	}
	return ""
}
