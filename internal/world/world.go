package world

import (
	"log/slog"
)

// World holds the map, the things placed on it and their reservations.
// Not safe for concurrent use; the simulation owns it on one goroutine.
type World struct {
	Map *Map

	things       []*Thing // Insertion order: the fixed enumeration order
	index        map[ThingID]*Thing
	nextID       ThingID
	reservations map[ThingID]uint64 // thing → reserving agent
}

// New creates a world over the given map.
func New(m *Map) *World {
	return &World{
		Map:          m,
		index:        make(map[ThingID]*Thing),
		nextID:       1,
		reservations: make(map[ThingID]uint64),
	}
}

// Add registers a thing and assigns it an ID if it has none.
func (w *World) Add(t *Thing) *Thing {
	if t.ID == 0 {
		t.ID = w.nextID
	}
	if t.ID >= w.nextID {
		w.nextID = t.ID + 1
	}
	w.things = append(w.things, t)
	w.index[t.ID] = t
	return t
}

// Thing returns the thing with the given ID, or nil.
func (w *World) Thing(id ThingID) *Thing {
	return w.index[id]
}

// Things returns all things in enumeration order. The slice must not be modified.
func (w *World) Things() []*Thing {
	return w.things
}

// Speakers returns every thing that owns an effect tracker.
func (w *World) Speakers() []*Thing {
	var out []*Thing
	for _, t := range w.things {
		if t.Speaker && t.Effects != nil {
			out = append(out, t)
		}
	}
	return out
}

// CurrentLocation reports where a thing is. A carried thing reports the cell
// it was last placed at; callers resolve the carrier's position themselves.
func (w *World) CurrentLocation(id ThingID) (Location, bool) {
	t := w.Thing(id)
	if t == nil {
		return Location{}, false
	}
	loc := Location{Cell: t.Position, Placed: t.Placed, Holder: t.Holder, Carrier: t.Carrier}
	if t.Holder != nil {
		if h := w.Thing(*t.Holder); h != nil {
			loc.Cell = h.Position
		}
	}
	return loc, true
}

// ── Reservations ─────────────────────────────────────────────────────

// Reserve claims a thing for an agent. Succeeds if the thing is free or
// already held by the same agent.
func (w *World) Reserve(agent uint64, id ThingID) bool {
	if w.Thing(id) == nil {
		return false
	}
	if holder, ok := w.reservations[id]; ok && holder != agent {
		return false
	}
	w.reservations[id] = agent
	return true
}

// Release frees a thing if the agent holds its reservation.
func (w *World) Release(agent uint64, id ThingID) {
	if holder, ok := w.reservations[id]; ok && holder == agent {
		delete(w.reservations, id)
	}
}

// ReservedBy returns the agent holding the reservation on a thing.
func (w *World) ReservedBy(id ThingID) (uint64, bool) {
	a, ok := w.reservations[id]
	return a, ok
}

// CanReserve reports whether the agent could reserve the thing right now.
func (w *World) CanReserve(agent uint64, id ThingID) bool {
	holder, ok := w.reservations[id]
	return !ok || holder == agent
}

// ── Carrying and placement ───────────────────────────────────────────

// PickUp transfers a thing into an agent's hands.
func (w *World) PickUp(agent uint64, id ThingID) bool {
	t := w.Thing(id)
	if t == nil || t.Kind != KindItem {
		return false
	}
	if t.Carrier != nil && *t.Carrier != agent {
		return false
	}
	if t.Holder != nil {
		if h := w.Thing(*t.Holder); h != nil {
			t.Position = h.Position
		}
	}
	a := agent
	t.Carrier = &a
	t.Holder = nil
	t.Placed = false
	return true
}

// PlaceNear puts a thing down at cell, or at the closest free walkable cell
// if cell is occupied by another placed item. Returns where it landed.
func (w *World) PlaceNear(id ThingID, cell HexCoord) (HexCoord, bool) {
	t := w.Thing(id)
	if t == nil {
		return HexCoord{}, false
	}
	dest, ok := w.freeCellNear(id, cell)
	if !ok {
		slog.Warn("no free cell to place thing", "thing", id, "near", cell)
		return HexCoord{}, false
	}
	t.Position = dest
	t.Placed = true
	t.Carrier = nil
	t.Holder = nil
	return dest, true
}

func (w *World) occupied(cell HexCoord, except ThingID) bool {
	for _, t := range w.things {
		if t.ID != except && t.Kind == KindItem && t.Placed && !t.Destroyed && t.Position == cell {
			return true
		}
	}
	return false
}

// freeCellNear searches outward from cell by walking distance.
func (w *World) freeCellNear(id ThingID, cell HexCoord) (HexCoord, bool) {
	if w.Map.Get(cell) != nil && !w.occupied(cell, id) {
		return cell, true
	}
	visited := map[HexCoord]bool{cell: true}
	queue := []HexCoord{cell}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range cur.Neighbors() {
			if visited[n] || !w.Map.Passable(n) {
				continue
			}
			visited[n] = true
			if !w.occupied(n, id) {
				return n, true
			}
			queue = append(queue, n)
		}
	}
	return HexCoord{}, false
}
