// Reachability and movement over walkable hexes.
// Paths are breadth-first over the six neighbours; every step costs one tick.
package world

// InteractionRange is how close an agent must stand to handle a thing.
const InteractionRange = 1

// findPath returns the cells from the cell after from up to and including to.
// The goal cell itself may be impassable (e.g. a thing on a shelf in a wall).
func (w *World) findPath(from, to HexCoord) ([]HexCoord, bool) {
	if from == to {
		return nil, true
	}
	if w.Map.Get(to) == nil || w.Map.Get(from) == nil {
		return nil, false
	}

	parent := map[HexCoord]HexCoord{from: from}
	queue := []HexCoord{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range cur.Neighbors() {
			if _, seen := parent[n]; seen {
				continue
			}
			if n != to && !w.Map.Passable(n) {
				continue
			}
			if w.Map.Get(n) == nil {
				continue
			}
			parent[n] = cur
			if n == to {
				return unwind(parent, from, to), true
			}
			queue = append(queue, n)
		}
	}
	return nil, false
}

func unwind(parent map[HexCoord]HexCoord, from, to HexCoord) []HexCoord {
	var rev []HexCoord
	for c := to; c != from; c = parent[c] {
		rev = append(rev, c)
	}
	path := make([]HexCoord, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}

// CanReach reports whether a walking path exists between two cells.
func (w *World) CanReach(from, to HexCoord) bool {
	_, ok := w.findPath(from, to)
	return ok
}

// PathLength returns the number of steps between two cells.
func (w *World) PathLength(from, to HexCoord) (int, bool) {
	p, ok := w.findPath(from, to)
	return len(p), ok
}

// StepToward returns the next cell on the way from from to to. It never
// steps onto an impassable goal; an agent beside it is already in range.
func (w *World) StepToward(from, to HexCoord) (HexCoord, bool) {
	p, ok := w.findPath(from, to)
	if !ok {
		return from, false
	}
	if len(p) == 0 {
		return from, true
	}
	next := p[0]
	if !w.Map.Passable(next) {
		return from, true
	}
	return next, true
}

// InRange reports whether two cells are within interaction range.
func InRange(a, b HexCoord) bool {
	return Distance(a, b) <= InteractionRange
}
