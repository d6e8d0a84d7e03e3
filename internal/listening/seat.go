package listening

import (
	"math"

	"github.com/talgya/rim-radio/internal/world"
)

// Seat scoring weights: comfort dominates, distance breaks near-ties.
const (
	comfortWeight  = 100.0
	distanceWeight = 0.75
)

// SeatWorld is the part of the world seat selection reads.
type SeatWorld interface {
	Things() []*world.Thing
	CanReserve(agent uint64, id world.ThingID) bool
	CanReach(from, to world.HexCoord) bool
}

// Requester is the agent looking for a seat.
type Requester struct {
	ID       uint64
	Faction  uint64
	Position world.HexCoord
}

// FindBestSeat returns the most comfortable usable seat within radius of
// center. Candidates are scored comfort*100 − distance*0.75; the first
// maximum in world order wins. No reservation is taken.
func FindBestSeat(w SeatWorld, center world.HexCoord, radius int, req Requester) (*world.Thing, bool) {
	radiusSq := radius * radius
	var best *world.Thing
	bestScore := math.Inf(-1)

	for _, t := range w.Things() {
		if t.Kind != world.KindStructure || t.Faction != req.Faction {
			continue
		}
		if !t.Usable() || !t.Seat {
			continue
		}
		if world.DistanceSquared(t.Position, center) > radiusSq {
			continue
		}
		if !w.CanReserve(req.ID, t.ID) || !w.CanReach(req.Position, t.Position) {
			continue
		}
		score := t.Comfort*comfortWeight - float64(world.Distance(t.Position, center))*distanceWeight
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	return best, best != nil
}
