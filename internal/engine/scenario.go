package engine

import (
	"log/slog"
	"math/rand"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/config"
	"github.com/talgya/rim-radio/internal/world"
)

// BuildScenario lays out the demo colony deterministically from the seed:
// the rock map, then speakers, seats and albums inside the cleared ring, then
// the colonists. The map and things are always regenerated; only agents and
// effect records are restored from a save.
func BuildScenario(sc config.Scenario, spawner *agents.Spawner) (*world.World, []*agents.Agent) {
	gen := world.DefaultGenConfig()
	gen.Seed = sc.Seed
	gen.Radius = sc.MapRadius
	if sc.RockLevel > 0 {
		gen.RockLevel = sc.RockLevel
	}
	if sc.ClearRing > 0 {
		gen.ClearRadius = sc.ClearRing
	}
	w := world.New(world.Generate(gen))
	rng := rand.New(rand.NewSource(sc.Seed + 200))
	center := world.HexCoord{}

	for i := 0; i < sc.Speakers; i++ {
		pos, ok := freeCell(rng, w, center, gen.ClearRadius)
		if !ok {
			slog.Warn("no room for speaker", "index", i)
			break
		}
		w.Add(&world.Thing{Def: "Speaker", Kind: world.KindStructure, Faction: sc.Faction, Position: pos, Speaker: true})
	}
	for _, seat := range sc.Seats {
		for i := 0; i < seat.Count; i++ {
			pos, ok := freeCell(rng, w, center, gen.ClearRadius)
			if !ok {
				slog.Warn("no room for seat", "def", seat.Def)
				break
			}
			w.Add(&world.Thing{Def: seat.Def, Kind: world.KindStructure, Faction: sc.Faction, Position: pos, Seat: true, Comfort: seat.Comfort})
		}
	}
	for _, album := range sc.Albums {
		for i := 0; i < album.Count; i++ {
			pos, ok := freeCell(rng, w, center, gen.ClearRadius)
			if !ok {
				slog.Warn("no room for album", "def", album.Def)
				break
			}
			w.Add(&world.Thing{Def: album.Def, Kind: world.KindItem, Faction: sc.Faction, Position: pos, Placed: true, Quality: album.Quality})
		}
	}

	colonists := spawner.SpawnGroup(sc.Colonists, center, gen.ClearRadius, sc.Faction, w.Map, 0)
	slog.Info("scenario laid out",
		"seed", sc.Seed,
		"hexes", w.Map.HexCount(),
		"things", len(w.Things()),
		"colonists", len(colonists),
	)
	return w, colonists
}

// freeCell picks a random walkable cell within radius of center that no
// thing occupies yet.
func freeCell(rng *rand.Rand, w *world.World, center world.HexCoord, radius int) (world.HexCoord, bool) {
	for attempt := 0; attempt < 200; attempt++ {
		q := rng.Intn(2*radius+1) - radius
		lo, hi := max(-radius, -q-radius), min(radius, -q+radius)
		r := lo + rng.Intn(hi-lo+1)
		c := world.HexCoord{Q: center.Q + q, R: center.R + r}
		if !w.Map.Passable(c) || taken(w, c) {
			continue
		}
		return c, true
	}
	return world.HexCoord{}, false
}

func taken(w *world.World, c world.HexCoord) bool {
	for _, t := range w.Things() {
		if t.Position == c && !t.Destroyed && (t.Kind == world.KindStructure || t.Placed) {
			return true
		}
	}
	return false
}
