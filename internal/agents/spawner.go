// Listener spawning: creates colonists for a scenario with seeded names and
// starting recreation levels.
package agents

import (
	"math/rand"

	"github.com/talgya/rim-radio/internal/world"
)

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// SpawnGroup creates count agents of one faction scattered around center.
// Agents land on walkable cells within spread of center when one is free.
func (s *Spawner) SpawnGroup(count int, center world.HexCoord, spread int, faction uint64, m *world.Map, tick uint64) []*Agent {
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		pos := s.scatter(center, spread, m)
		out = append(out, s.spawnOne(pos, faction, tick))
	}
	return out
}

func (s *Spawner) spawnOne(position world.HexCoord, faction uint64, tick uint64) *Agent {
	id := s.nextID
	s.nextID++

	return &Agent{
		ID:       id,
		Gen:      1,
		Name:     s.generateName(),
		Position: position,
		Faction:  faction,
		Joy:      0.3 + s.rng.Float64()*0.4,
		Statuses: make(map[string]float64),
		BornTick: tick,
		Alive:    true,
	}
}

func (s *Spawner) scatter(center world.HexCoord, spread int, m *world.Map) world.HexCoord {
	if m == nil || spread <= 0 {
		return center
	}
	for attempt := 0; attempt < 20; attempt++ {
		c := world.HexCoord{
			Q: center.Q + s.rng.Intn(2*spread+1) - spread,
			R: center.R + s.rng.Intn(2*spread+1) - spread,
		}
		if world.Distance(c, center) <= spread && m.Passable(c) {
			return c
		}
	}
	return center
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

var firstNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Jasper", "Kael", "Leif", "Magnus", "Oswin", "Rowan",
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Iris", "Juno", "Kira", "Mira", "Nessa", "Petra", "Thea",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Ironhand", "Dunmore",
	"Greenvale", "Stormcrow", "Hearthstone", "Millward", "Ravenmoor",
	"Deepwell", "Brightwater", "Redforge", "Windholm", "Nightingale",
	"Holloway", "Farrow", "Thatcher", "Caldwell", "Harper", "Mercer",
}
