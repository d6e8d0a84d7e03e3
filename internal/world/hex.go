// Package world provides the hex grid, the things placed on it, and the
// spatial services tasks rely on: reservations, reachability and placement.
// Uses axial coordinates (q, r) for the hex grid.
package world

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Terrain types for hex tiles.
type Terrain uint8

const (
	TerrainFloor Terrain = iota // Open floor, walkable
	TerrainRock                 // Natural rock, impassable
	TerrainWall                 // Built wall, impassable
	TerrainWater                // Deep water, impassable
)

// Passable reports whether agents can walk on the terrain.
func (t Terrain) Passable() bool {
	return t == TerrainFloor
}

// TerrainName returns a human-readable terrain label.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainFloor:
		return "floor"
	case TerrainRock:
		return "rock"
	case TerrainWall:
		return "wall"
	case TerrainWater:
		return "water"
	default:
		return "unknown"
	}
}

// Hex represents a single tile on the map.
type Hex struct {
	Coord   HexCoord `json:"coord"`
	Terrain Terrain  `json:"terrain"`
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	return max(dq, dr, ds)
}

// DistanceSquared returns the squared hex distance, for radius checks.
func DistanceSquared(a, b HexCoord) int {
	d := Distance(a, b)
	return d * d
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
