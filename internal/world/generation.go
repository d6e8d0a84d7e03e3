// Room layout generation using simplex noise.
// Scatters rock outcrops over open floor, keeping a clear area around the
// centre where the listening room sits.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds layout generation parameters.
type GenConfig struct {
	Radius      int     // Hex grid radius
	Seed        int64   // Random seed (0 = random)
	RockLevel   float64 // Noise threshold above which a hex becomes rock (0.0–1.0)
	ClearRadius int     // Hexes within this distance of the origin stay floor
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:      12,
		Seed:        0,
		RockLevel:   0.68,
		ClearRadius: 4,
	}
}

// Generate creates a map of floor and rock.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rockNoise := opensimplex.NewNormalized(seed)

	m := NewFloorMap(cfg.Radius)
	origin := HexCoord{}
	for coord, hex := range m.Hexes {
		if Distance(coord, origin) <= cfg.ClearRadius {
			continue
		}
		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
		x := float64(coord.Q) + float64(coord.R)*0.5
		y := float64(coord.R) * math.Sqrt(3.0) / 2.0

		if octaveNoise(rockNoise, x, y, 3, 0.15, 0.5) > cfg.RockLevel {
			hex.Terrain = TerrainRock
		}
	}
	return m
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
