package world

import (
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/quality"
)

// ThingID is a unique identifier for an item or structure.
type ThingID uint64

// ThingKind separates portable items from fixed structures.
type ThingKind uint8

const (
	KindItem      ThingKind = iota // Can be picked up and carried
	KindStructure                  // Fixed in place: seats, speakers, shelves
)

// Thing is anything placed in the world other than an agent.
type Thing struct {
	ID      ThingID   `json:"id"`
	Def     string    `json:"def"` // Type name, e.g. "Album_Jazz" or "Armchair"
	Kind    ThingKind `json:"kind"`
	Faction uint64    `json:"faction"`

	// Location. An item is exactly one of: placed on Position, held by a
	// structure (Holder), or carried by an agent (Carrier).
	Position HexCoord `json:"position"`
	Placed   bool     `json:"placed"`
	Holder   *ThingID `json:"holder,omitempty"`
	Carrier  *uint64  `json:"carrier,omitempty"`

	Destroyed bool `json:"destroyed"`
	Forbidden bool `json:"forbidden"`

	// Seating
	Seat    bool    `json:"seat"`
	Comfort float64 `json:"comfort"` // 0.0–1.0

	// Albums
	Quality quality.Category `json:"quality"`

	// Speaker is set on locations that own an effect tracker.
	Speaker bool             `json:"speaker"`
	Effects *effects.Tracker `json:"-"`
}

// Location describes where a thing currently is.
type Location struct {
	Cell    HexCoord
	Placed  bool
	Holder  *ThingID
	Carrier *uint64
}

// Usable reports whether the thing exists and is not forbidden.
func (t *Thing) Usable() bool {
	return t != nil && !t.Destroyed && !t.Forbidden
}
