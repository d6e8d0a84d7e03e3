// Package agents provides the colonist data model, the live-agent roster and
// mood memories.
package agents

import (
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// Stance is the agent's body posture.
type Stance uint8

const (
	StanceStanding Stance = iota
	StanceSeated
)

// String returns the stance label.
func (s Stance) String() string {
	if s == StanceSeated {
		return "seated"
	}
	return "standing"
}

// Agent is a colonist that can run tasks and carry status effects.
type Agent struct {
	ID   AgentID `json:"id"`
	Gen  uint32  `json:"gen"` // Bumped when an ID is reissued; stale refs stop resolving
	Name string  `json:"name"`

	// Location
	Position world.HexCoord  `json:"position"`
	Facing   *world.HexCoord `json:"facing,omitempty"`
	Stance   Stance          `json:"stance"`
	Carrying *world.ThingID  `json:"carrying,omitempty"`

	// Social
	Faction  uint64 `json:"faction"`
	Prisoner bool   `json:"prisoner"`
	Downed   bool   `json:"downed"`

	// Wellbeing
	Joy      float64            `json:"joy"`  // Recreation need, 0.0–1.0
	Mood     float64            `json:"mood"` // Derived from statuses and memories
	Statuses map[string]float64 `json:"statuses"`
	Memories []Memory           `json:"memories,omitempty"`

	// Metadata
	BornTick uint64 `json:"born_tick"`
	Alive    bool   `json:"alive"`
}

// Ref returns the weak reference used by effect trackers.
func (a *Agent) Ref() effects.ListenerRef {
	return effects.ListenerRef{ID: uint64(a.ID), Gen: a.Gen}
}

// SetStatus applies or overwrites a status effect at the given severity.
func (a *Agent) SetStatus(kind string, severity float64) {
	if a.Statuses == nil {
		a.Statuses = make(map[string]float64)
	}
	a.Statuses[kind] = severity
}

// ClearStatus removes a status effect.
func (a *Agent) ClearStatus(kind string) {
	delete(a.Statuses, kind)
}

// Status returns the severity of a status effect, if present.
func (a *Agent) Status(kind string) (float64, bool) {
	s, ok := a.Statuses[kind]
	return s, ok
}

// CanListen reports whether the agent can be part of an audience.
func (a *Agent) CanListen() bool {
	return a.Alive && !a.Downed && !a.Prisoner
}

// GainJoy raises the recreation need, capped at 1.
func (a *Agent) GainJoy(amount float64) {
	a.Joy += amount
	if a.Joy > 1 {
		a.Joy = 1
	}
	if a.Joy < 0 {
		a.Joy = 0
	}
}

// RecomputeMood derives mood from active statuses and unexpired memories.
func RecomputeMood(a *Agent, catalog *effects.Catalog) float64 {
	mood := 0.0
	for kind, sev := range a.Statuses {
		if def, ok := catalog.Lookup(kind); ok {
			mood += def.MoodPerUnit * sev
		}
	}
	for _, m := range a.Memories {
		mood += m.MoodOffset
	}
	a.Mood = mood
	return mood
}
