// Package listening runs the listening-session task: fetch an album, find a
// seat, listen for a while, share the effect with the audience, and put the
// album back.
package listening

import (
	"errors"
	"fmt"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/quality"
	"github.com/talgya/rim-radio/internal/world"
)

// Phase is the lifecycle state of a task.
type Phase string

const (
	PhaseTravel     Phase = "travel"      // Walking to the album
	PhaseSeatTravel Phase = "seat_travel" // Walking to a seat, then sitting down
	PhaseListen     Phase = "listen"      // Timed listening
	PhaseReward     Phase = "reward"      // Granting the completion memory
	PhaseReturn     Phase = "return"      // Carrying the album back
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// IsTerminal returns true once the task has finished or failed.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Setup errors.
var (
	ErrItemUnavailable = errors.New("album unavailable")
	ErrItemReserved    = errors.New("album reserved by another agent")
	ErrAgentBusy       = errors.New("agent is already carrying something")
)

// RewardMode selects how a listening session pays off.
type RewardMode string

const (
	// RewardPerTick grants joy to the listener every tick of the session.
	RewardPerTick RewardMode = "per_tick"
	// RewardOnCompletion grants nothing per tick and resolves audience
	// effects once the session completes.
	RewardOnCompletion RewardMode = "on_completion"
)

// MemoryDef is the mood memory granted when a session completes.
type MemoryDef struct {
	Kind          string  `yaml:"kind" json:"kind"`
	MoodOffset    float64 `yaml:"mood_offset" json:"mood_offset"`
	DurationTicks uint64  `yaml:"duration_ticks" json:"duration_ticks"` // 0 = permanent
}

// ItemType is the per-album-type configuration.
type ItemType struct {
	Def            string     `yaml:"def" json:"def"`
	ListenTicks    int        `yaml:"listen_ticks" json:"listen_ticks"`
	JoyPerTick     float64    `yaml:"joy_per_tick" json:"joy_per_tick"`
	Mode           RewardMode `yaml:"reward_mode" json:"reward_mode"`
	Memory         *MemoryDef `yaml:"completion_memory,omitempty" json:"completion_memory,omitempty"`
	EffectOverride string     `yaml:"effect_override,omitempty" json:"effect_override,omitempty"`
}

// Settings holds the tunables the task machine reads.
type Settings struct {
	SeatRadius         int
	DefaultListenTicks int
	Default            ItemType            // Used for album types without an entry
	ItemTypes          map[string]ItemType // Keyed by Def
}

// ItemType returns the configuration for an album type.
func (s Settings) ItemType(def string) ItemType {
	if it, ok := s.ItemTypes[def]; ok {
		return it
	}
	it := s.Default
	it.Def = def
	return it
}

func (s Settings) listenTicks(it ItemType) int {
	if it.ListenTicks > 0 {
		return it.ListenTicks
	}
	if s.DefaultListenTicks > 0 {
		return s.DefaultListenTicks
	}
	return 1
}

// Task is one agent's listening session.
type Task struct {
	ID             string         `json:"id"`
	Agent          *agents.Agent  `json:"-"`
	Item           world.ThingID  `json:"item"`
	Seat           *world.ThingID `json:"seat,omitempty"`
	Origin         world.HexCoord `json:"origin"`
	Phase          Phase          `json:"phase"`
	TicksRemaining int            `json:"ticks_remaining"`
	StartedTick    uint64         `json:"started_tick"`
	FailReason     string         `json:"fail_reason,omitempty"`

	// Outcomes holds the audience effects resolved at completion, if any.
	Outcomes []effects.Outcome `json:"outcomes,omitempty"`

	seatSearched bool
	seated       bool
}

// AgentID returns the acting agent's ID.
func (t *Task) AgentID() agents.AgentID {
	return t.Agent.ID
}

// Stage supplies the surroundings of a session: who is listening nearby and
// which location's tracker records the effects.
type Stage interface {
	Audience(center world.HexCoord, faction uint64) []effects.Listener
	Venue(center world.HexCoord) *effects.Tracker
}

// Narrator writes the text of completion memories.
type Narrator interface {
	MemoryText(listener, album string, q quality.Category) string
}

// NullNarrator writes a plain, fixed-form description.
type NullNarrator struct{}

// MemoryText returns a short plain description.
func (NullNarrator) MemoryText(listener, album string, q quality.Category) string {
	return fmt.Sprintf("%s listened to a %s copy of %s", listener, q, album)
}
