// Simulation ties the world, the colonists and their listening sessions
// together and runs them each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/config"
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/entropy"
	"github.com/talgya/rim-radio/internal/listening"
	"github.com/talgya/rim-radio/internal/world"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

var (
	ErrUnknownAgent = errors.New("unknown agent")
	ErrHasSession   = errors.New("agent already has a listening session")
)

// Simulation holds the complete colony state and wires systems together.
//
// Within one tick, listening tasks advance first and effect trackers second,
// so an effect applied this tick is never expired in the same tick.
type Simulation struct {
	mu sync.RWMutex

	World    *world.World
	Roster   *agents.Roster
	Catalog  *effects.Catalog
	Machine  *listening.Machine
	Tasks    []*listening.Task
	Events   []Event // Recent events, oldest first
	LastTick uint64  // Most recent tick processed

	AudienceRadius int
	JoyTrigger     float64 // Idle colonists below this joy start a session; 0 disables
	JoyDecay       float64 // Joy lost per tick while not listening

	Venues *effects.Pool // Trackers of every speaker

	Stats SimStats
}

// Event is a notable occurrence in the colony.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"` // "session", "failure", "effect"
}

// SimStats tracks aggregate colony statistics.
type SimStats struct {
	Colonists      int     `json:"colonists"`
	Listening      int     `json:"listening"`
	SessionsDone   int     `json:"sessions_done"`
	SessionsFailed int     `json:"sessions_failed"`
	ActiveEffects  int     `json:"active_effects"`
	ExpiredEffects int     `json:"expired_effects"`
	AvgMood        float64 `json:"avg_mood"`
	AvgJoy         float64 `json:"avg_joy"`
}

// NewSimulation creates a Simulation over a laid-out world. Every speaker
// without a tracker gets one.
func NewSimulation(cfg *config.Config, w *world.World, roster *agents.Roster, rng entropy.Source) *Simulation {
	catalog := cfg.Catalog()
	s := &Simulation{
		World:          w,
		Roster:         roster,
		Catalog:        catalog,
		AudienceRadius: cfg.AudienceRadius,
		JoyTrigger:     cfg.Scenario.JoyTrigger,
		JoyDecay:       cfg.Scenario.JoyDecay,
		Venues:         effects.NewPool(),
	}
	resolver := &effects.Resolver{
		Table:          cfg.Quality,
		Rand:           rng,
		Catalog:        catalog,
		TicksPerMinute: cfg.TicksPerMinute,
		NegativeKind:   cfg.Effects.NegativeKind,
		DefaultKind:    cfg.Effects.DefaultKind,
		Genres:         cfg.Effects.Genres,
	}
	s.Machine = listening.NewMachine(w, s, resolver, cfg.ListeningSettings(), nil)

	for _, t := range w.Things() {
		if t.Speaker && t.Effects == nil {
			t.Effects = s.Venues.NewTracker(roster, catalog)
		}
	}
	s.updateStats()
	return s
}

// View runs fn with the simulation read-locked.
func (s *Simulation) View(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// TickMinute runs every tick (1 sim-minute).
func (s *Simulation) TickMinute(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	s.advanceTasks(tick)
	s.advanceTrackers(tick)
	s.tendColonists(tick)
}

// TickHour runs every sim-hour: refresh statistics.
func (s *Simulation) TickHour(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()
	slog.Debug("hourly stats", "tick", tick, "listening", s.Stats.Listening, "active_effects", s.Stats.ActiveEffects)
}

// TickDay runs every sim-day: daily report and event trimming.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"colonists", s.Stats.Colonists,
		"sessions_done", s.Stats.SessionsDone,
		"sessions_failed", s.Stats.SessionsFailed,
		"active_effects", s.Stats.ActiveEffects,
		"avg_mood", fmt.Sprintf("%.2f", s.Stats.AvgMood),
		"avg_joy", fmt.Sprintf("%.3f", s.Stats.AvgJoy),
	)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// Assign starts a listening session for an agent on an album.
func (s *Simulation) Assign(id agents.AgentID, item world.ThingID) (*listening.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assign(id, item)
}

func (s *Simulation) assign(id agents.AgentID, item world.ThingID) (*listening.Task, error) {
	a := s.Roster.Get(id)
	if a == nil || !a.Alive {
		return nil, fmt.Errorf("assign %d: %w", id, ErrUnknownAgent)
	}
	if s.taskFor(id) != nil {
		return nil, fmt.Errorf("assign %d: %w", id, ErrHasSession)
	}
	t, err := s.Machine.Start(a, item, s.LastTick)
	if err != nil {
		return nil, err
	}
	s.Tasks = append(s.Tasks, t)
	return t, nil
}

// TaskFor returns the active task of an agent, or nil.
func (s *Simulation) TaskFor(id agents.AgentID) *listening.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskFor(id)
}

func (s *Simulation) taskFor(id agents.AgentID) *listening.Task {
	for _, t := range s.Tasks {
		if t.AgentID() == id {
			return t
		}
	}
	return nil
}

// ── Stage ────────────────────────────────────────────────────────────

// Audience returns the colonists of a faction able to hear music played at
// center: alive, conscious, free and within the audience radius.
func (s *Simulation) Audience(center world.HexCoord, faction uint64) []effects.Listener {
	var out []effects.Listener
	for _, a := range s.Roster.All() {
		if a.Faction != faction || !a.CanListen() {
			continue
		}
		if world.Distance(a.Position, center) > s.AudienceRadius {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Venue returns the tracker of the nearest speaker within the audience
// radius, or nil when the session happens out of earshot of any speaker.
func (s *Simulation) Venue(center world.HexCoord) *effects.Tracker {
	var best *world.Thing
	bestDist := s.AudienceRadius + 1
	for _, sp := range s.World.Speakers() {
		if !sp.Usable() {
			continue
		}
		if d := world.Distance(sp.Position, center); d < bestDist {
			best, bestDist = sp, d
		}
	}
	if best == nil {
		return nil
	}
	return best.Effects
}

// ── Per-tick systems ─────────────────────────────────────────────────

func (s *Simulation) advanceTasks(tick uint64) {
	active := s.Tasks[:0]
	for _, t := range s.Tasks {
		if !t.Agent.CanListen() {
			s.Machine.Cancel(t, "listener incapacitated")
		} else {
			s.Machine.Advance(t, tick)
		}

		switch t.Phase {
		case listening.PhaseDone:
			s.Stats.SessionsDone++
			album := ""
			if item := s.World.Thing(t.Item); item != nil {
				album = item.Def
			}
			s.addEvent(tick, "session", fmt.Sprintf("%s finished listening to %s (%d affected)", t.Agent.Name, album, len(t.Outcomes)))
		case listening.PhaseFailed:
			s.Stats.SessionsFailed++
			s.addEvent(tick, "failure", fmt.Sprintf("%s stopped listening: %s", t.Agent.Name, t.FailReason))
		default:
			active = append(active, t)
		}
	}
	clear(s.Tasks[len(active):])
	s.Tasks = active
}

func (s *Simulation) advanceTrackers(tick uint64) {
	for _, sp := range s.World.Speakers() {
		if n := sp.Effects.Advance(tick); n > 0 {
			s.Stats.ExpiredEffects += n
		}
	}
}

func (s *Simulation) tendColonists(tick uint64) {
	for _, a := range s.Roster.All() {
		if !a.Alive {
			continue
		}
		agents.ExpireMemories(a, tick)
		agents.RecomputeMood(a, s.Catalog)

		if s.taskFor(a.ID) != nil {
			continue
		}
		a.GainJoy(-s.JoyDecay)
		if s.JoyTrigger > 0 && a.Joy < s.JoyTrigger && a.CanListen() && a.Carrying == nil {
			s.startSession(a)
		}
	}
}

// startSession picks the nearest reachable album for a bored colonist.
func (s *Simulation) startSession(a *agents.Agent) {
	var best *world.Thing
	bestDist := -1
	for _, t := range s.World.Things() {
		if t.Kind != world.KindItem || t.Faction != a.Faction || !t.Usable() || t.Carrier != nil {
			continue
		}
		if !s.World.CanReserve(uint64(a.ID), t.ID) {
			continue
		}
		loc, _ := s.World.CurrentLocation(t.ID)
		d, ok := s.World.PathLength(a.Position, loc.Cell)
		if !ok {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = t, d
		}
	}
	if best == nil {
		return
	}
	if _, err := s.assign(a.ID, best.ID); err != nil {
		slog.Debug("could not start session", "agent", a.Name, "album", best.Def, "error", err)
		return
	}
	slog.Debug("colonist looking for music", "agent", a.Name, "album", best.Def, "joy", fmt.Sprintf("%.2f", a.Joy))
}

func (s *Simulation) addEvent(tick uint64, category, desc string) {
	s.Events = append(s.Events, Event{Tick: tick, Description: desc, Category: category})
}

func (s *Simulation) updateStats() {
	stats := SimStats{
		SessionsDone:   s.Stats.SessionsDone,
		SessionsFailed: s.Stats.SessionsFailed,
		ExpiredEffects: s.Stats.ExpiredEffects,
		Listening:      len(s.Tasks),
	}
	var mood, joy float64
	for _, a := range s.Roster.All() {
		if !a.Alive {
			continue
		}
		stats.Colonists++
		mood += a.Mood
		joy += a.Joy
	}
	if stats.Colonists > 0 {
		stats.AvgMood = mood / float64(stats.Colonists)
		stats.AvgJoy = joy / float64(stats.Colonists)
	}
	for _, sp := range s.World.Speakers() {
		stats.ActiveEffects += sp.Effects.Len()
	}
	s.Stats = stats
}
