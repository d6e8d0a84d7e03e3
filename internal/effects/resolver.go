package effects

import (
	"log/slog"
	"math"
	"strings"

	"github.com/talgya/rim-radio/internal/entropy"
	"github.com/talgya/rim-radio/internal/quality"
)

// GenreKeyword maps a keyword found in an album's type name to an effect kind.
type GenreKeyword struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	Kind    string `yaml:"kind" json:"kind"`
}

// ItemProfile is what the resolver needs to know about the album played.
type ItemProfile struct {
	Def      string           // Type name, e.g. "Album_Jazz"
	Quality  quality.Category // Quality of this copy
	Override string           // Explicit effect kind for the type; empty = infer
}

// Outcome is the decision made for one listener.
type Outcome struct {
	Listener ListenerRef `json:"listener"`
	Kind     string      `json:"kind"`
	Severity float64     `json:"severity"`
	Duration uint64      `json:"duration"`
	Negative bool        `json:"negative"`
	Tracked  bool        `json:"tracked"` // False when applied without expiry
}

// Resolver picks the effect each audience member receives.
type Resolver struct {
	Table          quality.Table
	Rand           entropy.Source
	Catalog        *Catalog
	TicksPerMinute int
	NegativeKind   string
	DefaultKind    string
	Genres         []GenreKeyword
	Logger         *slog.Logger
}

// minPositiveSeverity keeps awful-but-lucky sessions from applying a zero effect.
const minPositiveSeverity = 0.05

// KindFor returns the positive effect kind for an album: the explicit
// override, else the first genre keyword contained in the type name, else the
// default kind.
func (r *Resolver) KindFor(item ItemProfile) string {
	if item.Override != "" {
		return item.Override
	}
	name := strings.ToLower(item.Def)
	for _, g := range r.Genres {
		if g.Keyword != "" && strings.Contains(name, strings.ToLower(g.Keyword)) {
			return g.Kind
		}
	}
	return r.DefaultKind
}

// ResolveForAudience rolls an effect for each listener and applies it through
// tracker. With a nil tracker the effect is set directly on the listener and
// never expires on its own.
func (r *Resolver) ResolveForAudience(now uint64, item ItemProfile, listeners []Listener, tracker *Tracker) []Outcome {
	logger := r.logger()
	tier := item.Quality
	frac := tier.Fraction()
	negChance := r.Table.NegativeProbability(tier)
	fullDuration := uint64(max(0, r.Table.DurationMinutes(tier)*r.ticksPerMinute()))
	positiveKind := r.KindFor(item)

	outcomes := make([]Outcome, 0, len(listeners))
	for _, l := range listeners {
		if l == nil {
			continue
		}
		var o Outcome
		o.Listener = l.Ref()
		if entropy.FloatFromSource(r.Rand) < negChance {
			o.Kind = r.NegativeKind
			o.Severity = clamp01(1 - frac)
			o.Duration = fullDuration / 2
			o.Negative = true
		} else {
			o.Kind = positiveKind
			o.Severity = math.Max(minPositiveSeverity, frac)
			o.Duration = fullDuration
		}

		if _, ok := r.Catalog.Lookup(o.Kind); !ok {
			logger.Warn("unknown status effect, skipping", "kind", o.Kind, "listener", o.Listener)
			continue
		}
		if tracker != nil {
			tracker.Apply(now, l, o.Kind, o.Duration, o.Severity)
			o.Tracked = true
		} else {
			l.SetStatus(o.Kind, o.Severity)
			logger.Debug("no effect tracker at venue, applied without expiry",
				"kind", o.Kind, "listener", o.Listener)
		}
		outcomes = append(outcomes, o)
	}

	logger.Info("audience effects resolved",
		"album", item.Def,
		"quality", tier.String(),
		"listeners", len(listeners),
		"applied", len(outcomes),
	)
	return outcomes
}

func (r *Resolver) ticksPerMinute() int {
	if r.TicksPerMinute <= 0 {
		return 1
	}
	return r.TicksPerMinute
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
