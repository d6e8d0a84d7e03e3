package effects

import (
	"log/slog"
)

// Record is one applied, time-bounded status effect.
type Record struct {
	Listener ListenerRef `json:"listener"`
	Kind     string      `json:"effect_kind"`
	Severity float64     `json:"severity"`
	ExpireAt uint64      `json:"expire_at"`
}

// RecordState is the persisted form of a Record. ListenerID is nil when the
// stored reference could not be written.
type RecordState struct {
	ListenerID  *uint64 `db:"listener_id" json:"listener_id"`
	ListenerGen *uint32 `db:"listener_gen" json:"listener_gen"`
	Kind        string  `db:"effect_kind" json:"effect_kind"`
	Severity    float64 `db:"severity" json:"severity"`
	ExpireAt    int64   `db:"expire_at" json:"expire_at"`
}

// Tracker owns the status effects applied from one location (a speaker or
// building). At most one record exists per (listener, kind).
type Tracker struct {
	records  []Record
	registry Registry
	catalog  *Catalog
	logger   *slog.Logger
	pool     *Pool
}

// Pool links the trackers of every venue. A listener's status for a kind is
// the strongest live record for it across the pool, and it is only cleared
// once no tracker in the pool still holds one.
type Pool struct {
	trackers []*Tracker
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// NewTracker creates an empty tracker that is a member of the pool.
func (p *Pool) NewTracker(registry Registry, catalog *Catalog) *Tracker {
	t := NewTracker(registry, catalog)
	t.pool = p
	p.trackers = append(p.trackers, t)
	return t
}

// strongest returns the highest severity for (ref, kind) among records that
// are still live at now in trackers other than except.
func (p *Pool) strongest(ref ListenerRef, kind string, now uint64, except *Tracker) (float64, bool) {
	if p == nil {
		return 0, false
	}
	best, found := 0.0, false
	for _, other := range p.trackers {
		if other == except {
			continue
		}
		i := other.indexOf(ref, kind)
		if i < 0 || other.records[i].ExpireAt <= now {
			continue
		}
		if !found || other.records[i].Severity > best {
			best, found = other.records[i].Severity, true
		}
	}
	return best, found
}

// NewTracker creates an empty tracker. registry resolves listeners at apply,
// advance and restore time; catalog gates which kinds can be applied.
func NewTracker(registry Registry, catalog *Catalog) *Tracker {
	return &Tracker{
		registry: registry,
		catalog:  catalog,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger used for diagnostics.
func (t *Tracker) WithLogger(l *slog.Logger) *Tracker {
	if l != nil {
		t.logger = l
	}
	return t
}

// Apply adds or refreshes the (listener, kind) effect. A refresh keeps the
// larger severity and restarts the duration from now. The listener's status
// never drops below a live record held by another tracker in the pool.
func (t *Tracker) Apply(now uint64, listener Listener, kind string, durationTicks uint64, severity float64) {
	if listener == nil {
		return
	}
	if _, ok := t.catalog.Lookup(kind); !ok {
		t.logger.Warn("unknown status effect, skipping", "kind", kind, "listener", listener.Ref())
		return
	}
	severity = clamp01(severity)
	ref := listener.Ref()
	expireAt := now + durationTicks

	if i := t.indexOf(ref, kind); i >= 0 {
		rec := &t.records[i]
		if severity > rec.Severity {
			rec.Severity = severity
		}
		rec.ExpireAt = expireAt
		listener.SetStatus(kind, t.effective(ref, kind, rec.Severity, now))
		t.logger.Debug("status effect refreshed", "kind", kind, "listener", ref, "severity", rec.Severity, "expire_at", expireAt)
		return
	}

	t.records = append(t.records, Record{
		Listener: ref,
		Kind:     kind,
		Severity: severity,
		ExpireAt: expireAt,
	})
	listener.SetStatus(kind, t.effective(ref, kind, severity, now))
	t.logger.Debug("status effect applied", "kind", kind, "listener", ref, "severity", severity, "expire_at", expireAt)
}

// Advance expires records whose time has come and drops records whose
// listener no longer exists. An expired status falls back to the strongest
// record left in the pool, if any. Returns the number of records removed.
func (t *Tracker) Advance(now uint64) int {
	kept := t.records[:0]
	removed := 0
	for _, rec := range t.records {
		l, ok := t.registry.Lookup(rec.Listener)
		if !ok {
			removed++
			continue
		}
		if now >= rec.ExpireAt {
			if sev, ok := t.pool.strongest(rec.Listener, rec.Kind, now, t); ok {
				l.SetStatus(rec.Kind, sev)
			} else {
				l.ClearStatus(rec.Kind)
			}
			removed++
			t.logger.Debug("status effect expired", "kind", rec.Kind, "listener", rec.Listener, "tick", now)
			continue
		}
		kept = append(kept, rec)
	}
	// Zero the tail so dropped records do not linger in the backing array.
	for i := len(kept); i < len(t.records); i++ {
		t.records[i] = Record{}
	}
	t.records = kept
	return removed
}

// Len returns the number of live records.
func (t *Tracker) Len() int {
	return len(t.records)
}

// Records returns a copy of the live records in application order.
func (t *Tracker) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Find returns the record for (ref, kind), if present.
func (t *Tracker) Find(ref ListenerRef, kind string) (Record, bool) {
	if i := t.indexOf(ref, kind); i >= 0 {
		return t.records[i], true
	}
	return Record{}, false
}

// States returns the records in persisted form.
func (t *Tracker) States() []RecordState {
	out := make([]RecordState, 0, len(t.records))
	for _, rec := range t.records {
		id, gen := rec.Listener.ID, rec.Listener.Gen
		out = append(out, RecordState{
			ListenerID:  &id,
			ListenerGen: &gen,
			Kind:        rec.Kind,
			Severity:    rec.Severity,
			ExpireAt:    int64(rec.ExpireAt),
		})
	}
	return out
}

// Restore replaces the tracker's records with states, dropping any whose
// listener reference is missing or no longer resolves. Duplicate
// (listener, kind) pairs collapse into one record.
func (t *Tracker) Restore(states []RecordState) (kept, dropped int) {
	t.records = t.records[:0]
	for _, st := range states {
		if st.ListenerID == nil {
			dropped++
			continue
		}
		ref := ListenerRef{ID: *st.ListenerID}
		if st.ListenerGen != nil {
			ref.Gen = *st.ListenerGen
		}
		if _, ok := t.registry.Lookup(ref); !ok {
			dropped++
			continue
		}
		expireAt := uint64(0)
		if st.ExpireAt > 0 {
			expireAt = uint64(st.ExpireAt)
		}
		if i := t.indexOf(ref, st.Kind); i >= 0 {
			rec := &t.records[i]
			rec.Severity = max(rec.Severity, clamp01(st.Severity))
			rec.ExpireAt = max(rec.ExpireAt, expireAt)
			continue
		}
		t.records = append(t.records, Record{
			Listener: ref,
			Kind:     st.Kind,
			Severity: clamp01(st.Severity),
			ExpireAt: expireAt,
		})
	}
	if dropped > 0 {
		t.logger.Debug("pruned stale status effect records", "dropped", dropped)
	}
	return len(t.records), dropped
}

// effective is the severity a listener should show for kind given this
// tracker's own severity and any live records elsewhere in the pool.
func (t *Tracker) effective(ref ListenerRef, kind string, own float64, now uint64) float64 {
	if other, ok := t.pool.strongest(ref, kind, now, t); ok {
		return max(own, other)
	}
	return own
}

func (t *Tracker) indexOf(ref ListenerRef, kind string) int {
	for i := range t.records {
		if t.records[i].Listener == ref && t.records[i].Kind == kind {
			return i
		}
	}
	return -1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
