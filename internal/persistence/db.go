// Package persistence provides SQLite-based colony state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/engine"
	"github.com/talgya/rim-radio/internal/world"
)

// DB wraps a SQLite connection for colony state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		gen INTEGER NOT NULL,
		name TEXT NOT NULL,
		pos_q INTEGER NOT NULL,
		pos_r INTEGER NOT NULL,
		faction INTEGER NOT NULL,
		prisoner INTEGER NOT NULL,
		downed INTEGER NOT NULL,
		joy REAL NOT NULL,
		mood REAL NOT NULL,
		alive INTEGER NOT NULL,
		born_tick INTEGER NOT NULL,
		statuses_json TEXT NOT NULL,
		memories_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS effect_records (
		location_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		listener_id INTEGER,
		listener_gen INTEGER,
		effect_kind TEXT NOT NULL,
		severity REAL NOT NULL,
		expire_at INTEGER NOT NULL,
		PRIMARY KEY (location_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type agentRow struct {
	ID           uint64  `db:"id"`
	Gen          uint32  `db:"gen"`
	Name         string  `db:"name"`
	PosQ         int     `db:"pos_q"`
	PosR         int     `db:"pos_r"`
	Faction      uint64  `db:"faction"`
	Prisoner     bool    `db:"prisoner"`
	Downed       bool    `db:"downed"`
	Joy          float64 `db:"joy"`
	Mood         float64 `db:"mood"`
	Alive        bool    `db:"alive"`
	BornTick     uint64  `db:"born_tick"`
	StatusesJSON string  `db:"statuses_json"`
	MemoriesJSON string  `db:"memories_json"`
}

// SaveAgents writes all agents to the database (full replace). Tasks are not
// persisted, so carried albums and stances are not either.
func (db *DB) SaveAgents(agentList []*agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, gen, name, pos_q, pos_r, faction, prisoner, downed, joy, mood,
		 alive, born_tick, statuses_json, memories_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		statusesJSON, err := json.Marshal(a.Statuses)
		if err != nil {
			return fmt.Errorf("encode statuses of agent %d: %w", a.ID, err)
		}
		memoriesJSON, err := json.Marshal(a.Memories)
		if err != nil {
			return fmt.Errorf("encode memories of agent %d: %w", a.ID, err)
		}

		_, err = stmt.Exec(
			a.ID, a.Gen, a.Name, a.Position.Q, a.Position.R, a.Faction,
			a.Prisoner, a.Downed, a.Joy, a.Mood, a.Alive, a.BornTick,
			string(statusesJSON), string(memoriesJSON),
		)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// LoadAgents reads all agents back in ID order.
func (db *DB) LoadAgents() ([]*agents.Agent, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}

	out := make([]*agents.Agent, 0, len(rows))
	for _, r := range rows {
		a := &agents.Agent{
			ID:       agents.AgentID(r.ID),
			Gen:      r.Gen,
			Name:     r.Name,
			Position: world.HexCoord{Q: r.PosQ, R: r.PosR},
			Faction:  r.Faction,
			Prisoner: r.Prisoner,
			Downed:   r.Downed,
			Joy:      r.Joy,
			Mood:     r.Mood,
			Alive:    r.Alive,
			BornTick: r.BornTick,
		}
		if err := json.Unmarshal([]byte(r.StatusesJSON), &a.Statuses); err != nil {
			return nil, fmt.Errorf("decode statuses of agent %d: %w", r.ID, err)
		}
		if a.Statuses == nil {
			a.Statuses = make(map[string]float64)
		}
		if err := json.Unmarshal([]byte(r.MemoriesJSON), &a.Memories); err != nil {
			return nil, fmt.Errorf("decode memories of agent %d: %w", r.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// SaveEffectRecords writes the records of every location (full replace).
func (db *DB) SaveEffectRecords(byLocation map[world.ThingID][]effects.RecordState) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM effect_records"); err != nil {
		return err
	}

	for loc, states := range byLocation {
		for seq, st := range states {
			_, err := tx.Exec(`INSERT INTO effect_records
				(location_id, seq, listener_id, listener_gen, effect_kind, severity, expire_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				loc, seq, st.ListenerID, st.ListenerGen, st.Kind, st.Severity, st.ExpireAt,
			)
			if err != nil {
				return fmt.Errorf("insert effect record %d/%d: %w", loc, seq, err)
			}
		}
	}

	return tx.Commit()
}

// LoadEffectRecords reads the stored records of one location in save order.
func (db *DB) LoadEffectRecords(location world.ThingID) ([]effects.RecordState, error) {
	var states []effects.RecordState
	err := db.conn.Select(&states,
		`SELECT listener_id, listener_gen, effect_kind, severity, expire_at
		 FROM effect_records WHERE location_id = ? ORDER BY seq`,
		location,
	)
	if err != nil {
		return nil, fmt.Errorf("select effect records of %d: %w", location, err)
	}
	return states, nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// HasWorldState reports whether a previous run saved its state.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta("last_tick")
	return err == nil
}

// LastTick returns the saved tick, or 0 when nothing was saved.
func (db *DB) LastTick() (uint64, error) {
	v, err := db.GetMeta("last_tick")
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// SaveWorldState performs a full save of the colony. Events already saved by
// an earlier call are not written twice.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	var (
		agentList []*agents.Agent
		records   = make(map[world.ThingID][]effects.RecordState)
		events    []engine.Event
		tick      uint64
	)
	sim.View(func() {
		agentList = append(agentList, sim.Roster.All()...)
		for _, sp := range sim.World.Speakers() {
			records[sp.ID] = sp.Effects.States()
		}
		tick = sim.LastTick
		events = append(events, sim.Events...)
	})

	slog.Info("saving world state", "agents", len(agentList), "locations", len(records), "tick", tick)

	saved, _ := db.GetMeta("events_through")
	through, _ := strconv.ParseUint(saved, 10, 64)
	fresh := events[:0:0]
	for _, e := range events {
		if e.Tick > through {
			fresh = append(fresh, e)
		}
	}

	if err := db.SaveAgents(agentList); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveEffectRecords(records); err != nil {
		return fmt.Errorf("save effect records: %w", err)
	}
	if err := db.SaveEvents(fresh); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("events_through", strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}

// RestoreEffects reloads every speaker's records into its tracker. Records
// whose listener no longer resolves are pruned.
func (db *DB) RestoreEffects(sim *engine.Simulation) (kept, dropped int, err error) {
	for _, sp := range sim.World.Speakers() {
		states, err := db.LoadEffectRecords(sp.ID)
		if err != nil {
			return kept, dropped, err
		}
		k, d := sp.Effects.Restore(states)
		kept += k
		dropped += d
	}
	if dropped > 0 {
		slog.Debug("pruned effect records with unresolvable listeners", "dropped", dropped, "kept", kept)
	}
	return kept, dropped, nil
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// EffectRow is one stored record with its location, for inspection.
type EffectRow struct {
	LocationID uint64 `db:"location_id" json:"location_id"`
	effects.RecordState
}

// AllEffectRecords returns every stored record ordered by location.
func (db *DB) AllEffectRecords() ([]EffectRow, error) {
	var rows []EffectRow
	err := db.conn.Select(&rows,
		`SELECT location_id, listener_id, listener_gen, effect_kind, severity, expire_at
		 FROM effect_records ORDER BY location_id, seq`)
	return rows, err
}
