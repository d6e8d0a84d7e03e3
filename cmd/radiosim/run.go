package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/rim-radio/internal/agents"
	"github.com/talgya/rim-radio/internal/api"
	"github.com/talgya/rim-radio/internal/engine"
	"github.com/talgya/rim-radio/internal/entropy"
	"github.com/talgya/rim-radio/internal/persistence"
	"github.com/talgya/rim-radio/internal/world"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation",
	Long: `Run lays out the colony from the scenario seed, restores colonists and
effect records from the database if a previous run saved them, and ticks
until interrupted (or for --ticks ticks, as fast as possible).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(cmd.Context())
	},
}

func init() {
	f := runCmd.Flags()
	f.Int64("seed", 0, "Scenario seed (overrides config)")
	f.Int("port", 0, "HTTP API port (overrides config)")
	f.Bool("no-api", false, "Do not start the HTTP API")
	f.Float64("speed", 60, "Ticks per real second")
	f.Uint64("ticks", 0, "Run this many ticks headless and exit; 0 runs until interrupted")
	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}
}

func runSimulation(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	dbPath := cfg.Database.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Colony layout (always regenerated, deterministic from seed) ──
	spawner := agents.NewSpawner(cfg.Scenario.Seed)
	w, colonists := engine.BuildScenario(cfg.Scenario, spawner)
	for t, c := range world.TerrainCounts(w.Map) {
		slog.Debug("terrain", "type", world.TerrainName(t), "count", c)
	}

	// ── Load or start fresh ──────────────────────────────────────────
	var startTick uint64
	roster := agents.NewRoster(colonists)
	restored := db.HasWorldState()
	if restored {
		slog.Info("found saved world state, loading...")
		loaded, err := db.LoadAgents()
		if err != nil {
			return fmt.Errorf("load agents: %w", err)
		}
		if startTick, err = db.LastTick(); err != nil {
			return fmt.Errorf("load tick: %w", err)
		}
		roster = agents.NewRoster(loaded)
		spawner.SetNextID(roster.MaxID() + 1)
	}

	sim := engine.NewSimulation(cfg, w, roster, entropy.NewSeeded(cfg.Scenario.Seed))
	sim.LastTick = startTick

	if restored {
		kept, dropped, err := db.RestoreEffects(sim)
		if err != nil {
			return fmt.Errorf("restore effects: %w", err)
		}
		slog.Info("world state restored",
			"agents", roster.Len(),
			"effects_kept", kept,
			"effects_dropped", dropped,
			"tick", startTick,
			"sim_time", engine.SimTime(startTick),
		)
	} else if err := db.SaveWorldState(sim); err != nil {
		slog.Error("initial save failed", "error", err)
	}

	slog.Info("colony ready",
		"colonists", roster.Len(),
		"things", len(w.Things()),
		"speakers", len(w.Speakers()),
		"hexes", w.Map.HexCount(),
	)

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = startTick
	if speed := v.GetFloat64("speed"); speed > 0 {
		eng.Speed = speed
	}

	// Wire tick callbacks, auto-save every sim-day.
	eng.OnTick = sim.TickMinute
	eng.OnHour = sim.TickHour
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Enabled {
		if cfg.API.AdminKey == "" {
			slog.Warn("RADIOSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		apiServer := &api.Server{
			Sim:         sim,
			Eng:         eng,
			DB:          db,
			Port:        cfg.API.Port,
			AdminKey:    cfg.API.AdminKey,
			AssignLimit: cfg.API.AssignLimit,
		}
		apiServer.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	// ── Start ─────────────────────────────────────────────────────────
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick))
	}

	if n := v.GetUint64("ticks"); n > 0 {
		start := time.Now()
		for i := uint64(0); i < n && ctx.Err() == nil; i++ {
			eng.Step()
		}
		slog.Info("headless run finished", "ticks", n, "elapsed", time.Since(start).Round(time.Millisecond))
	} else {
		fmt.Println("Starting simulation... (Ctrl+C to stop)")
		eng.Run(ctx)
	}

	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
		return err
	}
	stats := sim.Stats
	fmt.Printf("Simulation stopped at %s: %d sessions finished, %d failed. State saved.\n",
		engine.SimTime(eng.Tick), stats.SessionsDone, stats.SessionsFailed)
	return nil
}
