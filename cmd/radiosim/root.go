package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talgya/rim-radio/internal/config"
)

// v holds flag and RADIOSIM_* environment values.
var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "radiosim",
	Short: "Colony listening-session simulation",
	Long: `radiosim runs a small colony whose members fetch albums, find a seat,
listen, and share the music's mood effects with everyone in earshot.

State is saved to SQLite once per sim-day and on shutdown; a read-only
HTTP API exposes colonists, sessions and active effects.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(v.GetString("log-level"))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "radiosim.yaml", "Path to the YAML config file")
	pf.String("db", "", "SQLite database path (overrides config)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")

	v.SetEnvPrefix("RADIOSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(pf); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
}

// loadConfig reads the config file, then environment, then explicit flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	config.FromEnv(cfg)

	if db := v.GetString("db"); db != "" {
		cfg.Database.Path = db
	}
	if v.IsSet("seed") {
		cfg.Scenario.Seed = v.GetInt64("seed")
	}
	if v.IsSet("port") {
		cfg.API.Port = v.GetInt("port")
	}
	if v.IsSet("no-api") && v.GetBool("no-api") {
		cfg.API.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
