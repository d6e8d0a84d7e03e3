// Package config loads simulation tuning from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/rim-radio/internal/effects"
	"github.com/talgya/rim-radio/internal/listening"
	"github.com/talgya/rim-radio/internal/quality"
)

type Config struct {
	TicksPerMinute     int                  `yaml:"ticks_per_minute" json:"ticks_per_minute"`
	SeatRadius         int                  `yaml:"seat_radius" json:"seat_radius"`
	AudienceRadius     int                  `yaml:"audience_radius" json:"audience_radius"`
	ListenTicksDefault int                  `yaml:"listen_ticks_default" json:"listen_ticks_default"`
	Quality            quality.Table        `yaml:"quality" json:"quality"`
	Effects            Effects              `yaml:"effects" json:"effects"`
	DefaultItemType    listening.ItemType   `yaml:"default_item_type" json:"default_item_type"`
	ItemTypes          []listening.ItemType `yaml:"item_types" json:"item_types"`
	Scenario           Scenario             `yaml:"scenario" json:"scenario"`
	Database           Database             `yaml:"database" json:"database"`
	API                API                  `yaml:"api" json:"api"`
}

type Effects struct {
	NegativeKind string                 `yaml:"negative_kind" json:"negative_kind"`
	DefaultKind  string                 `yaml:"default_kind" json:"default_kind"`
	Genres       []effects.GenreKeyword `yaml:"genres" json:"genres"`
	Definitions  []effects.Definition   `yaml:"definitions" json:"definitions"`
}

// Scenario describes the demo colony laid out at startup.
type Scenario struct {
	Seed       int64   `yaml:"seed" json:"seed"`
	MapRadius  int     `yaml:"map_radius" json:"map_radius"`
	RockLevel  float64 `yaml:"rock_level" json:"rock_level"`
	ClearRing  int     `yaml:"clear_radius" json:"clear_radius"`
	Faction    uint64  `yaml:"faction" json:"faction"`
	Colonists  int     `yaml:"colonists" json:"colonists"`
	Speakers   int     `yaml:"speakers" json:"speakers"`
	Albums     []Album `yaml:"albums" json:"albums"`
	Seats      []Seat  `yaml:"seats" json:"seats"`
	JoyTrigger float64 `yaml:"joy_trigger" json:"joy_trigger"` // Idle colonists below this joy start a session
	JoyDecay   float64 `yaml:"joy_decay" json:"joy_decay"`     // Joy lost per tick while not listening
}

type Album struct {
	Def     string           `yaml:"def" json:"def"`
	Quality quality.Category `yaml:"quality" json:"quality"`
	Count   int              `yaml:"count" json:"count"`
}

type Seat struct {
	Def     string  `yaml:"def" json:"def"`
	Comfort float64 `yaml:"comfort" json:"comfort"`
	Count   int     `yaml:"count" json:"count"`
}

type Database struct {
	Path string `yaml:"path" json:"path"`
}

type API struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Port        int    `yaml:"port" json:"port"`
	AdminKey    string `yaml:"admin_key" json:"-"`
	AssignLimit int    `yaml:"assign_limit_per_minute" json:"assign_limit_per_minute"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		TicksPerMinute:     1,
		SeatRadius:         6,
		AudienceRadius:     5,
		ListenTicksDefault: 120,
		Quality:            quality.DefaultTable(),
		Effects: Effects{
			NegativeKind: "EarAche",
			DefaultKind:  "MusicGroove",
			Genres: []effects.GenreKeyword{
				{Keyword: "jazz", Kind: "MusicMellow"},
				{Keyword: "blues", Kind: "MusicMellow"},
				{Keyword: "classical", Kind: "MusicInspired"},
				{Keyword: "rock", Kind: "MusicEnergized"},
				{Keyword: "metal", Kind: "MusicEnergized"},
				{Keyword: "ambient", Kind: "MusicCalm"},
			},
			Definitions: []effects.Definition{
				{Kind: "MusicGroove", Label: "grooving", MoodPerUnit: 8},
				{Kind: "MusicMellow", Label: "mellow", MoodPerUnit: 6},
				{Kind: "MusicInspired", Label: "inspired", MoodPerUnit: 10},
				{Kind: "MusicEnergized", Label: "energized", MoodPerUnit: 7},
				{Kind: "MusicCalm", Label: "calm", MoodPerUnit: 5},
				{Kind: "EarAche", Label: "ear ache", MoodPerUnit: -10, Negative: true},
			},
		},
		DefaultItemType: listening.ItemType{
			Mode: listening.RewardOnCompletion,
			Memory: &listening.MemoryDef{
				Kind:          "ListenedToAlbum",
				MoodOffset:    4,
				DurationTicks: 1440,
			},
		},
		ItemTypes: []listening.ItemType{
			{Def: "Album_Radio", ListenTicks: 60, JoyPerTick: 0.004, Mode: listening.RewardPerTick},
		},
		Scenario: Scenario{
			Seed:      42,
			MapRadius: 12,
			RockLevel: 0.68,
			ClearRing: 5,
			Faction:   1,
			Colonists: 6,
			Speakers:  1,
			Albums: []Album{
				{Def: "Album_Jazz", Quality: quality.Good, Count: 2},
				{Def: "Album_Rock", Quality: quality.Normal, Count: 2},
				{Def: "Album_Classical", Quality: quality.Masterwork, Count: 1},
				{Def: "Album_Bootleg", Quality: quality.Awful, Count: 1},
				{Def: "Album_Radio", Quality: quality.Normal, Count: 1},
			},
			Seats: []Seat{
				{Def: "Armchair", Comfort: 0.8, Count: 2},
				{Def: "Stool", Comfort: 0.4, Count: 3},
			},
			JoyTrigger: 0.35,
			JoyDecay:   0.0005,
		},
		Database: Database{Path: "data/radiosim.db"},
		API:      API{Enabled: true, Port: 8080, AssignLimit: 30},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills zero values left by a partial file.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.TicksPerMinute <= 0 {
		c.TicksPerMinute = d.TicksPerMinute
	}
	if c.SeatRadius <= 0 {
		c.SeatRadius = d.SeatRadius
	}
	if c.AudienceRadius <= 0 {
		c.AudienceRadius = d.AudienceRadius
	}
	if c.ListenTicksDefault <= 0 {
		c.ListenTicksDefault = d.ListenTicksDefault
	}
	if c.Effects.NegativeKind == "" {
		c.Effects.NegativeKind = d.Effects.NegativeKind
	}
	if c.Effects.DefaultKind == "" {
		c.Effects.DefaultKind = d.Effects.DefaultKind
	}
	if len(c.Effects.Definitions) == 0 {
		c.Effects.Definitions = d.Effects.Definitions
	}
	if c.DefaultItemType.Mode == "" {
		c.DefaultItemType.Mode = listening.RewardOnCompletion
	}
	for i := range c.ItemTypes {
		if c.ItemTypes[i].Mode == "" {
			c.ItemTypes[i].Mode = c.DefaultItemType.Mode
		}
	}
	if c.Scenario.MapRadius <= 0 {
		c.Scenario.MapRadius = d.Scenario.MapRadius
	}
	if c.Scenario.Faction == 0 {
		c.Scenario.Faction = d.Scenario.Faction
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.API.Port == 0 {
		c.API.Port = d.API.Port
	}
}

// Validate reports the first inconsistency found.
func (c *Config) Validate() error {
	if err := c.Quality.Validate(); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	catalog := c.Catalog()
	for _, kind := range []string{c.Effects.NegativeKind, c.Effects.DefaultKind} {
		if _, ok := catalog.Lookup(kind); !ok {
			return fmt.Errorf("effects: kind %q has no definition", kind)
		}
	}
	for _, g := range c.Effects.Genres {
		if g.Keyword == "" {
			return errors.New("effects: genre with empty keyword")
		}
		if _, ok := catalog.Lookup(g.Kind); !ok {
			return fmt.Errorf("effects: genre %q maps to undefined kind %q", g.Keyword, g.Kind)
		}
	}
	types := append([]listening.ItemType{c.DefaultItemType}, c.ItemTypes...)
	for _, it := range types {
		switch it.Mode {
		case listening.RewardPerTick, listening.RewardOnCompletion:
		default:
			return fmt.Errorf("item type %q: unknown reward mode %q", it.Def, it.Mode)
		}
		if it.EffectOverride != "" {
			if _, ok := catalog.Lookup(it.EffectOverride); !ok {
				return fmt.Errorf("item type %q: override kind %q has no definition", it.Def, it.EffectOverride)
			}
		}
	}
	if c.Scenario.JoyTrigger < 0 || c.Scenario.JoyTrigger > 1 {
		return fmt.Errorf("scenario: joy_trigger out of [0,1]: %v", c.Scenario.JoyTrigger)
	}
	return nil
}

// Catalog builds the effect catalog from the configured definitions.
func (c *Config) Catalog() *effects.Catalog {
	return effects.NewCatalog(c.Effects.Definitions...)
}

// ListeningSettings returns the task machine tunables.
func (c *Config) ListeningSettings() listening.Settings {
	types := make(map[string]listening.ItemType, len(c.ItemTypes))
	for _, it := range c.ItemTypes {
		types[it.Def] = it
	}
	return listening.Settings{
		SeatRadius:         c.SeatRadius,
		DefaultListenTicks: c.ListenTicksDefault,
		Default:            c.DefaultItemType,
		ItemTypes:          types,
	}
}
