package config

import (
	"os"
	"strconv"
)

// FromEnv overrides selected values from RADIOSIM_* environment variables.
// Unset or unparsable variables leave the value alone.
func FromEnv(c *Config) {
	if val := getEnvInt("RADIOSIM_TICKS_PER_MINUTE"); val > 0 {
		c.TicksPerMinute = val
	}
	if val := getEnvInt("RADIOSIM_SEAT_RADIUS"); val > 0 {
		c.SeatRadius = val
	}
	if val := getEnvInt("RADIOSIM_AUDIENCE_RADIUS"); val > 0 {
		c.AudienceRadius = val
	}
	if val := getEnvInt("RADIOSIM_LISTEN_TICKS"); val > 0 {
		c.ListenTicksDefault = val
	}
	if val := getEnvInt("RADIOSIM_COLONISTS"); val > 0 {
		c.Scenario.Colonists = val
	}
	if val := getEnvInt("RADIOSIM_PORT"); val > 0 {
		c.API.Port = val
	}
	if val := os.Getenv("RADIOSIM_SEED"); val != "" {
		if seed, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Scenario.Seed = seed
		}
	}
	if val := os.Getenv("RADIOSIM_DB"); val != "" {
		c.Database.Path = val
	}
	if val := os.Getenv("RADIOSIM_ADMIN_KEY"); val != "" {
		c.API.AdminKey = val
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
