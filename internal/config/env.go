package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnvOverrides applies LIFESIM_* environment variables to the runtime
// settings. Unparseable values are ignored.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("LIFESIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Runtime.Seed = n
		}
	}
	if v := os.Getenv("LIFESIM_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Runtime.Interval = d
		}
	}
	if v := os.Getenv("LIFESIM_DB"); v != "" {
		c.Runtime.DBPath = v
	}
	if v := os.Getenv("LIFESIM_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Runtime.Port = n
		}
	}
	if v := os.Getenv("LIFESIM_ADMIN_KEY"); v != "" {
		c.Runtime.AdminKey = v
	}
	if v := os.Getenv("LIFESIM_LOG_LEVEL"); v != "" {
		c.Runtime.LogLevel = v
	}
}
