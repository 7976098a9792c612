// Command lifesim runs the population simulation from the terminal or as a
// dashboard server.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/lifesim/internal/config"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lifesim",
		Short: "Yearly population simulation of humans and animals",
		Long: `lifesim simulates a population of humans and animals one year at a time:
aging, marriage, births, accidents and natural death.

Run it in the terminal with "lifesim run" or serve the dashboard API with
"lifesim serve".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			slog.SetDefault(newLogger(level, cmd.ErrOrStderr()))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default from config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newServeCmd(),
		newExportCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

// parseLevel maps a level name to a slog.Level. Unknown values default to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level string, w io.Writer) *slog.Logger {
	if level == "" {
		level = os.Getenv("LIFESIM_LOG_LEVEL")
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// loadConfig reads the --config file (if any) over the defaults, applies
// environment overrides, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level == "" && cfg.Runtime.LogLevel != "" {
		slog.SetDefault(newLogger(cfg.Runtime.LogLevel, cmd.ErrOrStderr()))
	}
	return cfg, nil
}

// applyRuntimeFlags copies explicitly set flags over the runtime config.
func applyRuntimeFlags(cmd *cobra.Command, rt *config.RuntimeConfig) {
	flags := cmd.Flags()
	if flags.Changed("humans") {
		rt.HumanCount, _ = flags.GetInt("humans")
	}
	if flags.Changed("animals") {
		rt.AnimalCount, _ = flags.GetInt("animals")
	}
	if flags.Changed("start-year") {
		rt.StartYear, _ = flags.GetInt("start-year")
	}
	if flags.Changed("seed") {
		rt.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("db") {
		rt.DBPath, _ = flags.GetString("db")
	}
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		rt.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		rt.Port, _ = flags.GetInt("port")
	}
	if flags.Lookup("admin-key") != nil && flags.Changed("admin-key") {
		rt.AdminKey, _ = flags.GetString("admin-key")
	}
}

func addPopulationFlags(cmd *cobra.Command) {
	cmd.Flags().Int("humans", 0, "Initial human count (default from config)")
	cmd.Flags().Int("animals", 0, "Initial animal count (default from config)")
	cmd.Flags().Int("start-year", 0, "First simulated year (default from config)")
	cmd.Flags().Int64("seed", 0, "Random seed; 0 means unseeded")
}
