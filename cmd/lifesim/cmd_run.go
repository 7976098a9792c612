package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/talgya/lifesim/internal/console"
	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation in the terminal",
		Long: `Run a simulation in the terminal.

On an interactive terminal each Enter advances one year. Otherwise, or when
--years is given, the simulation runs that many years in batch and stops early
if the population dies out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRuntimeFlags(cmd, &cfg.Runtime)

			ctrl, err := engine.NewController(cfg, engine.OptionsFromConfig(cfg))
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			printer := console.NewPrinter(cmd.OutOrStdout())
			printer.MaxEvents, _ = cmd.Flags().GetInt("max-events")
			session := &console.Session{
				Ctrl:    ctrl,
				Printer: printer,
				In:      cmd.InOrStdin(),
				Out:     cmd.OutOrStdout(),
			}

			years, _ := cmd.Flags().GetInt("years")
			if !cmd.Flags().Changed("years") && console.IsInteractive(os.Stdin) {
				err = session.RunInteractive(ctx)
			} else {
				_, err = session.RunBatch(ctx, years)
			}
			if err != nil && ctx.Err() == nil {
				return err
			}

			return saveRun(cmd, ctrl.Export())
		},
	}
	addPopulationFlags(cmd)
	cmd.Flags().Int("years", 50, "Years to simulate in batch mode")
	cmd.Flags().Int("max-events", 0, "Max events printed per year (0 = all)")
	cmd.Flags().String("export", "", "Write the finished run as JSON to this file")
	cmd.Flags().String("db", "", "Also archive the finished run in this SQLite database")
	return cmd
}

func saveRun(cmd *cobra.Command, run engine.RunExport) error {
	if path, _ := cmd.Flags().GetString("export"); path != "" {
		if err := persistence.WriteExportFile(path, run); err != nil {
			return err
		}
		slog.Info("run exported", "path", path, "years", len(run.YearlyResults))
	}

	if path, _ := cmd.Flags().GetString("db"); path != "" {
		db, err := persistence.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveRun(context.Background(), run); err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
		slog.Info("run archived", "db", path, "run", run.RunID)
	}
	return nil
}
