package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/lifesim/internal/api"
	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/persistence"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and live stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRuntimeFlags(cmd, &cfg.Runtime)
			rt := cfg.Runtime

			ctrl, err := engine.NewController(cfg, engine.OptionsFromConfig(cfg))
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// ── Archive ──────────────────────────────────────────────
			// The recorder outlives ctx so the final pause is archived.
			recCtx, stopRecorder := context.WithCancel(context.Background())
			defer stopRecorder()
			var db *persistence.DB
			var wg sync.WaitGroup
			if noDB, _ := cmd.Flags().GetBool("no-db"); !noDB && rt.DBPath != "" {
				db, err = persistence.Open(rt.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				slog.Info("database opened", "path", rt.DBPath)

				rec := persistence.NewRecorder(db, ctrl)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := rec.Run(recCtx); err != nil {
						slog.Error("recorder stopped", "error", err)
					}
				}()
			}

			// ── HTTP API ─────────────────────────────────────────────
			srv := &api.Server{
				Ctrl:     ctrl,
				DB:       db,
				Port:     rt.Port,
				AdminKey: rt.AdminKey,
			}
			srv.Start()

			if autostart, _ := cmd.Flags().GetBool("autostart"); autostart {
				ctrl.Start()
			}

			<-ctx.Done()
			slog.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("HTTP shutdown", "error", err)
			}
			ctrl.Pause()
			stopRecorder()
			wg.Wait()
			return nil
		},
	}
	addPopulationFlags(cmd)
	cmd.Flags().Int("port", 0, "Listen port (default from config)")
	cmd.Flags().String("db", "", "SQLite archive path (default from config)")
	cmd.Flags().Bool("no-db", false, "Do not archive runs")
	cmd.Flags().Duration("interval", 0, "Autoplay interval (default from config)")
	cmd.Flags().String("admin-key", "", "Bearer token for control endpoints")
	cmd.Flags().Bool("autostart", false, "Start autoplay immediately")
	return cmd
}
