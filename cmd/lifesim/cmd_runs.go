package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/persistence"
)

func openArchive(cmd *cobra.Command) (*persistence.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		path = cfg.Runtime.DBPath
	}
	if path == "" {
		return nil, errors.New("no database path (use --db)")
	}
	return persistence.Open(path)
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(context.Background())
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs archived.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tYEARS\tSPAN\tSAVED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%s\n",
					r.RunID, humanize.Comma(int64(r.Years)), r.StartYear, r.EndYear, humanize.Time(r.GeneratedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("db", "", "SQLite archive path (default from config)")
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an archived run as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			runID, _ := cmd.Flags().GetString("run")
			if runID == "" {
				runID, err = db.GetMeta(persistence.MetaCurrentRun)
				if err != nil {
					return fmt.Errorf("no --run given and no current run recorded: %w", err)
				}
			}
			run, err := db.LoadRun(context.Background(), runID)
			if err != nil {
				return err
			}
			return writeRun(cmd, run)
		},
	}
	cmd.Flags().String("db", "", "SQLite archive path (default from config)")
	cmd.Flags().String("run", "", "Run id (default: the last recorded live run)")
	cmd.Flags().String("out", "-", "Output file, or - for stdout")
	return cmd
}

func writeRun(cmd *cobra.Command, run engine.RunExport) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" || out == "-" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	if err := persistence.WriteExportFile(out, run); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s (%d years) to %s\n", run.RunID, len(run.YearlyResults), out)
	return nil
}
