package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/purgelogs/internal/config"
	"github.com/ppiankov/purgelogs/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath  string
		limit   int
		cycleID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent purge cycles from the history ledger",
		Long: `Show purge cycles recorded with --history-db, newest first.

With --cycle the directories removed and protected by that cycle are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("history-db") {
				cfg, err := config.LoadSettings(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				dbPath = cfg.HistoryDB
			}
			if dbPath == "" {
				return fmt.Errorf("--history-db is required")
			}

			db, err := history.OpenSQLite(cmd.Context(), dbPath)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			store := history.NewStore(db)
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

			if cycleID != "" {
				actions, err := store.Actions(cmd.Context(), cycleID)
				if err != nil {
					return err
				}
				if len(actions) == 0 {
					fmt.Fprintf(out, "No actions recorded for cycle %s.\n", cycleID)
					return nil
				}
				fmt.Fprintf(w, "ACTION\tPATH\tBUILDSET\tMODIFIED\n")
				for _, a := range actions {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Kind, a.Path, orDash(a.Buildset), humanize.Time(a.ModTime))
				}
				return w.Flush()
			}

			cycles, err := store.RecentCycles(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(cycles) == 0 {
				fmt.Fprintln(out, "No purge cycles recorded.")
				return nil
			}

			fmt.Fprintf(w, "CYCLE\tSTARTED\tROOT\tDAYS\tJOBS\tREMOVED\tPROTECTED\tKEPT\tDURATION\tSTATUS\n")
			for _, c := range cycles {
				status := "ok"
				switch {
				case c.Error != "":
					status = "error: " + c.Error
				case c.DryRun:
					status = "dry-run"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
					c.ID, c.StartedAt.Local().Format(time.DateTime), c.Root, c.RetentionDays,
					c.JobDirs, c.Deleted, c.Protected, c.Kept,
					c.Duration.Round(time.Millisecond), status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "history-db", "", "SQLite history database")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of cycles to show")
	cmd.Flags().StringVar(&cycleID, "cycle", "", "list the actions of one cycle")

	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
