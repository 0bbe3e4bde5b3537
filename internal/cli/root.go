package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/purgelogs/internal/config"
)

// Version, Commit and BuildDate are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	debug      bool
	configFile string
)

func NewRootCmd() *cobra.Command {
	flags := &purgeFlags{}

	root := &cobra.Command{
		Use:   "purgelogs",
		Short: "Purge old CI job logs, keeping the latest successful buildset",
		Long: `purgelogs walks a CI log tree, finds job directories (a zuul-info or
ara-database subdirectory, a consoleText.txt file, or an empty directory) and deletes those older than the retention
period.

With --build-success the newest buildset of every project whose jobs all
succeeded is kept regardless of age.`,
		Args: cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd, flags)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "path to config file")
	addPurgeFlags(root, flags)

	root.AddCommand(newHistoryCmd())
	root.AddCommand(newVersionCmd())

	return root
}
