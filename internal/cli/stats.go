package cli

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jisaku/kanjidb/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Database string
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-table row counts",
		Long: `Show how many rows each table holds.

Example:
  kanjidb stats --db ./kanji.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStats(opts *StatsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stats, err := st.Queries().CollectStats(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "stats failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(stats)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	rows := []struct {
		label string
		count int64
	}{
		{"kanji", stats.Kanji},
		{"components", stats.Components},
		{"vocabulary", stats.Vocabulary},
		{"on readings", stats.OnReadings},
		{"kun readings", stats.KunReadings},
		{"meanings", stats.Meanings},
		{"reading groups", stats.ReadingGroups},
		{"group members", stats.GroupMembers},
		{"classifications", stats.Classifications},
		{"component forms", stats.ComponentForms},
		{"occurrences", stats.Occurrences},
		{"vocab links", stats.VocabKanji},
		{"classification types", stats.ClassificationKind},
		{"position types", stats.PositionKind},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\n", r.label, r.count)
	}
	return w.Flush()
}
