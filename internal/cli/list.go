package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jisaku/kanjidb/internal/query"
	"github.com/jisaku/kanjidb/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database     string
	Search       string
	JLPTLevels   []string
	JoyoLevels   []string
	KenteiLevels []string
	HasMeanings  string // "", "yes", "no"
	HasReadings  string
	Limit        int
	Offset       int
}

// listRow is the JSON shape of one list entry.
type listRow struct {
	ID           int64  `json:"id"`
	Character    string `json:"character"`
	ShortMeaning string `json:"shortMeaning,omitempty"`
	JLPTLevel    string `json:"jlptLevel,omitempty"`
	JoyoLevel    string `json:"joyoLevel,omitempty"`
	StrokeCount  *int64 `json:"strokeCount,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List kanji matching a filter",
		Long: `List kanji, optionally narrowed by search text, level, or whether
meanings and readings exist yet.

Example:
  kanjidb list --db ./kanji.db --jlpt N5 --jlpt N4
  kanjidb list --db ./kanji.db --search water --has-meanings no`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match character, short meaning, or keywords")
	cmd.Flags().StringArrayVar(&opts.JLPTLevels, "jlpt", nil, "JLPT level (repeatable)")
	cmd.Flags().StringArrayVar(&opts.JoyoLevels, "joyo", nil, "joyo level (repeatable)")
	cmd.Flags().StringArrayVar(&opts.KenteiLevels, "kentei", nil, "kanji kentei level (repeatable)")
	cmd.Flags().StringVar(&opts.HasMeanings, "has-meanings", "", "filter on meanings present (yes|no)")
	cmd.Flags().StringVar(&opts.HasReadings, "has-readings", "", "filter on readings present (yes|no)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 = all)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")

	return cmd
}

func parseTristate(flag, value string) (*bool, error) {
	switch strings.ToLower(value) {
	case "":
		return nil, nil
	case "yes", "true":
		t := true
		return &t, nil
	case "no", "false":
		f := false
		return &f, nil
	default:
		return nil, fmt.Errorf("invalid --%s value %q: must be yes or no", flag, value)
	}
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	hasMeanings, err := parseTristate("has-meanings", opts.HasMeanings)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	}
	hasReadings, err := parseTristate("has-readings", opts.HasReadings)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flag", err)
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

	filter := query.Filter{
		Search:       opts.Search,
		JLPTLevels:   opts.JLPTLevels,
		JoyoLevels:   opts.JoyoLevels,
		KenteiLevels: opts.KenteiLevels,
		HasMeanings:  hasMeanings,
		HasReadings:  hasReadings,
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	}
	kanji, err := st.Queries().SearchKanji(ctx, filter)
	if err != nil {
		return WrapExitError(ExitFailure, "list failed", err)
	}

	if opts.Format == "json" {
		rows := make([]listRow, 0, len(kanji))
		for _, k := range kanji {
			rows = append(rows, listRow{
				ID: k.ID, Character: k.Character, ShortMeaning: k.ShortMeaning,
				JLPTLevel: k.JlptLevel, JoyoLevel: k.JoyoLevel, StrokeCount: k.StrokeCount,
			})
		}
		return formatter.Success(rows)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKANJI\tSTROKES\tJLPT\tJOYO\tMEANING")
	for _, k := range kanji {
		strokes := ""
		if k.StrokeCount != nil {
			strokes = fmt.Sprintf("%d", *k.StrokeCount)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			k.ID, k.Character, strokes, k.JlptLevel, k.JoyoLevel, k.ShortMeaning)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	formatter.VerboseLog("%d kanji", len(kanji))
	return nil
}
