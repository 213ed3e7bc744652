package cli

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jisaku/kanjidb/internal/edit"
	"github.com/jisaku/kanjidb/internal/ident"
	"github.com/jisaku/kanjidb/internal/reconcile"
	"github.com/jisaku/kanjidb/internal/store"
)

//go:embed seed_schema.cue
var seedSchemaCUE string

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
}

// seedFile mirrors the YAML seed document, validated against the
// embedded CUE schema before import.
type seedFile struct {
	ClassificationTypes []seedClassificationType `yaml:"classificationTypes"`
	PositionTypes       []seedPositionType       `yaml:"positionTypes"`
	Kanji               []seedKanji              `yaml:"kanji"`
}

type seedClassificationType struct {
	TypeName     string `yaml:"typeName"`
	NameJapanese string `yaml:"nameJapanese"`
	NameEnglish  string `yaml:"nameEnglish"`
	Description  string `yaml:"description"`
}

type seedPositionType struct {
	Name string `yaml:"name"`
}

type seedReading struct {
	Reading   string `yaml:"reading"`
	Okurigana string `yaml:"okurigana"`
	Level     string `yaml:"level"`
}

type seedMeaning struct {
	Text string `yaml:"text"`
	Info string `yaml:"info"`
}

type seedGroup struct {
	Reading string `yaml:"reading"`
	Members []int  `yaml:"members"` // indexes into the kanji's meanings list
}

type seedKanji struct {
	Character       string        `yaml:"character"`
	StrokeCount     *int64        `yaml:"strokeCount"`
	ShortMeaning    string        `yaml:"shortMeaning"`
	SearchKeywords  string        `yaml:"searchKeywords"`
	JLPTLevel       string        `yaml:"jlptLevel"`
	JoyoLevel       string        `yaml:"joyoLevel"`
	KenteiLevel     string        `yaml:"kenteiLevel"`
	OnReadings      []seedReading `yaml:"onReadings"`
	KunReadings     []seedReading `yaml:"kunReadings"`
	Meanings        []seedMeaning `yaml:"meanings"`
	Groups          []seedGroup   `yaml:"groups"`
	Classifications []string      `yaml:"classifications"`
}

// SeedResult summarizes one seed run.
type SeedResult struct {
	Files               int `json:"files"`
	Kanji               int `json:"kanji"`
	ClassificationTypes int `json:"classificationTypes"`
	PositionTypes       int `json:"positionTypes"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <seed-file.yaml>...",
		Short: "Import YAML seed files",
		Long: `Validate YAML seed files against the seed schema and import them
through the reconciliation engine. A kanji already present is updated
to match the seed; its readings, meanings, groups, and classification
assignments are replaced by the seed's.

Example:
  kanjidb seed --db ./kanji.db seeds/grade1.yaml seeds/radicals.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSeed(opts *SeedOptions, paths []string, cmd *cobra.Command) error {
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

	// Checkpoint the WAL on a debounce instead of once per kanji.
	scheduler := store.NewFlushScheduler(store.DefaultFlushDelay, st.Checkpoint, slog.Default())
	st.SetFlushHook(scheduler.Signal)
	defer func() {
		if flushErr := scheduler.Close(); flushErr != nil {
			slog.Error("error flushing database", "error", flushErr)
		}
	}()

	rec := reconcile.New(st, slog.Default())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result SeedResult
	for _, path := range paths {
		seed, err := loadSeedFile(path)
		if err != nil {
			_ = formatter.Error(ErrCodeSeedInvalid, err.Error(), path)
			return WrapExitError(ExitFailure, "seed file rejected", err)
		}
		counts, err := importSeed(ctx, st, rec, seed)
		if err != nil {
			_ = formatter.Error(ErrCodeSeedImport, err.Error(), path)
			return WrapExitError(ExitFailure, "seed import failed", err)
		}
		result.Files++
		result.Kanji += counts.Kanji
		result.ClassificationTypes += counts.ClassificationTypes
		result.PositionTypes += counts.PositionTypes
		slog.Info("seed file imported", "path", path, "kanji", counts.Kanji)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("imported %d kanji from %d file(s)", result.Kanji, result.Files))
}

// loadSeedFile reads, schema-validates, and decodes one seed file.
func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	// Validate the raw document against the CUE schema first, so the
	// error points at the offending field rather than a Go type.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cctx := cuecontext.New()
	schema := cctx.CompileString(seedSchemaCUE)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling seed schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Seed"))
	unified := def.Unify(cctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &seed, nil
}

type seedCounts struct {
	Kanji               int
	ClassificationTypes int
	PositionTypes       int
}

// importSeed writes one validated seed document through the
// reconciliation engine.
func importSeed(ctx context.Context, st *store.Store, rec *reconcile.Reconciler, seed *seedFile) (seedCounts, error) {
	var counts seedCounts
	q := st.Queries()

	for _, t := range seed.ClassificationTypes {
		if _, err := q.FindClassificationTypeByName(ctx, t.TypeName); err == nil {
			continue
		} else if !store.IsNotFound(err) {
			return counts, err
		}
		if _, err := q.CreateClassificationType(ctx, store.ClassificationType{
			TypeName:     t.TypeName,
			NameJapanese: t.NameJapanese,
			NameEnglish:  t.NameEnglish,
			Description:  t.Description,
		}); err != nil {
			return counts, err
		}
		counts.ClassificationTypes++
	}

	for _, t := range seed.PositionTypes {
		if _, err := q.FindPositionTypeByName(ctx, t.Name); err == nil {
			continue
		} else if !store.IsNotFound(err) {
			return counts, err
		}
		if _, err := q.CreatePositionType(ctx, store.PositionType{Name: t.Name}); err != nil {
			return counts, err
		}
		counts.PositionTypes++
	}

	for _, sk := range seed.Kanji {
		if err := importKanji(ctx, q, rec, sk); err != nil {
			return counts, fmt.Errorf("kanji %q: %w", sk.Character, err)
		}
		counts.Kanji++
	}
	return counts, nil
}

func importKanji(ctx context.Context, q *store.Queries, rec *reconcile.Reconciler, sk seedKanji) error {
	base := store.Kanji{
		Character:      sk.Character,
		StrokeCount:    sk.StrokeCount,
		ShortMeaning:   sk.ShortMeaning,
		SearchKeywords: sk.SearchKeywords,
		JlptLevel:      sk.JLPTLevel,
		JoyoLevel:      sk.JoyoLevel,
		KenteiLevel:    sk.KenteiLevel,
	}

	k, err := q.GetKanjiByCharacter(ctx, sk.Character)
	switch {
	case store.IsNotFound(err):
		if k, err = q.CreateKanji(ctx, base); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		base.ID = k.ID
		if k, err = q.UpdateKanji(ctx, base); err != nil {
			return err
		}
	}

	session := ident.NewSession()
	rec = rec.ForSession(session)

	ons := make([]edit.OnReading, 0, len(sk.OnReadings))
	for _, r := range sk.OnReadings {
		ons = append(ons, edit.OnReading{
			ID: session.NextPlaceholder(), Reading: r.Reading, ReadingLevel: readingLevel(r.Level),
		})
	}
	kuns := make([]edit.KunReading, 0, len(sk.KunReadings))
	for _, r := range sk.KunReadings {
		kuns = append(kuns, edit.KunReading{
			ID: session.NextPlaceholder(), Reading: r.Reading, Okurigana: r.Okurigana, ReadingLevel: readingLevel(r.Level),
		})
	}
	if _, err := rec.SaveReadings(ctx, k.ID, ons, kuns); err != nil {
		return err
	}

	meaningRefs := make([]ident.Identity, len(sk.Meanings))
	meanings := make([]edit.Meaning, 0, len(sk.Meanings))
	for i, m := range sk.Meanings {
		meaningRefs[i] = session.NextPlaceholder()
		meanings = append(meanings, edit.Meaning{
			ID: meaningRefs[i], MeaningText: m.Text, AdditionalInfo: m.Info,
		})
	}
	groups := make([]edit.ReadingGroup, 0, len(sk.Groups))
	var members []edit.GroupMember
	for _, g := range sk.Groups {
		groupRef := session.NextPlaceholder()
		groups = append(groups, edit.ReadingGroup{ID: groupRef, ReadingText: g.Reading})
		for _, idx := range g.Members {
			if idx >= len(meaningRefs) {
				slog.Warn("seed group member index out of range",
					"kanji", sk.Character, "group", g.Reading, "index", idx)
				continue
			}
			members = append(members, edit.GroupMember{
				ID: session.NextPlaceholder(), Group: groupRef, Meaning: meaningRefs[idx],
			})
		}
	}
	if _, err := rec.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: meanings, Groups: groups, Members: members,
	}); err != nil {
		return err
	}

	if len(sk.Classifications) > 0 {
		items := make([]edit.Classification, 0, len(sk.Classifications))
		for _, name := range sk.Classifications {
			t, err := q.FindClassificationTypeByName(ctx, name)
			if store.IsNotFound(err) {
				if t, err = q.CreateClassificationType(ctx, store.ClassificationType{TypeName: name}); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			items = append(items, edit.Classification{
				ID: session.NextPlaceholder(), ClassificationTypeID: t.ID,
			})
		}
		if _, err := rec.SaveClassifications(ctx, k.ID, items); err != nil {
			return err
		}
	}
	return nil
}

func readingLevel(level string) string {
	if level == "" {
		return "小"
	}
	return level
}
