package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jisaku/kanjidb/internal/edit"
	"github.com/jisaku/kanjidb/internal/ident"
	"github.com/jisaku/kanjidb/internal/reconcile"
	"github.com/jisaku/kanjidb/internal/store"
)

// TraceEvent records one step's action and the database state of the
// affected tables after it completed.
type TraceEvent struct {
	Seq    int                         `json:"seq"`
	Action string                      `json:"action"`
	Kanji  string                      `json:"kanji"`
	State  map[string][]map[string]any `json:"state"`
}

// Result is the deterministic outcome of a scenario run. It is the
// payload compared against golden snapshots.
type Result struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// Columns captured per table, excluding timestamps so snapshots stay
// stable across runs.
var stateColumns = map[string][]string{
	"on_readings":                  {"id", "kanji_id", "reading", "reading_level", "display_order"},
	"kun_readings":                 {"id", "kanji_id", "reading", "okurigana", "reading_level", "display_order"},
	"kanji_meanings":               {"id", "kanji_id", "meaning_text", "additional_info", "display_order"},
	"kanji_meaning_reading_groups": {"id", "kanji_id", "reading_text", "display_order"},
	"kanji_meaning_group_members":  {"id", "reading_group_id", "meaning_id", "display_order"},
	"kanji_classifications":        {"id", "kanji_id", "classification_type_id", "display_order"},
}

var stateParent = map[string]string{
	"on_readings":                  "kanji_id",
	"kun_readings":                 "kanji_id",
	"kanji_meanings":               "kanji_id",
	"kanji_meaning_reading_groups": "kanji_id",
	"kanji_meaning_group_members":  "reading_group_id",
	"kanji_classifications":        "kanji_id",
}

var actionTables = map[string][]string{
	ActionReadings:        {"kun_readings", "on_readings"},
	ActionMeanings:        {"kanji_meaning_group_members", "kanji_meaning_reading_groups", "kanji_meanings"},
	ActionClassifications: {"kanji_classifications"},
}

type runner struct {
	store      *store.Store
	rec        *reconcile.Reconciler
	session    *ident.Session
	refs       map[string]int64
	step       map[string]ident.Identity
	kanji      map[string]int64
	classTypes map[string]int64
}

// Run executes a scenario against a fresh in-memory database and
// evaluates its assertions. Assertion failures are returned as
// messages rather than an error so a test can report all of them.
func Run(ctx context.Context, s *Scenario) (*Result, []string, error) {
	st, err := store.OpenInMemory()
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	session := ident.NewFixedSession("harness")
	r := &runner{
		store:      st,
		rec:        reconcile.New(st, slog.New(slog.DiscardHandler)).ForSession(session),
		session:    session,
		refs:       map[string]int64{},
		kanji:      map[string]int64{},
		classTypes: map[string]int64{},
	}
	if err := r.setup(ctx, s.Setup); err != nil {
		return nil, nil, err
	}

	res := &Result{Scenario: s.Name, Trace: make([]TraceEvent, 0, len(s.Steps))}
	for i, step := range s.Steps {
		ev, err := r.runStep(ctx, i+1, step)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d (%s): %w", i+1, step.Save, err)
		}
		res.Trace = append(res.Trace, ev)
	}

	var failures []string
	for i, a := range s.Assertions {
		if msg := r.checkAssertion(ctx, a); msg != "" {
			failures = append(failures, fmt.Sprintf("assertion %d (%s on %s): %s", i+1, a.Type, a.Table, msg))
		}
	}
	return res, failures, nil
}

func (r *runner) setup(ctx context.Context, setup Setup) error {
	q := r.store.Queries()
	for _, ch := range setup.Kanji {
		k, err := q.CreateKanji(ctx, store.Kanji{Character: ch})
		if err != nil {
			return fmt.Errorf("setup kanji %q: %w", ch, err)
		}
		r.kanji[ch] = k.ID
	}
	return nil
}

// identityFor maps a symbolic ref to an identity. A ref bound by an
// earlier step resolves to its created row. Within a step, the same
// unbound ref always yields the same placeholder so a member can name
// a group or meaning declared in the same save.
func (r *runner) identityFor(ref string) ident.Identity {
	if ref == "" {
		return r.session.NextPlaceholder()
	}
	if id, ok := r.refs[ref]; ok {
		return ident.Existing(id)
	}
	if ph, ok := r.step[ref]; ok {
		return ph
	}
	ph := r.session.NextPlaceholder()
	r.step[ref] = ph
	return ph
}

// bind associates survivor refs with the ids of the reloaded rows.
// Survivors come back in buffer order, so the pairing is positional.
func (r *runner) bind(names []string, ids []int64) {
	if len(names) != len(ids) {
		return
	}
	for i, n := range names {
		if n != "" {
			r.refs[n] = ids[i]
		}
	}
}

func (r *runner) classTypeID(ctx context.Context, name string) (int64, error) {
	if id, ok := r.classTypes[name]; ok {
		return id, nil
	}
	q := r.store.Queries()
	ct, err := q.FindClassificationTypeByName(ctx, name)
	if store.IsNotFound(err) {
		ct, err = q.CreateClassificationType(ctx, store.ClassificationType{TypeName: name})
	}
	if err != nil {
		return 0, fmt.Errorf("classification type %q: %w", name, err)
	}
	r.classTypes[name] = ct.ID
	return ct.ID, nil
}

func (r *runner) runStep(ctx context.Context, seq int, st Step) (TraceEvent, error) {
	kanjiID, ok := r.kanji[st.Kanji]
	if !ok {
		return TraceEvent{}, fmt.Errorf("kanji %q not declared in setup", st.Kanji)
	}
	r.step = map[string]ident.Identity{}

	switch st.Save {
	case ActionReadings:
		ons := make([]edit.OnReading, len(st.On))
		var onRefs []string
		for i, it := range st.On {
			ons[i] = edit.OnReading{
				ID:           r.identityFor(it.Ref),
				Reading:      it.Reading,
				ReadingLevel: levelOrDefault(it.Level),
				Delete:       it.Delete,
			}
			if !it.Delete {
				onRefs = append(onRefs, it.Ref)
			}
		}
		kuns := make([]edit.KunReading, len(st.Kun))
		var kunRefs []string
		for i, it := range st.Kun {
			kuns[i] = edit.KunReading{
				ID:           r.identityFor(it.Ref),
				Reading:      it.Reading,
				Okurigana:    it.Okurigana,
				ReadingLevel: levelOrDefault(it.Level),
				Delete:       it.Delete,
			}
			if !it.Delete {
				kunRefs = append(kunRefs, it.Ref)
			}
		}
		snap, err := r.rec.SaveReadings(ctx, kanjiID, ons, kuns)
		if err != nil {
			return TraceEvent{}, err
		}
		r.bind(onRefs, onIDs(snap.OnReadings))
		r.bind(kunRefs, kunIDs(snap.KunReadings))

	case ActionMeanings:
		in := edit.MeaningsSave{GroupingDisabled: st.GroupingDisabled}
		var meaningRefs, groupRefs []string
		for _, it := range st.Meanings {
			in.Meanings = append(in.Meanings, edit.Meaning{
				ID:             r.identityFor(it.Ref),
				MeaningText:    it.Text,
				AdditionalInfo: it.Info,
				Delete:         it.Delete,
			})
			if !it.Delete {
				meaningRefs = append(meaningRefs, it.Ref)
			}
		}
		for _, it := range st.Groups {
			in.Groups = append(in.Groups, edit.ReadingGroup{
				ID:          r.identityFor(it.Ref),
				ReadingText: it.Reading,
				Delete:      it.Delete,
			})
			if !it.Delete {
				groupRefs = append(groupRefs, it.Ref)
			}
		}
		for _, it := range st.Members {
			in.Members = append(in.Members, edit.GroupMember{
				ID:      r.identityFor(it.Ref),
				Group:   r.identityFor(it.Group),
				Meaning: r.identityFor(it.Meaning),
				Delete:  it.Delete,
			})
		}
		snap, err := r.rec.SaveMeanings(ctx, kanjiID, in)
		if err != nil {
			return TraceEvent{}, err
		}
		r.bind(meaningRefs, meaningIDs(snap.Meanings))
		r.bind(groupRefs, groupIDs(snap.Groups))

	case ActionClassifications:
		items := make([]edit.Classification, len(st.Classifications))
		for i, it := range st.Classifications {
			typeID, err := r.classTypeID(ctx, it.Type)
			if err != nil {
				return TraceEvent{}, err
			}
			items[i] = edit.Classification{
				ID:                   r.identityFor(it.Ref),
				ClassificationTypeID: typeID,
				Delete:               it.Delete,
			}
		}
		if _, err := r.rec.SaveClassifications(ctx, kanjiID, items); err != nil {
			return TraceEvent{}, err
		}
	}

	state := map[string][]map[string]any{}
	for _, table := range actionTables[st.Save] {
		rows, err := r.snapshotTable(ctx, table)
		if err != nil {
			return TraceEvent{}, err
		}
		state[table] = rows
	}
	return TraceEvent{Seq: seq, Action: "save." + st.Save, Kanji: st.Kanji, State: state}, nil
}

func (r *runner) snapshotTable(ctx context.Context, table string) ([]map[string]any, error) {
	cols, ok := stateColumns[table]
	if !ok {
		return nil, fmt.Errorf("no snapshot columns for table %q", table)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s, display_order, id",
		strings.Join(cols, ", "), table, stateParent[table])
	rows, err := r.store.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("snapshotting %s: %w", table, err)
	}
	defer rows.Close()

	out := make([]map[string]any, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(any)
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalizeValue(*(vals[i].(*any)))
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func (r *runner) checkAssertion(ctx context.Context, a Assertion) string {
	rows, err := r.snapshotTable(ctx, a.Table)
	if err != nil {
		return err.Error()
	}
	switch a.Type {
	case AssertCount:
		if len(rows) != a.Count {
			return fmt.Sprintf("expected %d rows, got %d", a.Count, len(rows))
		}
	case AssertDense:
		return checkDense(rows, stateParent[a.Table])
	case AssertState:
		for _, row := range rows {
			if !rowMatches(row, a.Where) {
				continue
			}
			if msg := rowExpects(row, a.Expect); msg != "" {
				return msg
			}
			return ""
		}
		return fmt.Sprintf("no row matching %v", a.Where)
	}
	return ""
}

// checkDense verifies that display_order is 0..n-1 within every parent
// scope. Rows arrive ordered by parent then display_order.
func checkDense(rows []map[string]any, parentCol string) string {
	next := map[string]int64{}
	for _, row := range rows {
		parent := fmt.Sprint(row[parentCol])
		order, ok := row["display_order"].(int64)
		if !ok {
			return fmt.Sprintf("display_order is not an integer in row %v", row)
		}
		if order != next[parent] {
			return fmt.Sprintf("scope %s: expected display_order %d, got %d", parent, next[parent], order)
		}
		next[parent]++
	}
	return ""
}

func rowMatches(row, where map[string]any) bool {
	for k, v := range where {
		got, ok := row[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func rowExpects(row, expect map[string]any) string {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		got, ok := row[k]
		if !ok {
			return fmt.Sprintf("row has no column %q", k)
		}
		if fmt.Sprint(got) != fmt.Sprint(expect[k]) {
			return fmt.Sprintf("column %q: expected %v, got %v", k, expect[k], got)
		}
	}
	return ""
}

func levelOrDefault(level string) string {
	if level == "" {
		return "小"
	}
	return level
}

func onIDs(rs []store.OnReading) []int64 {
	ids := make([]int64, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

func kunIDs(rs []store.KunReading) []int64 {
	ids := make([]int64, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

func meaningIDs(rs []store.Meaning) []int64 {
	ids := make([]int64, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

func groupIDs(rs []store.ReadingGroup) []int64 {
	ids := make([]int64, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}
