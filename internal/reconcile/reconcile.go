// Package reconcile applies edit buffers to the store. Each save
// action diffs the buffer against the persisted snapshot, applies the
// changeset inside one transaction in dependency order, and returns a
// fresh snapshot so the caller's state matches the store exactly.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/jisaku/kanjidb/internal/diff"
	"github.com/jisaku/kanjidb/internal/edit"
	"github.com/jisaku/kanjidb/internal/ident"
	"github.com/jisaku/kanjidb/internal/store"
)

// Reconciler runs save actions against one store.
type Reconciler struct {
	store  *store.Store
	logger *slog.Logger
}

// New returns a reconciler. A nil logger discards log output.
func New(s *store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{store: s, logger: logger}
}

// ForSession returns a reconciler whose log records carry the edit
// session's token, so every changeset one session produces can be
// correlated across save actions.
func (r *Reconciler) ForSession(s *ident.Session) *Reconciler {
	return &Reconciler{store: r.store, logger: r.logger.With("session", s.Token())}
}

// applyChangeset runs one collection's changeset in dependency order:
// deletes, creates, updates, then the reorder. record materializes an
// edit item into its stored form; id is zero for creates and order is
// negative for updates, where the store leaves ordering untouched.
func applyChangeset[R diff.Record, E diff.Item[R]](
	ctx context.Context,
	col *store.Collection[R],
	cs diff.Changeset[E],
	record func(item E, id int64, order int) R,
) ([]R, error) {
	for _, id := range cs.Deletes {
		if err := col.Delete(ctx, id); err != nil {
			return nil, err
		}
	}

	created := make([]R, 0, len(cs.Creates))
	for _, c := range cs.Creates {
		r, err := col.Create(ctx, record(c.Item, 0, c.DisplayOrder))
		if err != nil {
			return nil, err
		}
		created = append(created, r)
	}

	for _, u := range cs.Updates {
		if _, err := col.Update(ctx, u.ID, record(u.Item, u.ID, -1)); err != nil {
			return nil, err
		}
	}

	if cs.Reorder != nil {
		if err := col.Reorder(ctx, cs.Reorder); err != nil {
			return nil, err
		}
	}
	return created, nil
}

func (r *Reconciler) logChangeset(entity string, parentID int64, creates, updates, deletes int, reordered bool) {
	r.logger.Debug("changeset computed",
		"entity", entity,
		"parent", parentID,
		"creates", creates,
		"updates", updates,
		"deletes", deletes,
		"reordered", reordered)
}

// saveCollection reconciles one standalone collection transactionally
// and returns its fresh snapshot.
func saveCollection[R diff.Record, E diff.Item[R]](
	ctx context.Context,
	r *Reconciler,
	parentID int64,
	edited []E,
	col func(q *store.Queries) *store.Collection[R],
	entity string,
	record func(item E, id int64, order int) R,
) ([]R, error) {
	var snapshot []R
	err := r.store.InTransaction(ctx, func(q *store.Queries) error {
		c := col(q)
		persisted, err := c.ListByParent(ctx, parentID)
		if err != nil {
			return err
		}
		cs := diff.Compute(persisted, edited)
		r.logChangeset(entity, parentID, len(cs.Creates), len(cs.Updates), len(cs.Deletes), cs.Reorder != nil)
		if _, err := applyChangeset(ctx, c, cs, record); err != nil {
			return err
		}
		snapshot, err = c.ListByParent(ctx, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ReadingsSnapshot is the post-save state of a kanji's readings.
type ReadingsSnapshot struct {
	OnReadings  []store.OnReading
	KunReadings []store.KunReading
}

// SaveReadings reconciles both reading collections of one kanji in a
// single transaction.
func (r *Reconciler) SaveReadings(ctx context.Context, kanjiID int64, ons []edit.OnReading, kuns []edit.KunReading) (ReadingsSnapshot, error) {
	var snap ReadingsSnapshot
	err := r.store.InTransaction(ctx, func(q *store.Queries) error {
		onCol := q.OnReadings()
		persistedOns, err := onCol.ListByParent(ctx, kanjiID)
		if err != nil {
			return err
		}
		onCS := diff.Compute(persistedOns, ons)
		r.logChangeset("OnReading", kanjiID, len(onCS.Creates), len(onCS.Updates), len(onCS.Deletes), onCS.Reorder != nil)
		if _, err := applyChangeset(ctx, onCol, onCS, func(item edit.OnReading, id int64, order int) store.OnReading {
			return item.Record(id, kanjiID, order)
		}); err != nil {
			return err
		}

		kunCol := q.KunReadings()
		persistedKuns, err := kunCol.ListByParent(ctx, kanjiID)
		if err != nil {
			return err
		}
		kunCS := diff.Compute(persistedKuns, kuns)
		r.logChangeset("KunReading", kanjiID, len(kunCS.Creates), len(kunCS.Updates), len(kunCS.Deletes), kunCS.Reorder != nil)
		if _, err := applyChangeset(ctx, kunCol, kunCS, func(item edit.KunReading, id int64, order int) store.KunReading {
			return item.Record(id, kanjiID, order)
		}); err != nil {
			return err
		}

		if snap.OnReadings, err = onCol.ListByParent(ctx, kanjiID); err != nil {
			return err
		}
		snap.KunReadings, err = kunCol.ListByParent(ctx, kanjiID)
		return err
	})
	if err != nil {
		return ReadingsSnapshot{}, err
	}
	return snap, nil
}

// SaveClassifications reconciles a kanji's classification assignments.
func (r *Reconciler) SaveClassifications(ctx context.Context, kanjiID int64, items []edit.Classification) ([]store.Classification, error) {
	return saveCollection(ctx, r, kanjiID, items,
		func(q *store.Queries) *store.Collection[store.Classification] { return q.Classifications() },
		"KanjiClassification",
		func(item edit.Classification, id int64, order int) store.Classification {
			return item.Record(id, kanjiID, order)
		})
}

// SaveOccurrences reconciles a kanji's component occurrences.
func (r *Reconciler) SaveOccurrences(ctx context.Context, kanjiID int64, items []edit.Occurrence) ([]store.Occurrence, error) {
	return saveCollection(ctx, r, kanjiID, items,
		func(q *store.Queries) *store.Collection[store.Occurrence] { return q.Occurrences() },
		"ComponentOccurrence",
		func(item edit.Occurrence, id int64, order int) store.Occurrence {
			return item.Record(id, kanjiID, order)
		})
}

// SaveComponentForms reconciles a component's form variants.
func (r *Reconciler) SaveComponentForms(ctx context.Context, componentID int64, items []edit.ComponentForm) ([]store.ComponentForm, error) {
	return saveCollection(ctx, r, componentID, items,
		func(q *store.Queries) *store.Collection[store.ComponentForm] { return q.ComponentForms() },
		"ComponentForm",
		func(item edit.ComponentForm, id int64, order int) store.ComponentForm {
			return item.Record(id, componentID, order)
		})
}

// SaveVocabularyKanji reconciles a vocabulary entry's kanji links.
func (r *Reconciler) SaveVocabularyKanji(ctx context.Context, vocabID int64, items []edit.VocabKanji) ([]store.VocabKanji, error) {
	return saveCollection(ctx, r, vocabID, items,
		func(q *store.Queries) *store.Collection[store.VocabKanji] { return q.VocabKanjiLinks() },
		"VocabKanji",
		func(item edit.VocabKanji, id int64, order int) store.VocabKanji {
			return item.Record(id, vocabID, order)
		})
}
