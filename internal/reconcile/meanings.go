package reconcile

import (
	"context"

	"github.com/jisaku/kanjidb/internal/diff"
	"github.com/jisaku/kanjidb/internal/edit"
	"github.com/jisaku/kanjidb/internal/resolve"
	"github.com/jisaku/kanjidb/internal/store"
)

// MeaningsSnapshot is the post-save state of a kanji's meanings tab.
type MeaningsSnapshot struct {
	Meanings []store.Meaning
	Groups   []store.ReadingGroup
	Members  []store.GroupMember
}

// SaveMeanings reconciles a kanji's meanings, reading groups, and
// group memberships in one transaction. Order within the transaction
// keeps references intact at every step: member links are deleted
// before the meanings and groups they point at, and recreated only
// after every new owner has a real id.
//
// Memberships are not diffed; the persisted assignment is replaced by
// the buffer's assignment wholesale. A member referencing an owner
// that no longer exists, or a placeholder that was never created, is
// dropped with a warning rather than failing the save.
func (r *Reconciler) SaveMeanings(ctx context.Context, kanjiID int64, in edit.MeaningsSave) (MeaningsSnapshot, error) {
	var snap MeaningsSnapshot
	err := r.store.InTransaction(ctx, func(q *store.Queries) error {
		meaningCol := q.Meanings()
		groupCol := q.ReadingGroups()
		memberCol := q.GroupMembers()

		persistedMeanings, err := meaningCol.ListByParent(ctx, kanjiID)
		if err != nil {
			return err
		}
		persistedGroups, err := groupCol.ListByParent(ctx, kanjiID)
		if err != nil {
			return err
		}
		persistedMembers, err := q.GroupMembersByKanji(ctx, kanjiID)
		if err != nil {
			return err
		}

		// Links go first, wholesale.
		for _, m := range persistedMembers {
			if err := memberCol.Delete(ctx, m.ID); err != nil {
				return err
			}
		}

		groupBuffer := in.Groups
		memberBuffer := in.Members
		if in.GroupingDisabled {
			groupBuffer = nil
			memberBuffer = nil
		}

		meaningCS := diff.Compute(persistedMeanings, in.Meanings)
		groupCS := diff.Compute(persistedGroups, groupBuffer)
		r.logChangeset("KanjiMeaning", kanjiID, len(meaningCS.Creates), len(meaningCS.Updates), len(meaningCS.Deletes), meaningCS.Reorder != nil)
		r.logChangeset("ReadingGroup", kanjiID, len(groupCS.Creates), len(groupCS.Updates), len(groupCS.Deletes), groupCS.Reorder != nil)

		createdMeanings, err := applyChangeset(ctx, meaningCol, meaningCS, func(item edit.Meaning, id int64, order int) store.Meaning {
			return item.Record(id, kanjiID, order)
		})
		if err != nil {
			return err
		}
		createdGroups, err := applyChangeset(ctx, groupCol, groupCS, func(item edit.ReadingGroup, id int64, order int) store.ReadingGroup {
			return item.Record(id, kanjiID, order)
		})
		if err != nil {
			return err
		}

		table, err := resolve.FromCreates(meaningCS.Creates, createdMeanings)
		if err != nil {
			return err
		}
		groupTable, err := resolve.FromCreates(groupCS.Creates, createdGroups)
		if err != nil {
			return err
		}
		if err := table.Absorb(groupTable); err != nil {
			return err
		}

		// Ids a member may legitimately reference after the owner pass.
		validGroups := make(map[int64]bool, len(createdGroups))
		validMeanings := make(map[int64]bool, len(createdMeanings))
		fresh, err := groupCol.ListByParent(ctx, kanjiID)
		if err != nil {
			return err
		}
		for _, g := range fresh {
			validGroups[g.ID] = true
		}
		snap.Meanings, err = meaningCol.ListByParent(ctx, kanjiID)
		if err != nil {
			return err
		}
		for _, m := range snap.Meanings {
			validMeanings[m.ID] = true
		}
		snap.Groups = fresh

		// Recreate memberships in buffer order, densely per group.
		nextOrder := make(map[int64]int)
		for _, m := range memberBuffer {
			if m.Delete {
				continue
			}
			groupID, ok := table.Resolve(m.Group)
			if !ok || !validGroups[groupID] {
				r.logger.Warn("dropping orphaned group member",
					"kanji", kanjiID, "group", m.Group.String(), "meaning", m.Meaning.String())
				continue
			}
			meaningID, ok := table.Resolve(m.Meaning)
			if !ok || !validMeanings[meaningID] {
				r.logger.Warn("dropping orphaned group member",
					"kanji", kanjiID, "group", m.Group.String(), "meaning", m.Meaning.String())
				continue
			}
			order := nextOrder[groupID]
			nextOrder[groupID] = order + 1
			if _, err := memberCol.Create(ctx, m.Record(0, groupID, meaningID, order)); err != nil {
				return err
			}
		}

		snap.Members, err = q.GroupMembersByKanji(ctx, kanjiID)
		return err
	})
	if err != nil {
		return MeaningsSnapshot{}, err
	}
	return snap, nil
}
