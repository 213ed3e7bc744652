// Package diff computes the changeset that transforms a persisted
// snapshot of an ordered collection into the state implied by an edit
// buffer. Compute is total and pure: it never touches storage, and the
// same inputs always yield the same changeset.
package diff

import (
	"slices"

	"github.com/jisaku/kanjidb/internal/ident"
)

// Record is a persisted row of an ordered collection.
type Record interface {
	RecordID() int64
}

// Item is one entry of an edit buffer. The buffer holds entries in the
// order the user wants them to end up in; entries flagged deleted stay
// in the buffer until save.
type Item[R Record] interface {
	// ItemID is the item's identity: Existing for persisted rows,
	// Placeholder for rows pending creation.
	ItemID() ident.Identity
	// Deleted reports whether the item is marked for deletion.
	Deleted() bool
	// Unchanged reports whether the item's mutable fields match the
	// persisted record. Implementations own field normalization
	// (optional-text emptiness, NFC).
	Unchanged(persisted R) bool
}

// Create is a pending insert with its zero-based display order in the
// final edited sequence.
type Create[E any] struct {
	Item         E
	DisplayOrder int
}

// Update is a pending field rewrite of an existing record.
type Update[E any] struct {
	ID   int64
	Item E
}

// Changeset is the minimal set of operations for one collection.
// Reorder is nil when the surviving records already sit in the edited
// order; otherwise it lists their ids in final order. Freshly created
// records are never part of Reorder, their position is fixed at
// creation time through Create.DisplayOrder.
type Changeset[E any] struct {
	Creates []Create[E]
	Updates []Update[E]
	Deletes []int64
	Reorder []int64
}

// Empty reports whether applying the changeset would be a no-op.
func (c Changeset[E]) Empty() bool {
	return len(c.Creates) == 0 && len(c.Updates) == 0 && len(c.Deletes) == 0 && c.Reorder == nil
}

// Compute diffs an edit buffer against the persisted snapshot it was
// loaded from.
//
// An existing id in the buffer that does not appear in the snapshot is
// a phantom: it produces no update but still occupies a position in
// the final sequence. Persisted records missing from the buffer, and
// buffer entries marked deleted, are scheduled for deletion.
func Compute[R Record, E Item[R]](persisted []R, edited []E) Changeset[E] {
	byID := make(map[int64]R, len(persisted))
	for _, r := range persisted {
		byID[r.RecordID()] = r
	}

	cs := Changeset[E]{
		Creates: []Create[E]{},
		Updates: []Update[E]{},
		Deletes: []int64{},
	}
	survivors := make(map[int64]bool)
	newOrder := []int64{}

	pos := 0
	for _, item := range edited {
		if item.Deleted() {
			continue
		}
		id := item.ItemID()
		if !id.IsValid() {
			continue
		}
		if id.IsPlaceholder() {
			cs.Creates = append(cs.Creates, Create[E]{Item: item, DisplayOrder: pos})
			pos++
			continue
		}
		real, _ := id.Existing()
		record, known := byID[real]
		if !known {
			pos++
			continue
		}
		survivors[real] = true
		newOrder = append(newOrder, real)
		if !item.Unchanged(record) {
			cs.Updates = append(cs.Updates, Update[E]{ID: real, Item: item})
		}
		pos++
	}

	oldOrder := make([]int64, 0, len(newOrder))
	for _, r := range persisted {
		id := r.RecordID()
		if survivors[id] {
			oldOrder = append(oldOrder, id)
		} else {
			cs.Deletes = append(cs.Deletes, id)
		}
	}

	if !slices.Equal(oldOrder, newOrder) {
		cs.Reorder = newOrder
	}
	return cs
}
