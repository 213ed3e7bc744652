// Package resolve maps the placeholder identities used during editing
// to the real ids the store assigned at creation time, so link records
// created in the same save can reference freshly created owners.
package resolve

import (
	"fmt"

	"github.com/jisaku/kanjidb/internal/diff"
	"github.com/jisaku/kanjidb/internal/ident"
)

// Table accumulates placeholder bindings for one save.
type Table struct {
	bySeq map[int64]int64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{bySeq: make(map[int64]int64)}
}

// Bind records that a placeholder resolved to realID. Binding a
// non-placeholder identity or rebinding a sequence number is a caller
// bug and errors.
func (t *Table) Bind(id ident.Identity, realID int64) error {
	seq, ok := id.Placeholder()
	if !ok {
		return fmt.Errorf("cannot bind non-placeholder identity %s", id)
	}
	if prev, dup := t.bySeq[seq]; dup {
		return fmt.Errorf("placeholder %s already bound to %d", id, prev)
	}
	t.bySeq[seq] = realID
	return nil
}

// Absorb merges bindings from another table built for a sibling
// collection in the same save. Sequence numbers are session-unique, so
// a collision is a caller bug.
func (t *Table) Absorb(other *Table) error {
	for seq, realID := range other.bySeq {
		if prev, dup := t.bySeq[seq]; dup {
			return fmt.Errorf("placeholder ident(new#%d) already bound to %d", seq, prev)
		}
		t.bySeq[seq] = realID
	}
	return nil
}

// Resolve maps an identity to a real id. Existing identities pass
// through unchanged; placeholders resolve through the bindings. The
// second return is false for unbound placeholders and invalid
// identities, which callers treat as an orphaned reference.
func (t *Table) Resolve(id ident.Identity) (int64, bool) {
	if real, ok := id.Existing(); ok {
		return real, true
	}
	seq, ok := id.Placeholder()
	if !ok {
		return 0, false
	}
	real, bound := t.bySeq[seq]
	return real, bound
}

// FromCreates builds a table from the ordered pending creates of one
// collection and the records the store returned for them, one-to-one
// in the same order.
func FromCreates[R diff.Record, E diff.Item[R]](creates []diff.Create[E], created []R) (*Table, error) {
	if len(creates) != len(created) {
		return nil, fmt.Errorf("creates and created records disagree: %d vs %d", len(creates), len(created))
	}
	t := NewTable()
	for i, c := range creates {
		if err := t.Bind(c.Item.ItemID(), created[i].RecordID()); err != nil {
			return nil, err
		}
	}
	return t, nil
}
