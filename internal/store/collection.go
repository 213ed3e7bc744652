package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RowScanner abstracts sql.Row and sql.Rows for TableSpec scan funcs.
type RowScanner interface {
	Scan(dest ...any) error
}

// TableSpec describes one ordered child table so the generic Collection
// can operate on it. SelectColumns, ScanRow, BindInsert and BindUpdate
// must agree on column order.
type TableSpec[R any] struct {
	// Entity is the name used in error messages ("KanjiMeaning").
	Entity string

	// Table is the SQL table name.
	Table string

	// ParentColumn is the column holding the parent scope id.
	ParentColumn string

	// SelectColumns is the full column list, in ScanRow order.
	SelectColumns []string

	// InsertColumns are the non-parent, non-order columns written at
	// create time. Link reference columns appear here but not in
	// UpdateColumns: references are fixed for the life of the row.
	InsertColumns []string

	// UpdateColumns are the mutable columns. Empty for pure link tables,
	// whose Update is a no-op returning the current record.
	UpdateColumns []string

	// HasTimestamps reports whether the table carries created_at /
	// updated_at columns maintained on write.
	HasTimestamps bool

	ScanRow    func(sc RowScanner) (R, error)
	BindInsert func(r R) []any
	BindUpdate func(r R) []any
	ID         func(r R) int64
	Parent     func(r R) int64
	Order      func(r R) int
}

// Collection implements the ordered-store primitives for one table.
// It is bound to either the database or an open transaction.
type Collection[R any] struct {
	q      querier
	notify func()
	spec   TableSpec[R]
}

func (c *Collection[R]) signal() {
	if c.notify != nil {
		c.notify()
	}
}

func (c *Collection[R]) selectClause() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(c.spec.SelectColumns, ", "), c.spec.Table)
}

// GetByID retrieves a single record. Returns NotFoundError if absent.
func (c *Collection[R]) GetByID(ctx context.Context, id int64) (R, error) {
	var zero R
	row := c.q.QueryRowContext(ctx, c.selectClause()+" WHERE id = ?", id)
	r, err := c.spec.ScanRow(row)
	if err == sql.ErrNoRows {
		return zero, &NotFoundError{Entity: c.spec.Entity, ID: id}
	}
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", c.spec.Entity, err)
	}
	return r, nil
}

// ListByParent returns the records of one parent scope ordered by
// display_order ascending. An empty scope yields an empty slice, never
// an error.
func (c *Collection[R]) ListByParent(ctx context.Context, parentID int64) ([]R, error) {
	stmt := fmt.Sprintf("%s WHERE %s = ? ORDER BY display_order ASC, id ASC",
		c.selectClause(), c.spec.ParentColumn)
	rows, err := c.q.QueryContext(ctx, stmt, parentID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.spec.Entity, err)
	}
	defer rows.Close()

	records := []R{}
	for rows.Next() {
		r, err := c.spec.ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.spec.Entity, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.spec.Entity, err)
	}

	return records, nil
}

// Create inserts a record and returns it fully materialized, including
// the assigned id. A negative display order means "append": the record
// gets max(display_order)+1 within its scope, or 0 for an empty scope.
func (c *Collection[R]) Create(ctx context.Context, r R) (R, error) {
	var zero R

	order := c.spec.Order(r)
	if order < 0 {
		var maxOrder int
		stmt := fmt.Sprintf("SELECT COALESCE(MAX(display_order), -1) FROM %s WHERE %s = ?",
			c.spec.Table, c.spec.ParentColumn)
		if err := c.q.QueryRowContext(ctx, stmt, c.spec.Parent(r)).Scan(&maxOrder); err != nil {
			return zero, fmt.Errorf("create %s: max order: %w", c.spec.Entity, err)
		}
		order = maxOrder + 1
	}

	cols := append([]string{c.spec.ParentColumn}, c.spec.InsertColumns...)
	cols = append(cols, "display_order")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	args := append([]any{c.spec.Parent(r)}, c.spec.BindInsert(r)...)
	args = append(args, order)

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.spec.Table, strings.Join(cols, ", "), marks)
	res, err := c.q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return zero, fmt.Errorf("create %s: %w", c.spec.Entity, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return zero, fmt.Errorf("create %s: last insert id: %w", c.spec.Entity, err)
	}

	created, err := c.GetByID(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("create %s: read back: %w", c.spec.Entity, err)
	}

	c.signal()
	return created, nil
}

// Update rewrites the mutable columns of an existing record and returns
// the updated row. display_order is never touched here. Returns
// NotFoundError for an unknown id. Collections without mutable columns
// return the current record unchanged (not an error).
func (c *Collection[R]) Update(ctx context.Context, id int64, r R) (R, error) {
	var zero R

	current, err := c.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}

	if len(c.spec.UpdateColumns) == 0 {
		return current, nil
	}

	sets := make([]string, 0, len(c.spec.UpdateColumns)+1)
	for _, col := range c.spec.UpdateColumns {
		sets = append(sets, col+" = ?")
	}
	if c.spec.HasTimestamps {
		sets = append(sets, "updated_at = datetime('now')")
	}

	args := append(c.spec.BindUpdate(r), id)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
		c.spec.Table, strings.Join(sets, ", "))
	if _, err := c.q.ExecContext(ctx, stmt, args...); err != nil {
		return zero, fmt.Errorf("update %s: %w", c.spec.Entity, err)
	}

	updated, err := c.GetByID(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("update %s: read back: %w", c.spec.Entity, err)
	}

	c.signal()
	return updated, nil
}

// Delete removes a record. Returns NotFoundError for an unknown id:
// callers must only delete ids known to exist. Surviving siblings keep
// their display_order; gaps are permitted until the next reorder.
func (c *Collection[R]) Delete(ctx context.Context, id int64) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.spec.Table)
	res, err := c.q.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.spec.Entity, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: rows affected: %w", c.spec.Entity, err)
	}
	if n == 0 {
		return &NotFoundError{Entity: c.spec.Entity, ID: id}
	}

	c.signal()
	return nil
}

// Reorder assigns display_order = index for each id in the sequence,
// as one logical batch.
//
// Validation: ids must be distinct, must exist, and must all belong to
// one parent scope; violations return ReorderError. The sequence is
// deliberately not required to cover every scope member - the batch
// reconciler reorders surviving records only, while freshly created
// records keep the order assigned at creation.
func (c *Collection[R]) Reorder(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if err := c.validateReorder(ctx, ids); err != nil {
		return err
	}

	stmt := fmt.Sprintf("UPDATE %s SET display_order = ? WHERE id = ?", c.spec.Table)
	for index, id := range ids {
		if _, err := c.q.ExecContext(ctx, stmt, index, id); err != nil {
			return fmt.Errorf("reorder %s: %w", c.spec.Entity, err)
		}
	}

	c.signal()
	return nil
}

func (c *Collection[R]) validateReorder(ctx context.Context, ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return &ReorderError{Code: ReorderDuplicateID, Entity: c.spec.Entity, ID: id}
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	stmt := fmt.Sprintf("SELECT id, %s FROM %s WHERE id IN (%s)",
		c.spec.ParentColumn, c.spec.Table, marks)
	rows, err := c.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reorder %s: validate: %w", c.spec.Entity, err)
	}
	defer rows.Close()

	parents := make(map[int64]int64, len(ids))
	for rows.Next() {
		var id, parent int64
		if err := rows.Scan(&id, &parent); err != nil {
			return fmt.Errorf("reorder %s: validate: %w", c.spec.Entity, err)
		}
		parents[id] = parent
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reorder %s: validate: %w", c.spec.Entity, err)
	}

	var scope int64
	for i, id := range ids {
		parent, ok := parents[id]
		if !ok {
			return &ReorderError{Code: ReorderUnknownID, Entity: c.spec.Entity, ID: id}
		}
		if i == 0 {
			scope = parent
			continue
		}
		if parent != scope {
			return &ReorderError{Code: ReorderScopeMismatch, Entity: c.spec.Entity, ID: id}
		}
	}

	return nil
}
