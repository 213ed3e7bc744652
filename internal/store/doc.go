// Package store provides durable storage for the kanji dictionary's
// parent-scoped ordered collections.
//
// Uses SQLite with WAL mode. The store is single-writer: all mutations
// for one save action happen sequentially, normally inside a single
// transaction opened by the batch reconciler.
//
// ARCHITECTURE:
//
// Every child collection (on-yomi readings, meanings, reading groups,
// group members, classifications, component occurrences, component
// forms, vocabulary links) is an instance of the same ordered-collection
// shape: rows scoped by one parent id with a display_order column that
// is dense (0..n-1) within each scope after a reorder. The generic
// Collection type implements the five primitives once; per-entity
// TableSpec values describe the tables.
//
// Ordering rules:
//   - ListByParent returns rows sorted by display_order ascending.
//   - Create without an explicit order appends at max(display_order)+1,
//     or 0 for an empty scope.
//   - Delete does not renumber survivors; gaps are permitted.
//   - Reorder assigns display_order = index for the given id sequence.
//
// Mutations signal a registered flush hook after success so an external
// scheduler can persist the database file lazily. The store never waits
// on the flush.
package store
