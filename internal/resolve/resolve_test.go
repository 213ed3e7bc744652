package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jisaku/kanjidb/internal/diff"
	"github.com/jisaku/kanjidb/internal/edit"
	"github.com/jisaku/kanjidb/internal/ident"
	"github.com/jisaku/kanjidb/internal/resolve"
	"github.com/jisaku/kanjidb/internal/store"
)

func TestResolveExistingPassesThrough(t *testing.T) {
	table := resolve.NewTable()

	id, ok := table.Resolve(ident.Existing(42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestResolveBoundPlaceholder(t *testing.T) {
	table := resolve.NewTable()
	require.NoError(t, table.Bind(ident.NewPlaceholder(3), 17))

	id, ok := table.Resolve(ident.NewPlaceholder(3))
	assert.True(t, ok)
	assert.Equal(t, int64(17), id)
}

func TestResolveUnboundPlaceholderFails(t *testing.T) {
	table := resolve.NewTable()

	_, ok := table.Resolve(ident.NewPlaceholder(9))
	assert.False(t, ok)
}

func TestResolveInvalidIdentityFails(t *testing.T) {
	table := resolve.NewTable()

	_, ok := table.Resolve(ident.Identity{})
	assert.False(t, ok)
}

func TestBindRejectsExistingIdentity(t *testing.T) {
	table := resolve.NewTable()
	assert.Error(t, table.Bind(ident.Existing(5), 6))
}

func TestBindRejectsRebinding(t *testing.T) {
	table := resolve.NewTable()
	require.NoError(t, table.Bind(ident.NewPlaceholder(1), 10))
	assert.Error(t, table.Bind(ident.NewPlaceholder(1), 11))
}

func TestFromCreatesBindsInOrder(t *testing.T) {
	creates := []diff.Create[edit.ReadingGroup]{
		{Item: edit.ReadingGroup{ID: ident.NewPlaceholder(1), ReadingText: "ニチ"}, DisplayOrder: 0},
		{Item: edit.ReadingGroup{ID: ident.NewPlaceholder(2), ReadingText: "ジツ"}, DisplayOrder: 1},
	}
	created := []store.ReadingGroup{
		{ID: 101, ReadingText: "ニチ"},
		{ID: 102, ReadingText: "ジツ"},
	}

	table, err := resolve.FromCreates(creates, created)
	require.NoError(t, err)

	id, ok := table.Resolve(ident.NewPlaceholder(1))
	assert.True(t, ok)
	assert.Equal(t, int64(101), id)
	id, ok = table.Resolve(ident.NewPlaceholder(2))
	assert.True(t, ok)
	assert.Equal(t, int64(102), id)
}

func TestFromCreatesRejectsLengthMismatch(t *testing.T) {
	creates := []diff.Create[edit.ReadingGroup]{
		{Item: edit.ReadingGroup{ID: ident.NewPlaceholder(1)}},
	}

	_, err := resolve.FromCreates(creates, []store.ReadingGroup{})
	assert.Error(t, err)
}

func TestAbsorbMergesDistinctSequences(t *testing.T) {
	groups := resolve.NewTable()
	require.NoError(t, groups.Bind(ident.NewPlaceholder(1), 101))
	meanings := resolve.NewTable()
	require.NoError(t, meanings.Bind(ident.NewPlaceholder(2), 201))

	require.NoError(t, groups.Absorb(meanings))

	id, ok := groups.Resolve(ident.NewPlaceholder(2))
	assert.True(t, ok)
	assert.Equal(t, int64(201), id)
}

func TestAbsorbRejectsCollision(t *testing.T) {
	a := resolve.NewTable()
	require.NoError(t, a.Bind(ident.NewPlaceholder(1), 101))
	b := resolve.NewTable()
	require.NoError(t, b.Bind(ident.NewPlaceholder(1), 999))

	assert.Error(t, a.Absorb(b))
}
