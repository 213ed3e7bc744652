package reconcile_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jisaku/kanjidb/internal/edit"
	"github.com/jisaku/kanjidb/internal/ident"
	"github.com/jisaku/kanjidb/internal/reconcile"
	"github.com/jisaku/kanjidb/internal/store"
)

func newFixture(t *testing.T) (*store.Store, *reconcile.Reconciler, store.Kanji) {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	k, err := s.Queries().CreateKanji(context.Background(), store.Kanji{Character: "日"})
	require.NoError(t, err)
	return s, reconcile.New(s, nil), k
}

func editedOns(persisted []store.OnReading) []edit.OnReading {
	out := make([]edit.OnReading, 0, len(persisted))
	for _, p := range persisted {
		out = append(out, edit.OnReading{
			ID: ident.Existing(p.ID), Reading: p.Reading, ReadingLevel: p.ReadingLevel,
		})
	}
	return out
}

func TestSaveLogsSessionToken(t *testing.T) {
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	k, err := s.Queries().CreateKanji(ctx, store.Kanji{Character: "火"})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	session := ident.NewSession()
	r := reconcile.New(s, logger).ForSession(session)

	_, err = r.SaveReadings(ctx, k.ID, []edit.OnReading{
		{ID: session.NextPlaceholder(), Reading: "カ", ReadingLevel: "小"},
	}, nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "session="+session.Token(),
		"changeset records must carry the session token")
}

func TestSaveReadingsCreatesInBufferOrder(t *testing.T) {
	_, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	ons := []edit.OnReading{
		{ID: session.NextPlaceholder(), Reading: "ニチ", ReadingLevel: "小"},
		{ID: session.NextPlaceholder(), Reading: "ジツ", ReadingLevel: "中"},
	}
	kuns := []edit.KunReading{
		{ID: session.NextPlaceholder(), Reading: "ひ", ReadingLevel: "小"},
	}

	snap, err := r.SaveReadings(ctx, k.ID, ons, kuns)
	require.NoError(t, err)

	require.Len(t, snap.OnReadings, 2)
	assert.Equal(t, "ニチ", snap.OnReadings[0].Reading)
	assert.Equal(t, 0, snap.OnReadings[0].DisplayOrder)
	assert.Equal(t, "ジツ", snap.OnReadings[1].Reading)
	assert.Equal(t, 1, snap.OnReadings[1].DisplayOrder)
	require.Len(t, snap.KunReadings, 1)
	assert.Positive(t, snap.KunReadings[0].ID)
}

func TestSaveReadingsUpdateDeleteReorder(t *testing.T) {
	_, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	snap, err := r.SaveReadings(ctx, k.ID, []edit.OnReading{
		{ID: session.NextPlaceholder(), Reading: "セイ", ReadingLevel: "小"},
		{ID: session.NextPlaceholder(), Reading: "ショウ", ReadingLevel: "小"},
		{ID: session.NextPlaceholder(), Reading: "ジョウ", ReadingLevel: "高"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, snap.OnReadings, 3)

	// Swap the first two, promote the second's level, drop the third.
	edited := []edit.OnReading{
		{ID: ident.Existing(snap.OnReadings[1].ID), Reading: "ショウ", ReadingLevel: "中"},
		{ID: ident.Existing(snap.OnReadings[0].ID), Reading: "セイ", ReadingLevel: "小"},
	}

	snap2, err := r.SaveReadings(ctx, k.ID, edited, nil)
	require.NoError(t, err)

	require.Len(t, snap2.OnReadings, 2)
	assert.Equal(t, "ショウ", snap2.OnReadings[0].Reading)
	assert.Equal(t, "中", snap2.OnReadings[0].ReadingLevel)
	assert.Equal(t, "セイ", snap2.OnReadings[1].Reading)
	for i, got := range snap2.OnReadings {
		assert.Equal(t, i, got.DisplayOrder)
	}
}

func TestSaveReadingsNoOpBufferTouchesNothing(t *testing.T) {
	_, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	snap, err := r.SaveReadings(ctx, k.ID, []edit.OnReading{
		{ID: session.NextPlaceholder(), Reading: "ニチ", ReadingLevel: "小"},
	}, nil)
	require.NoError(t, err)

	snap2, err := r.SaveReadings(ctx, k.ID, editedOns(snap.OnReadings), nil)
	require.NoError(t, err)

	assert.Equal(t, snap.OnReadings, snap2.OnReadings)
	assert.Equal(t, snap.OnReadings[0].UpdatedAt, snap2.OnReadings[0].UpdatedAt)
}

func TestSaveMeaningsResolvesPlaceholderReferences(t *testing.T) {
	s, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	meaningRef := session.NextPlaceholder()
	groupRef := session.NextPlaceholder()

	snap, err := r.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: []edit.Meaning{
			{ID: meaningRef, MeaningText: "sun"},
		},
		Groups: []edit.ReadingGroup{
			{ID: groupRef, ReadingText: "ニチ"},
		},
		Members: []edit.GroupMember{
			{ID: session.NextPlaceholder(), Group: groupRef, Meaning: meaningRef},
		},
	})
	require.NoError(t, err)

	require.Len(t, snap.Meanings, 1)
	require.Len(t, snap.Groups, 1)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, snap.Groups[0].ID, snap.Members[0].ReadingGroupID)
	assert.Equal(t, snap.Meanings[0].ID, snap.Members[0].MeaningID)

	// Nothing in the store carries a placeholder value.
	var bad int
	err = s.DB().QueryRow(
		"SELECT COUNT(*) FROM kanji_meaning_group_members WHERE reading_group_id <= 0 OR meaning_id <= 0",
	).Scan(&bad)
	require.NoError(t, err)
	assert.Zero(t, bad)
}

func TestSaveMeaningsDropsOrphanedMember(t *testing.T) {
	_, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	meaningRef := session.NextPlaceholder()
	danglingGroup := session.NextPlaceholder() // no matching group in the buffer

	snap, err := r.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: []edit.Meaning{{ID: meaningRef, MeaningText: "sun"}},
		Members: []edit.GroupMember{
			{ID: session.NextPlaceholder(), Group: danglingGroup, Meaning: meaningRef},
		},
	})
	require.NoError(t, err, "orphaned link drops silently, it is not an error")

	assert.Len(t, snap.Meanings, 1)
	assert.Empty(t, snap.Members)
}

func TestSaveMeaningsDropsMemberOfDeletedGroup(t *testing.T) {
	_, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	mRef, gRef := session.NextPlaceholder(), session.NextPlaceholder()
	snap, err := r.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: []edit.Meaning{{ID: mRef, MeaningText: "sun"}},
		Groups:   []edit.ReadingGroup{{ID: gRef, ReadingText: "ニチ"}},
		Members:  []edit.GroupMember{{ID: session.NextPlaceholder(), Group: gRef, Meaning: mRef}},
	})
	require.NoError(t, err)

	// Second save deletes the group but a stale member still points at it.
	snap2, err := r.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: []edit.Meaning{{ID: ident.Existing(snap.Meanings[0].ID), MeaningText: "sun"}},
		Groups:   nil,
		Members: []edit.GroupMember{{
			ID:      ident.Existing(snap.Members[0].ID),
			Group:   ident.Existing(snap.Groups[0].ID),
			Meaning: ident.Existing(snap.Meanings[0].ID),
		}},
	})
	require.NoError(t, err)

	assert.Empty(t, snap2.Groups)
	assert.Empty(t, snap2.Members)
	assert.Len(t, snap2.Meanings, 1)
}

func TestSaveMeaningsGroupingDisabledWipesGroups(t *testing.T) {
	_, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	mRef, gRef := session.NextPlaceholder(), session.NextPlaceholder()
	snap, err := r.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: []edit.Meaning{{ID: mRef, MeaningText: "sun"}},
		Groups:   []edit.ReadingGroup{{ID: gRef, ReadingText: "ニチ"}},
		Members:  []edit.GroupMember{{ID: session.NextPlaceholder(), Group: gRef, Meaning: mRef}},
	})
	require.NoError(t, err)
	require.Len(t, snap.Groups, 1)

	snap2, err := r.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: []edit.Meaning{{ID: ident.Existing(snap.Meanings[0].ID), MeaningText: "sun"}},
		Groups:   []edit.ReadingGroup{{ID: ident.Existing(snap.Groups[0].ID), ReadingText: "ニチ"}},
		Members: []edit.GroupMember{{
			ID:      ident.Existing(snap.Members[0].ID),
			Group:   ident.Existing(snap.Groups[0].ID),
			Meaning: ident.Existing(snap.Meanings[0].ID),
		}},
		GroupingDisabled: true,
	})
	require.NoError(t, err)

	assert.Len(t, snap2.Meanings, 1)
	assert.Empty(t, snap2.Groups)
	assert.Empty(t, snap2.Members)
}

func TestSaveMeaningsMembersDensePerGroup(t *testing.T) {
	_, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	m1, m2, m3 := session.NextPlaceholder(), session.NextPlaceholder(), session.NextPlaceholder()
	g1, g2 := session.NextPlaceholder(), session.NextPlaceholder()

	snap, err := r.SaveMeanings(ctx, k.ID, edit.MeaningsSave{
		Meanings: []edit.Meaning{
			{ID: m1, MeaningText: "sun"},
			{ID: m2, MeaningText: "day"},
			{ID: m3, MeaningText: "Japan"},
		},
		Groups: []edit.ReadingGroup{
			{ID: g1, ReadingText: "ニチ"},
			{ID: g2, ReadingText: "ジツ"},
		},
		Members: []edit.GroupMember{
			{ID: session.NextPlaceholder(), Group: g1, Meaning: m1},
			{ID: session.NextPlaceholder(), Group: g2, Meaning: m2},
			{ID: session.NextPlaceholder(), Group: g1, Meaning: m3},
		},
	})
	require.NoError(t, err)

	perGroup := map[int64][]int{}
	for _, m := range snap.Members {
		perGroup[m.ReadingGroupID] = append(perGroup[m.ReadingGroupID], m.DisplayOrder)
	}
	require.Len(t, perGroup, 2)
	for groupID, orders := range perGroup {
		for i, order := range orders {
			assert.Equal(t, i, order, "group %d order dense", groupID)
		}
	}
}

func TestSaveOccurrencesRollsBackOnFailure(t *testing.T) {
	s, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	c, err := s.Queries().CreateComponent(ctx, store.Component{Character: "⻌"})
	require.NoError(t, err)

	_, err = r.SaveOccurrences(ctx, k.ID, []edit.Occurrence{
		{ID: session.NextPlaceholder(), ComponentID: c.ID},
		{ID: session.NextPlaceholder(), ComponentID: 9999}, // unknown component
	})
	require.Error(t, err)

	// First create rolled back with the failure.
	got, err := s.Queries().Occurrences().ListByParent(ctx, k.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveClassificationsReplacesAssignments(t *testing.T) {
	s, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	t1, err := s.Queries().CreateClassificationType(ctx, store.ClassificationType{TypeName: "pictograph"})
	require.NoError(t, err)
	t2, err := s.Queries().CreateClassificationType(ctx, store.ClassificationType{TypeName: "phono-semantic"})
	require.NoError(t, err)

	snap, err := r.SaveClassifications(ctx, k.ID, []edit.Classification{
		{ID: session.NextPlaceholder(), ClassificationTypeID: t1.ID},
	})
	require.NoError(t, err)
	require.Len(t, snap, 1)

	snap2, err := r.SaveClassifications(ctx, k.ID, []edit.Classification{
		{ID: session.NextPlaceholder(), ClassificationTypeID: t2.ID},
	})
	require.NoError(t, err)

	require.Len(t, snap2, 1)
	assert.Equal(t, t2.ID, snap2[0].ClassificationTypeID)
	assert.Equal(t, 0, snap2[0].DisplayOrder)
}

func TestSaveVocabularyKanjiUpdatesNotes(t *testing.T) {
	s, r, k := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	v, err := s.Queries().CreateVocabulary(ctx, store.Vocabulary{Word: "日本"})
	require.NoError(t, err)

	snap, err := r.SaveVocabularyKanji(ctx, v.ID, []edit.VocabKanji{
		{ID: session.NextPlaceholder(), KanjiID: k.ID},
	})
	require.NoError(t, err)
	require.Len(t, snap, 1)

	snap2, err := r.SaveVocabularyKanji(ctx, v.ID, []edit.VocabKanji{
		{ID: ident.Existing(snap[0].ID), KanjiID: k.ID, AnalysisNotes: "first character"},
	})
	require.NoError(t, err)

	require.Len(t, snap2, 1)
	assert.Equal(t, snap[0].ID, snap2[0].ID, "identity stable across update")
	assert.Equal(t, "first character", snap2[0].AnalysisNotes)
}

func TestSaveComponentFormsRoundTrip(t *testing.T) {
	s, r, _ := newFixture(t)
	ctx := context.Background()
	session := ident.NewSession()

	c, err := s.Queries().CreateComponent(ctx, store.Component{Character: "水"})
	require.NoError(t, err)

	strokes := int64(3)
	snap, err := r.SaveComponentForms(ctx, c.ID, []edit.ComponentForm{
		{ID: session.NextPlaceholder(), FormCharacter: "氵", FormName: "さんずい", StrokeCount: &strokes},
		{ID: session.NextPlaceholder(), FormCharacter: "氺"},
	})
	require.NoError(t, err)

	require.Len(t, snap, 2)
	assert.Equal(t, "氵", snap[0].FormCharacter)
	require.NotNil(t, snap[0].StrokeCount)
	assert.Equal(t, int64(3), *snap[0].StrokeCount)
	assert.Nil(t, snap[1].StrokeCount)
}
