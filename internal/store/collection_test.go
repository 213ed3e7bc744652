package store

import (
	"context"
	"testing"
)

func seedKanji(t *testing.T, s *Store, character string) Kanji {
	t.Helper()
	k, err := s.Queries().CreateKanji(context.Background(), Kanji{Character: character})
	if err != nil {
		t.Fatalf("seed kanji %q: %v", character, err)
	}
	return k
}

func seedReading(t *testing.T, s *Store, kanjiID int64, reading string) OnReading {
	t.Helper()
	r, err := s.Queries().OnReadings().Create(context.Background(), OnReading{
		KanjiID: kanjiID, Reading: reading, ReadingLevel: "小", DisplayOrder: -1,
	})
	if err != nil {
		t.Fatalf("seed reading %q: %v", reading, err)
	}
	return r
}

func TestCreateAppendsToScope(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "生")

	first := seedReading(t, s, k.ID, "セイ")
	second := seedReading(t, s, k.ID, "ショウ")

	if first.DisplayOrder != 0 {
		t.Errorf("first DisplayOrder = %d, want 0", first.DisplayOrder)
	}
	if second.DisplayOrder != 1 {
		t.Errorf("second DisplayOrder = %d, want 1", second.DisplayOrder)
	}
}

func TestCreateAppendIsPerScope(t *testing.T) {
	s := newTestStore(t)
	a := seedKanji(t, s, "山")
	b := seedKanji(t, s, "川")

	seedReading(t, s, a.ID, "サン")
	inB := seedReading(t, s, b.ID, "セン")

	if inB.DisplayOrder != 0 {
		t.Errorf("DisplayOrder in fresh scope = %d, want 0", inB.DisplayOrder)
	}
}

func TestCreateWithExplicitOrder(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "雨")
	ctx := context.Background()

	r, err := s.Queries().OnReadings().Create(ctx, OnReading{
		KanjiID: k.ID, Reading: "ウ", ReadingLevel: "小", DisplayOrder: 5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.DisplayOrder != 5 {
		t.Errorf("DisplayOrder = %d, want 5", r.DisplayOrder)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Queries().OnReadings().GetByID(context.Background(), 42)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestListByParentOrdering(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "金")
	ctx := context.Background()

	// Insert out of order; the list must come back sorted.
	readings := s.Queries().OnReadings()
	if _, err := readings.Create(ctx, OnReading{KanjiID: k.ID, Reading: "コン", ReadingLevel: "中", DisplayOrder: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := readings.Create(ctx, OnReading{KanjiID: k.ID, Reading: "キン", ReadingLevel: "小", DisplayOrder: 0}); err != nil {
		t.Fatal(err)
	}

	got, err := readings.ListByParent(ctx, k.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Reading != "キン" || got[1].Reading != "コン" {
		t.Errorf("order = [%s %s], want [キン コン]", got[0].Reading, got[1].Reading)
	}
}

func TestListByParentEmptyScope(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "土")

	got, err := s.Queries().OnReadings().ListByParent(context.Background(), k.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil {
		t.Error("empty scope returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestUpdateRewritesMutableFields(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "行")
	ctx := context.Background()

	r := seedReading(t, s, k.ID, "コウ")
	r.Reading = "ギョウ"
	r.ReadingLevel = "中"

	updated, err := s.Queries().OnReadings().Update(ctx, r.ID, r)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Reading != "ギョウ" || updated.ReadingLevel != "中" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.DisplayOrder != r.DisplayOrder {
		t.Errorf("update changed DisplayOrder: %d -> %d", r.DisplayOrder, updated.DisplayOrder)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Queries().OnReadings().Update(context.Background(), 9, OnReading{Reading: "x"})
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestUpdateLinkRecordIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	k := seedKanji(t, s, "明")

	m, err := s.Queries().Meanings().Create(ctx, Meaning{KanjiID: k.ID, MeaningText: "bright", DisplayOrder: -1})
	if err != nil {
		t.Fatal(err)
	}
	g, err := s.Queries().ReadingGroups().Create(ctx, ReadingGroup{KanjiID: k.ID, ReadingText: "メイ", DisplayOrder: -1})
	if err != nil {
		t.Fatal(err)
	}
	gm, err := s.Queries().GroupMembers().Create(ctx, GroupMember{ReadingGroupID: g.ID, MeaningID: m.ID, DisplayOrder: -1})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Queries().GroupMembers().Update(ctx, gm.ID, gm)
	if err != nil {
		t.Fatalf("link update: %v", err)
	}
	if got != gm {
		t.Errorf("link update changed record: %+v != %+v", got, gm)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "見")
	r := seedReading(t, s, k.ID, "ケン")
	ctx := context.Background()

	if err := s.Queries().OnReadings().Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := s.Queries().OnReadings().GetByID(ctx, r.ID)
	if !IsNotFound(err) {
		t.Errorf("deleted row still found, err = %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.Queries().OnReadings().Delete(context.Background(), 1234)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDeleteLeavesGap(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "白")
	ctx := context.Background()

	seedReading(t, s, k.ID, "ハク")
	mid := seedReading(t, s, k.ID, "ビャク")
	seedReading(t, s, k.ID, "シロ")

	if err := s.Queries().OnReadings().Delete(ctx, mid.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.Queries().OnReadings().ListByParent(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Delete does not renumber survivors.
	if got[0].DisplayOrder != 0 || got[1].DisplayOrder != 2 {
		t.Errorf("orders = [%d %d], want [0 2]", got[0].DisplayOrder, got[1].DisplayOrder)
	}
}

func TestReorderAssignsDenseOrders(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "大")
	ctx := context.Background()

	a := seedReading(t, s, k.ID, "ダイ")
	b := seedReading(t, s, k.ID, "タイ")
	c := seedReading(t, s, k.ID, "オオ")

	if err := s.Queries().OnReadings().Reorder(ctx, []int64{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	got, err := s.Queries().OnReadings().ListByParent(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{c.ID, a.ID, b.ID}
	for i, r := range got {
		if r.ID != want[i] {
			t.Errorf("position %d: id = %d, want %d", i, r.ID, want[i])
		}
		if r.DisplayOrder != i {
			t.Errorf("position %d: DisplayOrder = %d, want %d", i, r.DisplayOrder, i)
		}
	}
}

func TestReorderIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "水")
	ctx := context.Background()

	a := seedReading(t, s, k.ID, "スイ")
	b := seedReading(t, s, k.ID, "ミズ")
	c := seedReading(t, s, k.ID, "ミ")

	ids := []int64{b.ID, c.ID, a.ID}
	readings := s.Queries().OnReadings()
	if err := readings.Reorder(ctx, ids); err != nil {
		t.Fatalf("first reorder: %v", err)
	}
	once, err := readings.ListByParent(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := readings.Reorder(ctx, ids); err != nil {
		t.Fatalf("second reorder: %v", err)
	}
	twice, err := readings.ListByParent(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(twice) != len(once) {
		t.Fatalf("row count changed: %d, want %d", len(twice), len(once))
	}
	for i := range once {
		if twice[i].ID != once[i].ID || twice[i].DisplayOrder != once[i].DisplayOrder {
			t.Errorf("position %d: got (id %d, order %d), want (id %d, order %d)",
				i, twice[i].ID, twice[i].DisplayOrder, once[i].ID, once[i].DisplayOrder)
		}
	}
}

func TestReorderEmptyIsNoOp(t *testing.T) {
	s := newTestStore(t)

	if err := s.Queries().OnReadings().Reorder(context.Background(), nil); err != nil {
		t.Fatalf("empty reorder: %v", err)
	}
}

func TestReorderRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "小")
	a := seedReading(t, s, k.ID, "ショウ")

	err := s.Queries().OnReadings().Reorder(context.Background(), []int64{a.ID, a.ID})
	re, ok := IsReorderError(err)
	if !ok || re.Code != ReorderDuplicateID {
		t.Fatalf("err = %v, want ReorderError(DUPLICATE_ID)", err)
	}
}

func TestReorderRejectsUnknownID(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "中")
	a := seedReading(t, s, k.ID, "チュウ")

	err := s.Queries().OnReadings().Reorder(context.Background(), []int64{a.ID, 777})
	re, ok := IsReorderError(err)
	if !ok || re.Code != ReorderUnknownID {
		t.Fatalf("err = %v, want ReorderError(UNKNOWN_ID)", err)
	}
}

func TestReorderRejectsCrossScopeIDs(t *testing.T) {
	s := newTestStore(t)
	a := seedKanji(t, s, "上")
	b := seedKanji(t, s, "下")
	ra := seedReading(t, s, a.ID, "ジョウ")
	rb := seedReading(t, s, b.ID, "カ")

	err := s.Queries().OnReadings().Reorder(context.Background(), []int64{ra.ID, rb.ID})
	re, ok := IsReorderError(err)
	if !ok || re.Code != ReorderScopeMismatch {
		t.Fatalf("err = %v, want ReorderError(SCOPE_MISMATCH)", err)
	}
}

func TestReorderAllowsPartialScope(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "天")
	ctx := context.Background()

	a := seedReading(t, s, k.ID, "テン")
	seedReading(t, s, k.ID, "アメ")

	if err := s.Queries().OnReadings().Reorder(ctx, []int64{a.ID}); err != nil {
		t.Fatalf("partial reorder: %v", err)
	}
}

func TestOptionalFieldsRoundTripAsEmpty(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "食")
	ctx := context.Background()

	r, err := s.Queries().KunReadings().Create(ctx, KunReading{
		KanjiID: k.ID, Reading: "たべる", ReadingLevel: "小", DisplayOrder: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Okurigana != "" {
		t.Errorf("Okurigana = %q, want empty", r.Okurigana)
	}

	// Stored as NULL, not empty string.
	var isNull bool
	err = s.DB().QueryRow("SELECT okurigana IS NULL FROM kun_readings WHERE id = ?", r.ID).Scan(&isNull)
	if err != nil {
		t.Fatal(err)
	}
	if !isNull {
		t.Error("empty okurigana stored as '' instead of NULL")
	}
}

func TestJapaneseTextNormalizedOnWrite(t *testing.T) {
	s := newTestStore(t)
	k := seedKanji(t, s, "学")
	ctx := context.Background()

	// が written as か + combining dakuten normalizes to the composed form.
	decomposed := "がく"
	r, err := s.Queries().KunReadings().Create(ctx, KunReading{
		KanjiID: k.ID, Reading: decomposed, ReadingLevel: "小", DisplayOrder: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Reading != "がく" {
		t.Errorf("Reading = %q, want composed がく", r.Reading)
	}
}
