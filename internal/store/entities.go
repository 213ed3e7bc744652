package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jisaku/kanjidb/internal/jptext"
)

// Record types for the ordered child collections. Optional text fields
// are plain strings with "" meaning absent; the table specs convert to and
// from SQL NULL. Japanese text is NFC-normalized on write.

// OnReading is an on-yomi (Chinese-derived) reading of a kanji.
type OnReading struct {
	ID           int64
	KanjiID      int64
	Reading      string
	ReadingLevel string
	DisplayOrder int
	CreatedAt    string
	UpdatedAt    string
}

// KunReading is a kun-yomi (native) reading of a kanji. Okurigana is
// optional trailing kana written outside the character itself.
type KunReading struct {
	ID           int64
	KanjiID      int64
	Reading      string
	Okurigana    string
	ReadingLevel string
	DisplayOrder int
	CreatedAt    string
	UpdatedAt    string
}

// Meaning is one English meaning of a kanji.
type Meaning struct {
	ID             int64
	KanjiID        int64
	MeaningText    string
	AdditionalInfo string
	DisplayOrder   int
	CreatedAt      string
	UpdatedAt      string
}

// ReadingGroup clusters meanings under one reading within a kanji.
type ReadingGroup struct {
	ID           int64
	KanjiID      int64
	ReadingText  string
	DisplayOrder int
	CreatedAt    string
	UpdatedAt    string
}

// GroupMember links a reading group to a meaning. Pure link record:
// both references are fixed at creation and the row has no mutable
// fields. Parent scope is the reading group.
type GroupMember struct {
	ID             int64
	ReadingGroupID int64
	MeaningID      int64
	DisplayOrder   int
}

// Classification assigns a classification type (phono-semantic,
// pictograph, ...) to a kanji. Pure link record scoped by kanji.
type Classification struct {
	ID                   int64
	KanjiID              int64
	ClassificationTypeID int64
	DisplayOrder         int
}

// ComponentForm is a variant written form of a component.
type ComponentForm struct {
	ID            int64
	ComponentID   int64
	FormCharacter string
	FormName      string
	StrokeCount   *int64
	UsageNotes    string
	DisplayOrder  int
	CreatedAt     string
	UpdatedAt     string
}

// Occurrence records where a component appears within a kanji. The
// component reference is fixed; form, position, radical flag and notes
// are editable.
type Occurrence struct {
	ID              int64
	KanjiID         int64
	ComponentID     int64
	ComponentFormID *int64
	PositionTypeID  *int64
	IsRadical       bool
	AnalysisNotes   string
	DisplayOrder    int
	CreatedAt       string
	UpdatedAt       string
}

// VocabKanji links a vocabulary word to one of its kanji, scoped by the
// vocabulary entry. The kanji reference is fixed; the analysis note is
// editable.
type VocabKanji struct {
	ID            int64
	VocabID       int64
	KanjiID       int64
	AnalysisNotes string
	DisplayOrder  int
	CreatedAt     string
	UpdatedAt     string
}

// RecordID implementations let the record types feed the diff layer.

func (r OnReading) RecordID() int64      { return r.ID }
func (r KunReading) RecordID() int64     { return r.ID }
func (r Meaning) RecordID() int64        { return r.ID }
func (r ReadingGroup) RecordID() int64   { return r.ID }
func (r GroupMember) RecordID() int64    { return r.ID }
func (r Classification) RecordID() int64 { return r.ID }
func (r ComponentForm) RecordID() int64  { return r.ID }
func (r Occurrence) RecordID() int64     { return r.ID }
func (r VocabKanji) RecordID() int64     { return r.ID }

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

var onReadingSpec = TableSpec[OnReading]{
	Entity:        "OnReading",
	Table:         "on_readings",
	ParentColumn:  "kanji_id",
	SelectColumns: []string{"id", "kanji_id", "reading", "reading_level", "display_order", "created_at", "updated_at"},
	InsertColumns: []string{"reading", "reading_level"},
	UpdateColumns: []string{"reading", "reading_level"},
	HasTimestamps: true,
	ScanRow: func(sc RowScanner) (OnReading, error) {
		var r OnReading
		err := sc.Scan(&r.ID, &r.KanjiID, &r.Reading, &r.ReadingLevel, &r.DisplayOrder, &r.CreatedAt, &r.UpdatedAt)
		return r, err
	},
	BindInsert: func(r OnReading) []any {
		return []any{jptext.Normalize(r.Reading), r.ReadingLevel}
	},
	BindUpdate: func(r OnReading) []any {
		return []any{jptext.Normalize(r.Reading), r.ReadingLevel}
	},
	ID:     func(r OnReading) int64 { return r.ID },
	Parent: func(r OnReading) int64 { return r.KanjiID },
	Order:  func(r OnReading) int { return r.DisplayOrder },
}

var kunReadingSpec = TableSpec[KunReading]{
	Entity:        "KunReading",
	Table:         "kun_readings",
	ParentColumn:  "kanji_id",
	SelectColumns: []string{"id", "kanji_id", "reading", "okurigana", "reading_level", "display_order", "created_at", "updated_at"},
	InsertColumns: []string{"reading", "okurigana", "reading_level"},
	UpdateColumns: []string{"reading", "okurigana", "reading_level"},
	HasTimestamps: true,
	ScanRow: func(sc RowScanner) (KunReading, error) {
		var r KunReading
		var okurigana sql.NullString
		err := sc.Scan(&r.ID, &r.KanjiID, &r.Reading, &okurigana, &r.ReadingLevel, &r.DisplayOrder, &r.CreatedAt, &r.UpdatedAt)
		r.Okurigana = jptext.OptionalValue(okurigana)
		return r, err
	},
	BindInsert: func(r KunReading) []any {
		return []any{jptext.Normalize(r.Reading), jptext.OptionalParam(r.Okurigana), r.ReadingLevel}
	},
	BindUpdate: func(r KunReading) []any {
		return []any{jptext.Normalize(r.Reading), jptext.OptionalParam(r.Okurigana), r.ReadingLevel}
	},
	ID:     func(r KunReading) int64 { return r.ID },
	Parent: func(r KunReading) int64 { return r.KanjiID },
	Order:  func(r KunReading) int { return r.DisplayOrder },
}

var meaningSpec = TableSpec[Meaning]{
	Entity:        "KanjiMeaning",
	Table:         "kanji_meanings",
	ParentColumn:  "kanji_id",
	SelectColumns: []string{"id", "kanji_id", "meaning_text", "additional_info", "display_order", "created_at", "updated_at"},
	InsertColumns: []string{"meaning_text", "additional_info"},
	UpdateColumns: []string{"meaning_text", "additional_info"},
	HasTimestamps: true,
	ScanRow: func(sc RowScanner) (Meaning, error) {
		var r Meaning
		var info sql.NullString
		err := sc.Scan(&r.ID, &r.KanjiID, &r.MeaningText, &info, &r.DisplayOrder, &r.CreatedAt, &r.UpdatedAt)
		r.AdditionalInfo = jptext.OptionalValue(info)
		return r, err
	},
	BindInsert: func(r Meaning) []any {
		return []any{r.MeaningText, jptext.OptionalParam(r.AdditionalInfo)}
	},
	BindUpdate: func(r Meaning) []any {
		return []any{r.MeaningText, jptext.OptionalParam(r.AdditionalInfo)}
	},
	ID:     func(r Meaning) int64 { return r.ID },
	Parent: func(r Meaning) int64 { return r.KanjiID },
	Order:  func(r Meaning) int { return r.DisplayOrder },
}

var readingGroupSpec = TableSpec[ReadingGroup]{
	Entity:        "ReadingGroup",
	Table:         "kanji_meaning_reading_groups",
	ParentColumn:  "kanji_id",
	SelectColumns: []string{"id", "kanji_id", "reading_text", "display_order", "created_at", "updated_at"},
	InsertColumns: []string{"reading_text"},
	UpdateColumns: []string{"reading_text"},
	HasTimestamps: true,
	ScanRow: func(sc RowScanner) (ReadingGroup, error) {
		var r ReadingGroup
		err := sc.Scan(&r.ID, &r.KanjiID, &r.ReadingText, &r.DisplayOrder, &r.CreatedAt, &r.UpdatedAt)
		return r, err
	},
	BindInsert: func(r ReadingGroup) []any {
		return []any{jptext.Normalize(r.ReadingText)}
	},
	BindUpdate: func(r ReadingGroup) []any {
		return []any{jptext.Normalize(r.ReadingText)}
	},
	ID:     func(r ReadingGroup) int64 { return r.ID },
	Parent: func(r ReadingGroup) int64 { return r.KanjiID },
	Order:  func(r ReadingGroup) int { return r.DisplayOrder },
}

var groupMemberSpec = TableSpec[GroupMember]{
	Entity:        "GroupMember",
	Table:         "kanji_meaning_group_members",
	ParentColumn:  "reading_group_id",
	SelectColumns: []string{"id", "reading_group_id", "meaning_id", "display_order"},
	InsertColumns: []string{"meaning_id"},
	UpdateColumns: nil, // pure link record
	ScanRow: func(sc RowScanner) (GroupMember, error) {
		var r GroupMember
		err := sc.Scan(&r.ID, &r.ReadingGroupID, &r.MeaningID, &r.DisplayOrder)
		return r, err
	},
	BindInsert: func(r GroupMember) []any { return []any{r.MeaningID} },
	BindUpdate: func(r GroupMember) []any { return nil },
	ID:         func(r GroupMember) int64 { return r.ID },
	Parent:     func(r GroupMember) int64 { return r.ReadingGroupID },
	Order:      func(r GroupMember) int { return r.DisplayOrder },
}

var classificationSpec = TableSpec[Classification]{
	Entity:        "KanjiClassification",
	Table:         "kanji_classifications",
	ParentColumn:  "kanji_id",
	SelectColumns: []string{"id", "kanji_id", "classification_type_id", "display_order"},
	InsertColumns: []string{"classification_type_id"},
	UpdateColumns: nil, // pure link record
	ScanRow: func(sc RowScanner) (Classification, error) {
		var r Classification
		err := sc.Scan(&r.ID, &r.KanjiID, &r.ClassificationTypeID, &r.DisplayOrder)
		return r, err
	},
	BindInsert: func(r Classification) []any { return []any{r.ClassificationTypeID} },
	BindUpdate: func(r Classification) []any { return nil },
	ID:         func(r Classification) int64 { return r.ID },
	Parent:     func(r Classification) int64 { return r.KanjiID },
	Order:      func(r Classification) int { return r.DisplayOrder },
}

var componentFormSpec = TableSpec[ComponentForm]{
	Entity:        "ComponentForm",
	Table:         "component_forms",
	ParentColumn:  "component_id",
	SelectColumns: []string{"id", "component_id", "form_character", "form_name", "stroke_count", "usage_notes", "display_order", "created_at", "updated_at"},
	InsertColumns: []string{"form_character", "form_name", "stroke_count", "usage_notes"},
	UpdateColumns: []string{"form_character", "form_name", "stroke_count", "usage_notes"},
	HasTimestamps: true,
	ScanRow: func(sc RowScanner) (ComponentForm, error) {
		var r ComponentForm
		var name, notes sql.NullString
		var strokes sql.NullInt64
		err := sc.Scan(&r.ID, &r.ComponentID, &r.FormCharacter, &name, &strokes, &notes, &r.DisplayOrder, &r.CreatedAt, &r.UpdatedAt)
		r.FormName = jptext.OptionalValue(name)
		r.StrokeCount = intPtr(strokes)
		r.UsageNotes = jptext.OptionalValue(notes)
		return r, err
	},
	BindInsert: func(r ComponentForm) []any {
		return []any{jptext.Normalize(r.FormCharacter), jptext.OptionalParam(r.FormName), nullableInt(r.StrokeCount), jptext.OptionalParam(r.UsageNotes)}
	},
	BindUpdate: func(r ComponentForm) []any {
		return []any{jptext.Normalize(r.FormCharacter), jptext.OptionalParam(r.FormName), nullableInt(r.StrokeCount), jptext.OptionalParam(r.UsageNotes)}
	},
	ID:     func(r ComponentForm) int64 { return r.ID },
	Parent: func(r ComponentForm) int64 { return r.ComponentID },
	Order:  func(r ComponentForm) int { return r.DisplayOrder },
}

var occurrenceSpec = TableSpec[Occurrence]{
	Entity:        "ComponentOccurrence",
	Table:         "component_occurrences",
	ParentColumn:  "kanji_id",
	SelectColumns: []string{"id", "kanji_id", "component_id", "component_form_id", "position_type_id", "is_radical", "analysis_notes", "display_order", "created_at", "updated_at"},
	InsertColumns: []string{"component_id", "component_form_id", "position_type_id", "is_radical", "analysis_notes"},
	UpdateColumns: []string{"component_form_id", "position_type_id", "is_radical", "analysis_notes"},
	HasTimestamps: true,
	ScanRow: func(sc RowScanner) (Occurrence, error) {
		var r Occurrence
		var formID, posID sql.NullInt64
		var notes sql.NullString
		err := sc.Scan(&r.ID, &r.KanjiID, &r.ComponentID, &formID, &posID, &r.IsRadical, &notes, &r.DisplayOrder, &r.CreatedAt, &r.UpdatedAt)
		r.ComponentFormID = intPtr(formID)
		r.PositionTypeID = intPtr(posID)
		r.AnalysisNotes = jptext.OptionalValue(notes)
		return r, err
	},
	BindInsert: func(r Occurrence) []any {
		return []any{r.ComponentID, nullableInt(r.ComponentFormID), nullableInt(r.PositionTypeID), r.IsRadical, jptext.OptionalParam(r.AnalysisNotes)}
	},
	BindUpdate: func(r Occurrence) []any {
		return []any{nullableInt(r.ComponentFormID), nullableInt(r.PositionTypeID), r.IsRadical, jptext.OptionalParam(r.AnalysisNotes)}
	},
	ID:     func(r Occurrence) int64 { return r.ID },
	Parent: func(r Occurrence) int64 { return r.KanjiID },
	Order:  func(r Occurrence) int { return r.DisplayOrder },
}

var vocabKanjiSpec = TableSpec[VocabKanji]{
	Entity:        "VocabKanji",
	Table:         "vocab_kanji",
	ParentColumn:  "vocab_id",
	SelectColumns: []string{"id", "vocab_id", "kanji_id", "analysis_notes", "display_order", "created_at", "updated_at"},
	InsertColumns: []string{"kanji_id", "analysis_notes"},
	UpdateColumns: []string{"analysis_notes"},
	HasTimestamps: true,
	ScanRow: func(sc RowScanner) (VocabKanji, error) {
		var r VocabKanji
		var notes sql.NullString
		err := sc.Scan(&r.ID, &r.VocabID, &r.KanjiID, &notes, &r.DisplayOrder, &r.CreatedAt, &r.UpdatedAt)
		r.AnalysisNotes = jptext.OptionalValue(notes)
		return r, err
	},
	BindInsert: func(r VocabKanji) []any {
		return []any{r.KanjiID, jptext.OptionalParam(r.AnalysisNotes)}
	},
	BindUpdate: func(r VocabKanji) []any {
		return []any{jptext.OptionalParam(r.AnalysisNotes)}
	},
	ID:     func(r VocabKanji) int64 { return r.ID },
	Parent: func(r VocabKanji) int64 { return r.VocabID },
	Order:  func(r VocabKanji) int { return r.DisplayOrder },
}

// Typed collection accessors.

// OnReadings returns the on-yomi reading collection.
func (q *Queries) OnReadings() *Collection[OnReading] {
	return &Collection[OnReading]{q: q.q, notify: q.notify, spec: onReadingSpec}
}

// KunReadings returns the kun-yomi reading collection.
func (q *Queries) KunReadings() *Collection[KunReading] {
	return &Collection[KunReading]{q: q.q, notify: q.notify, spec: kunReadingSpec}
}

// Meanings returns the kanji meaning collection.
func (q *Queries) Meanings() *Collection[Meaning] {
	return &Collection[Meaning]{q: q.q, notify: q.notify, spec: meaningSpec}
}

// ReadingGroups returns the reading group collection.
func (q *Queries) ReadingGroups() *Collection[ReadingGroup] {
	return &Collection[ReadingGroup]{q: q.q, notify: q.notify, spec: readingGroupSpec}
}

// GroupMembers returns the group member link collection, scoped by
// reading group.
func (q *Queries) GroupMembers() *Collection[GroupMember] {
	return &Collection[GroupMember]{q: q.q, notify: q.notify, spec: groupMemberSpec}
}

// Classifications returns the kanji classification link collection.
func (q *Queries) Classifications() *Collection[Classification] {
	return &Collection[Classification]{q: q.q, notify: q.notify, spec: classificationSpec}
}

// ComponentForms returns the component form collection.
func (q *Queries) ComponentForms() *Collection[ComponentForm] {
	return &Collection[ComponentForm]{q: q.q, notify: q.notify, spec: componentFormSpec}
}

// Occurrences returns the component occurrence collection.
func (q *Queries) Occurrences() *Collection[Occurrence] {
	return &Collection[Occurrence]{q: q.q, notify: q.notify, spec: occurrenceSpec}
}

// VocabKanjiLinks returns the vocabulary-kanji link collection.
func (q *Queries) VocabKanjiLinks() *Collection[VocabKanji] {
	return &Collection[VocabKanji]{q: q.q, notify: q.notify, spec: vocabKanjiSpec}
}

// GroupMembersByKanji returns every group member across all reading
// groups of one kanji, ordered by group then position. The reconciler
// diffs group members at the kanji level because one save edits all
// groups together.
func (q *Queries) GroupMembersByKanji(ctx context.Context, kanjiID int64) ([]GroupMember, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT gm.id, gm.reading_group_id, gm.meaning_id, gm.display_order
		FROM kanji_meaning_group_members gm
		JOIN kanji_meaning_reading_groups rg ON gm.reading_group_id = rg.id
		WHERE rg.kanji_id = ?
		ORDER BY rg.display_order ASC, gm.display_order ASC, gm.id ASC
	`, kanjiID)
	if err != nil {
		return nil, fmt.Errorf("list GroupMember by kanji: %w", err)
	}
	defer rows.Close()

	members := []GroupMember{}
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.ID, &m.ReadingGroupID, &m.MeaningID, &m.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan GroupMember: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GroupMember: %w", err)
	}

	return members, nil
}
