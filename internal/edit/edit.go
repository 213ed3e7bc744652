// Package edit holds the item types an editing session accumulates
// before save. Each type mirrors one stored collection, carries a
// tagged identity instead of a raw row id, and knows how to compare
// itself against its persisted counterpart.
package edit

import (
	"github.com/jisaku/kanjidb/internal/ident"
	"github.com/jisaku/kanjidb/internal/jptext"
	"github.com/jisaku/kanjidb/internal/store"
)

func sameIntPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// OnReading is an on-yomi reading as edited.
type OnReading struct {
	ID           ident.Identity
	Reading      string
	ReadingLevel string
	Delete       bool
}

func (r OnReading) ItemID() ident.Identity { return r.ID }
func (r OnReading) Deleted() bool          { return r.Delete }

func (r OnReading) Unchanged(p store.OnReading) bool {
	return jptext.Equal(r.Reading, p.Reading) && r.ReadingLevel == p.ReadingLevel
}

// Record builds the stored form. id is zero for pending creates; order
// below zero lets the store append.
func (r OnReading) Record(id, kanjiID int64, order int) store.OnReading {
	return store.OnReading{ID: id, KanjiID: kanjiID, Reading: r.Reading, ReadingLevel: r.ReadingLevel, DisplayOrder: order}
}

// KunReading is a kun-yomi reading as edited.
type KunReading struct {
	ID           ident.Identity
	Reading      string
	Okurigana    string
	ReadingLevel string
	Delete       bool
}

func (r KunReading) ItemID() ident.Identity { return r.ID }
func (r KunReading) Deleted() bool          { return r.Delete }

func (r KunReading) Unchanged(p store.KunReading) bool {
	return jptext.Equal(r.Reading, p.Reading) &&
		jptext.Equal(r.Okurigana, p.Okurigana) &&
		r.ReadingLevel == p.ReadingLevel
}

func (r KunReading) Record(id, kanjiID int64, order int) store.KunReading {
	return store.KunReading{ID: id, KanjiID: kanjiID, Reading: r.Reading, Okurigana: r.Okurigana, ReadingLevel: r.ReadingLevel, DisplayOrder: order}
}

// Meaning is a kanji meaning as edited.
type Meaning struct {
	ID             ident.Identity
	MeaningText    string
	AdditionalInfo string
	Delete         bool
}

func (m Meaning) ItemID() ident.Identity { return m.ID }
func (m Meaning) Deleted() bool          { return m.Delete }

func (m Meaning) Unchanged(p store.Meaning) bool {
	return m.MeaningText == p.MeaningText && jptext.Equal(m.AdditionalInfo, p.AdditionalInfo)
}

func (m Meaning) Record(id, kanjiID int64, order int) store.Meaning {
	return store.Meaning{ID: id, KanjiID: kanjiID, MeaningText: m.MeaningText, AdditionalInfo: m.AdditionalInfo, DisplayOrder: order}
}

// ReadingGroup clusters meanings under one reading as edited.
type ReadingGroup struct {
	ID          ident.Identity
	ReadingText string
	Delete      bool
}

func (g ReadingGroup) ItemID() ident.Identity { return g.ID }
func (g ReadingGroup) Deleted() bool          { return g.Delete }

func (g ReadingGroup) Unchanged(p store.ReadingGroup) bool {
	return jptext.Equal(g.ReadingText, p.ReadingText)
}

func (g ReadingGroup) Record(id, kanjiID int64, order int) store.ReadingGroup {
	return store.ReadingGroup{ID: id, KanjiID: kanjiID, ReadingText: g.ReadingText, DisplayOrder: order}
}

// GroupMember assigns a meaning to a reading group. Both references
// may be placeholders when the group or meaning is created in the same
// save.
type GroupMember struct {
	ID      ident.Identity
	Group   ident.Identity
	Meaning ident.Identity
	Delete  bool
}

func (m GroupMember) ItemID() ident.Identity { return m.ID }
func (m GroupMember) Deleted() bool          { return m.Delete }

// Unchanged is always true: a member's references are fixed at
// creation, moving a meaning between groups is a delete plus create.
func (m GroupMember) Unchanged(store.GroupMember) bool { return true }

// Record builds the stored form from fully resolved references.
func (m GroupMember) Record(id, groupID, meaningID int64, order int) store.GroupMember {
	return store.GroupMember{ID: id, ReadingGroupID: groupID, MeaningID: meaningID, DisplayOrder: order}
}

// MeaningsSave is the full meanings tab buffer saved in one action:
// the meanings themselves, the reading groups, and the assignments of
// meanings to groups. GroupingDisabled wipes every group and
// assignment while keeping the meanings.
type MeaningsSave struct {
	Meanings         []Meaning
	Groups           []ReadingGroup
	Members          []GroupMember
	GroupingDisabled bool
}

// Classification assigns a classification type to a kanji.
type Classification struct {
	ID                   ident.Identity
	ClassificationTypeID int64
	Delete               bool
}

func (c Classification) ItemID() ident.Identity { return c.ID }
func (c Classification) Deleted() bool          { return c.Delete }

// Unchanged is always true: the type reference is fixed at creation.
func (c Classification) Unchanged(store.Classification) bool { return true }

func (c Classification) Record(id, kanjiID int64, order int) store.Classification {
	return store.Classification{ID: id, KanjiID: kanjiID, ClassificationTypeID: c.ClassificationTypeID, DisplayOrder: order}
}

// Occurrence places a component within a kanji as edited. The
// component reference is fixed; everything else is mutable.
type Occurrence struct {
	ID              ident.Identity
	ComponentID     int64
	ComponentFormID *int64
	PositionTypeID  *int64
	IsRadical       bool
	AnalysisNotes   string
	Delete          bool
}

func (o Occurrence) ItemID() ident.Identity { return o.ID }
func (o Occurrence) Deleted() bool          { return o.Delete }

func (o Occurrence) Unchanged(p store.Occurrence) bool {
	return sameIntPtr(o.ComponentFormID, p.ComponentFormID) &&
		sameIntPtr(o.PositionTypeID, p.PositionTypeID) &&
		o.IsRadical == p.IsRadical &&
		jptext.Equal(o.AnalysisNotes, p.AnalysisNotes)
}

func (o Occurrence) Record(id, kanjiID int64, order int) store.Occurrence {
	return store.Occurrence{
		ID: id, KanjiID: kanjiID, ComponentID: o.ComponentID,
		ComponentFormID: o.ComponentFormID, PositionTypeID: o.PositionTypeID,
		IsRadical: o.IsRadical, AnalysisNotes: o.AnalysisNotes, DisplayOrder: order,
	}
}

// ComponentForm is a variant form of a component as edited.
type ComponentForm struct {
	ID            ident.Identity
	FormCharacter string
	FormName      string
	StrokeCount   *int64
	UsageNotes    string
	Delete        bool
}

func (f ComponentForm) ItemID() ident.Identity { return f.ID }
func (f ComponentForm) Deleted() bool          { return f.Delete }

func (f ComponentForm) Unchanged(p store.ComponentForm) bool {
	return jptext.Equal(f.FormCharacter, p.FormCharacter) &&
		jptext.Equal(f.FormName, p.FormName) &&
		sameIntPtr(f.StrokeCount, p.StrokeCount) &&
		jptext.Equal(f.UsageNotes, p.UsageNotes)
}

func (f ComponentForm) Record(id, componentID int64, order int) store.ComponentForm {
	return store.ComponentForm{
		ID: id, ComponentID: componentID, FormCharacter: f.FormCharacter,
		FormName: f.FormName, StrokeCount: f.StrokeCount, UsageNotes: f.UsageNotes,
		DisplayOrder: order,
	}
}

// VocabKanji links a vocabulary entry to a kanji as edited. The kanji
// reference is fixed; only the note is mutable.
type VocabKanji struct {
	ID            ident.Identity
	KanjiID       int64
	AnalysisNotes string
	Delete        bool
}

func (v VocabKanji) ItemID() ident.Identity { return v.ID }
func (v VocabKanji) Deleted() bool          { return v.Delete }

func (v VocabKanji) Unchanged(p store.VocabKanji) bool {
	return jptext.Equal(v.AnalysisNotes, p.AnalysisNotes)
}

func (v VocabKanji) Record(id, vocabID int64, order int) store.VocabKanji {
	return store.VocabKanji{ID: id, VocabID: vocabID, KanjiID: v.KanjiID, AnalysisNotes: v.AnalysisNotes, DisplayOrder: order}
}
