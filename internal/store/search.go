package store

import (
	"context"
	"fmt"

	"github.com/jisaku/kanjidb/internal/query"
)

// SearchKanji runs a compiled list filter against the kanjis table.
func (q *Queries) SearchKanji(ctx context.Context, f query.Filter) ([]Kanji, error) {
	clause, args := f.Compile()
	rows, err := q.q.QueryContext(ctx, `SELECT `+kanjiColumns+` FROM kanjis`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("search Kanji: %w", err)
	}
	defer rows.Close()

	kanji := []Kanji{}
	for rows.Next() {
		k, err := scanKanji(rows)
		if err != nil {
			return nil, fmt.Errorf("scan Kanji: %w", err)
		}
		kanji = append(kanji, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate Kanji: %w", err)
	}
	return kanji, nil
}

// Stats holds per-table row counts.
type Stats struct {
	Kanji              int64 `json:"kanji"`
	Components         int64 `json:"components"`
	Vocabulary         int64 `json:"vocabulary"`
	OnReadings         int64 `json:"onReadings"`
	KunReadings        int64 `json:"kunReadings"`
	Meanings           int64 `json:"meanings"`
	ReadingGroups      int64 `json:"readingGroups"`
	GroupMembers       int64 `json:"groupMembers"`
	Classifications    int64 `json:"classifications"`
	ComponentForms     int64 `json:"componentForms"`
	Occurrences        int64 `json:"occurrences"`
	VocabKanji         int64 `json:"vocabKanji"`
	ClassificationKind int64 `json:"classificationTypes"`
	PositionKind       int64 `json:"positionTypes"`
}

// CollectStats counts the rows of every table.
func (q *Queries) CollectStats(ctx context.Context) (Stats, error) {
	var s Stats
	counts := []struct {
		table  string
		target *int64
	}{
		{"kanjis", &s.Kanji},
		{"components", &s.Components},
		{"vocabulary", &s.Vocabulary},
		{"on_readings", &s.OnReadings},
		{"kun_readings", &s.KunReadings},
		{"kanji_meanings", &s.Meanings},
		{"kanji_meaning_reading_groups", &s.ReadingGroups},
		{"kanji_meaning_group_members", &s.GroupMembers},
		{"kanji_classifications", &s.Classifications},
		{"component_forms", &s.ComponentForms},
		{"component_occurrences", &s.Occurrences},
		{"vocab_kanji", &s.VocabKanji},
		{"classification_types", &s.ClassificationKind},
		{"position_types", &s.PositionKind},
	}
	for _, c := range counts {
		if err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.target); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return s, nil
}
