// Package query compiles kanji list filters into SQL predicates. The
// compiler is pure: it builds a deterministic clause string plus its
// bind arguments and never touches the database.
package query

import (
	"fmt"
	"strings"

	"github.com/jisaku/kanjidb/internal/jptext"
)

// Filter narrows the kanji list. Zero values mean "no constraint".
type Filter struct {
	// Search matches the character itself, the short meaning, and the
	// search keywords, case-insensitively.
	Search string

	JLPTLevels   []string
	JoyoLevels   []string
	KenteiLevels []string

	// ClassificationTypeIDs keeps kanji carrying at least one of the
	// given classification assignments.
	ClassificationTypeIDs []int64

	// HasMeanings and HasReadings filter on whether any child records
	// exist. Nil means "don't care".
	HasMeanings *bool
	HasReadings *bool

	Limit  int
	Offset int
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Compile renders the filter as the tail of a SELECT against the
// kanjis table: an optional WHERE clause, a deterministic ORDER BY,
// and optional LIMIT/OFFSET. Args line up with the ? placeholders.
func (f Filter) Compile() (string, []any) {
	var conds []string
	var args []any

	if search := jptext.Normalize(f.Search); search != "" {
		conds = append(conds,
			"(character = ? OR short_meaning LIKE ? COLLATE NOCASE OR search_keywords LIKE ? COLLATE NOCASE)")
		like := "%" + search + "%"
		args = append(args, search, like, like)
	}

	if len(f.JLPTLevels) > 0 {
		conds = append(conds, fmt.Sprintf("jlpt_level IN (%s)", placeholders(len(f.JLPTLevels))))
		for _, lvl := range f.JLPTLevels {
			args = append(args, lvl)
		}
	}
	if len(f.JoyoLevels) > 0 {
		conds = append(conds, fmt.Sprintf("joyo_level IN (%s)", placeholders(len(f.JoyoLevels))))
		for _, lvl := range f.JoyoLevels {
			args = append(args, lvl)
		}
	}
	if len(f.KenteiLevels) > 0 {
		conds = append(conds, fmt.Sprintf("kanji_kentei_level IN (%s)", placeholders(len(f.KenteiLevels))))
		for _, lvl := range f.KenteiLevels {
			args = append(args, lvl)
		}
	}

	if len(f.ClassificationTypeIDs) > 0 {
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM kanji_classifications kc WHERE kc.kanji_id = kanjis.id AND kc.classification_type_id IN (%s))",
			placeholders(len(f.ClassificationTypeIDs))))
		for _, id := range f.ClassificationTypeIDs {
			args = append(args, id)
		}
	}

	if f.HasMeanings != nil {
		cond := "EXISTS (SELECT 1 FROM kanji_meanings km WHERE km.kanji_id = kanjis.id)"
		if !*f.HasMeanings {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
	}
	if f.HasReadings != nil {
		cond := "(EXISTS (SELECT 1 FROM on_readings r WHERE r.kanji_id = kanjis.id)" +
			" OR EXISTS (SELECT 1 FROM kun_readings r WHERE r.kanji_id = kanjis.id))"
		if !*f.HasReadings {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY character ASC, id ASC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
		if f.Offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, f.Offset)
		}
	}
	return b.String(), args
}
