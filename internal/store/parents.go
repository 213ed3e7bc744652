package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jisaku/kanjidb/internal/jptext"
)

// Parent entities. These own the ordered child collections but are not
// themselves ordered within a scope; strictly plain CRUD.

// Kanji is a dictionary headword character.
type Kanji struct {
	ID                      int64
	Character               string
	StrokeCount             *int64
	ShortMeaning            string
	SearchKeywords          string
	JlptLevel               string
	JoyoLevel               string
	KenteiLevel             string
	NotesEtymology          string
	NotesSemantic           string
	NotesEducationMnemonics string
	NotesPersonal           string
	CreatedAt               string
	UpdatedAt               string
}

// Component is a reusable graphical part of kanji (radicals included).
type Component struct {
	ID           int64
	Character    string
	JapaneseName string
	ShortMeaning string
	Description  string
	CreatedAt    string
	UpdatedAt    string
}

// Vocabulary is a word entry that links to its constituent kanji.
type Vocabulary struct {
	ID        int64
	Word      string
	Reading   string
	Meaning   string
	CreatedAt string
	UpdatedAt string
}

// ClassificationType is a lookup row naming a kanji formation category.
type ClassificationType struct {
	ID           int64
	TypeName     string
	NameJapanese string
	NameEnglish  string
	Description  string
	DisplayOrder int
}

// PositionType is a lookup row naming where a component sits in a kanji.
type PositionType struct {
	ID           int64
	Name         string
	DisplayOrder int
}

const kanjiColumns = `id, character, stroke_count, short_meaning, search_keywords,
	jlpt_level, joyo_level, kanji_kentei_level,
	notes_etymology, notes_semantic, notes_education_mnemonics, notes_personal,
	created_at, updated_at`

func scanKanji(sc RowScanner) (Kanji, error) {
	var k Kanji
	var strokes sql.NullInt64
	var short, keywords, jlpt, joyo, kentei, etym, sem, mnem, personal sql.NullString
	err := sc.Scan(&k.ID, &k.Character, &strokes, &short, &keywords,
		&jlpt, &joyo, &kentei, &etym, &sem, &mnem, &personal,
		&k.CreatedAt, &k.UpdatedAt)
	k.StrokeCount = intPtr(strokes)
	k.ShortMeaning = jptext.OptionalValue(short)
	k.SearchKeywords = jptext.OptionalValue(keywords)
	k.JlptLevel = jptext.OptionalValue(jlpt)
	k.JoyoLevel = jptext.OptionalValue(joyo)
	k.KenteiLevel = jptext.OptionalValue(kentei)
	k.NotesEtymology = jptext.OptionalValue(etym)
	k.NotesSemantic = jptext.OptionalValue(sem)
	k.NotesEducationMnemonics = jptext.OptionalValue(mnem)
	k.NotesPersonal = jptext.OptionalValue(personal)
	return k, err
}

// CreateKanji inserts a kanji and returns the stored row.
func (q *Queries) CreateKanji(ctx context.Context, k Kanji) (Kanji, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO kanjis (character, stroke_count, short_meaning, search_keywords,
			jlpt_level, joyo_level, kanji_kentei_level,
			notes_etymology, notes_semantic, notes_education_mnemonics, notes_personal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, jptext.Normalize(k.Character), nullableInt(k.StrokeCount),
		jptext.OptionalParam(k.ShortMeaning), jptext.OptionalParam(k.SearchKeywords),
		jptext.OptionalParam(k.JlptLevel), jptext.OptionalParam(k.JoyoLevel),
		jptext.OptionalParam(k.KenteiLevel),
		jptext.OptionalParam(k.NotesEtymology), jptext.OptionalParam(k.NotesSemantic),
		jptext.OptionalParam(k.NotesEducationMnemonics), jptext.OptionalParam(k.NotesPersonal))
	if err != nil {
		return Kanji{}, fmt.Errorf("create Kanji: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Kanji{}, fmt.Errorf("create Kanji id: %w", err)
	}
	q.signal()
	return q.GetKanji(ctx, id)
}

// GetKanji fetches one kanji by id.
func (q *Queries) GetKanji(ctx context.Context, id int64) (Kanji, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+kanjiColumns+` FROM kanjis WHERE id = ?`, id)
	k, err := scanKanji(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Kanji{}, &NotFoundError{Entity: "Kanji", ID: id}
	}
	if err != nil {
		return Kanji{}, fmt.Errorf("get Kanji %d: %w", id, err)
	}
	return k, nil
}

// GetKanjiByCharacter fetches one kanji by its headword character.
func (q *Queries) GetKanjiByCharacter(ctx context.Context, character string) (Kanji, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+kanjiColumns+` FROM kanjis WHERE character = ?`,
		jptext.Normalize(character))
	k, err := scanKanji(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Kanji{}, &NotFoundError{Entity: "Kanji", ID: 0}
	}
	if err != nil {
		return Kanji{}, fmt.Errorf("get Kanji %q: %w", character, err)
	}
	return k, nil
}

// UpdateKanji rewrites every mutable kanji column and returns the
// stored row.
func (q *Queries) UpdateKanji(ctx context.Context, k Kanji) (Kanji, error) {
	if _, err := q.GetKanji(ctx, k.ID); err != nil {
		return Kanji{}, err
	}
	_, err := q.q.ExecContext(ctx, `
		UPDATE kanjis SET character = ?, stroke_count = ?, short_meaning = ?,
			search_keywords = ?, jlpt_level = ?, joyo_level = ?, kanji_kentei_level = ?,
			notes_etymology = ?, notes_semantic = ?, notes_education_mnemonics = ?,
			notes_personal = ?, updated_at = datetime('now')
		WHERE id = ?
	`, jptext.Normalize(k.Character), nullableInt(k.StrokeCount),
		jptext.OptionalParam(k.ShortMeaning), jptext.OptionalParam(k.SearchKeywords),
		jptext.OptionalParam(k.JlptLevel), jptext.OptionalParam(k.JoyoLevel),
		jptext.OptionalParam(k.KenteiLevel),
		jptext.OptionalParam(k.NotesEtymology), jptext.OptionalParam(k.NotesSemantic),
		jptext.OptionalParam(k.NotesEducationMnemonics), jptext.OptionalParam(k.NotesPersonal),
		k.ID)
	if err != nil {
		return Kanji{}, fmt.Errorf("update Kanji %d: %w", k.ID, err)
	}
	q.signal()
	return q.GetKanji(ctx, k.ID)
}

// CreateComponent inserts a component and returns the stored row.
func (q *Queries) CreateComponent(ctx context.Context, c Component) (Component, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO components (character, japanese_name, short_meaning, description)
		VALUES (?, ?, ?, ?)
	`, jptext.Normalize(c.Character), jptext.OptionalParam(c.JapaneseName),
		jptext.OptionalParam(c.ShortMeaning), jptext.OptionalParam(c.Description))
	if err != nil {
		return Component{}, fmt.Errorf("create Component: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Component{}, fmt.Errorf("create Component id: %w", err)
	}
	q.signal()
	return q.GetComponent(ctx, id)
}

// GetComponent fetches one component by id.
func (q *Queries) GetComponent(ctx context.Context, id int64) (Component, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, character, japanese_name, short_meaning, description, created_at, updated_at
		FROM components WHERE id = ?
	`, id)
	var c Component
	var name, short, desc sql.NullString
	err := row.Scan(&c.ID, &c.Character, &name, &short, &desc, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Component{}, &NotFoundError{Entity: "Component", ID: id}
	}
	if err != nil {
		return Component{}, fmt.Errorf("get Component %d: %w", id, err)
	}
	c.JapaneseName = jptext.OptionalValue(name)
	c.ShortMeaning = jptext.OptionalValue(short)
	c.Description = jptext.OptionalValue(desc)
	return c, nil
}

// CreateVocabulary inserts a vocabulary entry and returns the stored row.
func (q *Queries) CreateVocabulary(ctx context.Context, v Vocabulary) (Vocabulary, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO vocabulary (word, reading, meaning) VALUES (?, ?, ?)
	`, jptext.Normalize(v.Word), jptext.OptionalParam(v.Reading), jptext.OptionalParam(v.Meaning))
	if err != nil {
		return Vocabulary{}, fmt.Errorf("create Vocabulary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Vocabulary{}, fmt.Errorf("create Vocabulary id: %w", err)
	}
	q.signal()
	return q.GetVocabulary(ctx, id)
}

// GetVocabulary fetches one vocabulary entry by id.
func (q *Queries) GetVocabulary(ctx context.Context, id int64) (Vocabulary, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, word, reading, meaning, created_at, updated_at
		FROM vocabulary WHERE id = ?
	`, id)
	var v Vocabulary
	var reading, meaning sql.NullString
	err := row.Scan(&v.ID, &v.Word, &reading, &meaning, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Vocabulary{}, &NotFoundError{Entity: "Vocabulary", ID: id}
	}
	if err != nil {
		return Vocabulary{}, fmt.Errorf("get Vocabulary %d: %w", id, err)
	}
	v.Reading = jptext.OptionalValue(reading)
	v.Meaning = jptext.OptionalValue(meaning)
	return v, nil
}

// CreateClassificationType inserts a classification lookup row.
func (q *Queries) CreateClassificationType(ctx context.Context, t ClassificationType) (ClassificationType, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO classification_types (type_name, name_japanese, name_english, description, display_order)
		VALUES (?, ?, ?, ?, ?)
	`, t.TypeName, jptext.OptionalParam(t.NameJapanese), jptext.OptionalParam(t.NameEnglish),
		jptext.OptionalParam(t.Description), t.DisplayOrder)
	if err != nil {
		return ClassificationType{}, fmt.Errorf("create ClassificationType: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ClassificationType{}, fmt.Errorf("create ClassificationType id: %w", err)
	}
	t.ID = id
	q.signal()
	return t, nil
}

// ListClassificationTypes returns every classification type ordered for
// display.
func (q *Queries) ListClassificationTypes(ctx context.Context) ([]ClassificationType, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, type_name, name_japanese, name_english, description, display_order
		FROM classification_types ORDER BY display_order ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list ClassificationType: %w", err)
	}
	defer rows.Close()

	types := []ClassificationType{}
	for rows.Next() {
		var t ClassificationType
		var ja, en, desc sql.NullString
		if err := rows.Scan(&t.ID, &t.TypeName, &ja, &en, &desc, &t.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan ClassificationType: %w", err)
		}
		t.NameJapanese = jptext.OptionalValue(ja)
		t.NameEnglish = jptext.OptionalValue(en)
		t.Description = jptext.OptionalValue(desc)
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ClassificationType: %w", err)
	}
	return types, nil
}

// FindClassificationTypeByName fetches a classification type by its
// unique type name.
func (q *Queries) FindClassificationTypeByName(ctx context.Context, name string) (ClassificationType, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, type_name, name_japanese, name_english, description, display_order
		FROM classification_types WHERE type_name = ?
	`, name)
	var t ClassificationType
	var ja, en, desc sql.NullString
	err := row.Scan(&t.ID, &t.TypeName, &ja, &en, &desc, &t.DisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return ClassificationType{}, &NotFoundError{Entity: "ClassificationType", ID: 0}
	}
	if err != nil {
		return ClassificationType{}, fmt.Errorf("find ClassificationType %q: %w", name, err)
	}
	t.NameJapanese = jptext.OptionalValue(ja)
	t.NameEnglish = jptext.OptionalValue(en)
	t.Description = jptext.OptionalValue(desc)
	return t, nil
}

// CreatePositionType inserts a position lookup row.
func (q *Queries) CreatePositionType(ctx context.Context, t PositionType) (PositionType, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO position_types (name, display_order) VALUES (?, ?)
	`, t.Name, t.DisplayOrder)
	if err != nil {
		return PositionType{}, fmt.Errorf("create PositionType: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return PositionType{}, fmt.Errorf("create PositionType id: %w", err)
	}
	t.ID = id
	q.signal()
	return t, nil
}

// ListPositionTypes returns every position type ordered for display.
func (q *Queries) ListPositionTypes(ctx context.Context) ([]PositionType, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, name, display_order FROM position_types ORDER BY display_order ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list PositionType: %w", err)
	}
	defer rows.Close()

	types := []PositionType{}
	for rows.Next() {
		var t PositionType
		if err := rows.Scan(&t.ID, &t.Name, &t.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan PositionType: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate PositionType: %w", err)
	}
	return types, nil
}

// FindPositionTypeByName fetches a position type by its unique name.
func (q *Queries) FindPositionTypeByName(ctx context.Context, name string) (PositionType, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, name, display_order FROM position_types WHERE name = ?
	`, name)
	var t PositionType
	err := row.Scan(&t.ID, &t.Name, &t.DisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return PositionType{}, &NotFoundError{Entity: "PositionType", ID: 0}
	}
	if err != nil {
		return PositionType{}, fmt.Errorf("find PositionType %q: %w", name, err)
	}
	return t, nil
}
