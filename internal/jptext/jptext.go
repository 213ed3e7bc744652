// Package jptext canonicalizes Japanese text fields before storage and
// comparison.
//
// Two canonicalization rules apply everywhere a text field crosses the
// store boundary:
//
//  1. Unicode NFC normalization. Kana with combining voicing marks
//     (か + U+3099) and their precomposed forms (が) must store and
//     compare identically.
//  2. Optional text: the empty string and SQL NULL are the same value.
//     The canonical stored form is NULL; the canonical in-memory form
//     is "".
package jptext

import (
	"database/sql"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the NFC form of s with surrounding whitespace removed.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Equal reports whether two text values are equal after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// OptionalParam converts an optional text field to its stored form:
// NULL when empty after normalization, the normalized string otherwise.
func OptionalParam(s string) any {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return n
}

// OptionalValue converts a scanned nullable column to its in-memory
// form: "" for NULL, the stored string otherwise.
func OptionalValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
