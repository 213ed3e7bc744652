// Package ident defines record identity for the reconciliation core.
//
// Persisted records carry a positive int64 row id assigned by SQLite.
// Records that exist only in an edit buffer carry a placeholder identity
// allocated by the editing session. The two are kept apart by a tagged
// union rather than by sign encoding, so a placeholder can never be
// mistaken for a row id (or the other way around) anywhere downstream.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Identity identifies a record in an edit buffer.
//
// An Identity is either Existing (a persisted row id) or a Placeholder
// (a session-local sequence number for a record not yet created). The
// zero value is not a valid identity of either kind.
type Identity struct {
	value       int64
	placeholder bool
	valid       bool
}

// Existing returns the identity of a persisted record.
func Existing(id int64) Identity {
	return Identity{value: id, valid: true}
}

// NewPlaceholder returns a placeholder identity with the given sequence
// number. Sequence numbers are meaningful only within one editing session.
func NewPlaceholder(seq int64) Identity {
	return Identity{value: seq, placeholder: true, valid: true}
}

// IsPlaceholder reports whether the identity refers to a not-yet-created
// record.
func (id Identity) IsPlaceholder() bool {
	return id.valid && id.placeholder
}

// IsValid reports whether the identity is either kind of valid identity.
func (id Identity) IsValid() bool {
	return id.valid
}

// Existing returns the persisted row id. ok is false for placeholders
// and for the zero Identity.
func (id Identity) Existing() (rowID int64, ok bool) {
	if !id.valid || id.placeholder {
		return 0, false
	}
	return id.value, true
}

// Placeholder returns the session-local sequence number. ok is false for
// existing identities and for the zero Identity.
func (id Identity) Placeholder() (seq int64, ok bool) {
	if !id.valid || !id.placeholder {
		return 0, false
	}
	return id.value, true
}

// String renders the identity for logs and error messages.
func (id Identity) String() string {
	switch {
	case !id.valid:
		return "ident(none)"
	case id.placeholder:
		return fmt.Sprintf("ident(new#%d)", id.value)
	default:
		return fmt.Sprintf("ident(%d)", id.value)
	}
}

// Session allocates placeholder identities for one editing session.
//
// The counter is scoped to the session object, never shared across
// sessions. Allocation is monotonic, so two placeholders from one
// session are never equal.
//
// Thread-safety: safe for concurrent use via internal mutex, though the
// editing model is single-writer end to end.
type Session struct {
	mu    sync.Mutex
	token string
	next  int64
}

// NewSession creates a session with a UUIDv7 token for log correlation.
func NewSession() *Session {
	return &Session{token: uuid.Must(uuid.NewV7()).String(), next: 1}
}

// NewFixedSession creates a session with a caller-supplied token.
// Used by tests that compare logs or golden traces.
func NewFixedSession(token string) *Session {
	return &Session{token: token, next: 1}
}

// Token returns the session correlation token.
func (s *Session) Token() string {
	return s.token
}

// NextPlaceholder allocates the next placeholder identity.
func (s *Session) NextPlaceholder() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := NewPlaceholder(s.next)
	s.next++
	return id
}
