/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ranking holds the rated-entry board: the record shape, the
// submission validator, the append-only entry store and the descending
// score view shown to players.
package ranking

import (
	"errors"
	"time"

	"github.com/rs/xid"
)

const (
	MinScore = 1
	MaxScore = 5
)

var (
	ErrDuplicateID = errors.New("entry id already present on board")
	ErrMissingID   = errors.New("entry id missing")
)

// Entry is one accepted (title, rater, score) submission.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Rater     string    `json:"rater"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a fresh opaque entry id.
func NewID() string {
	return xid.New().String()
}

// Board is the ordered sequence of accepted entries. The zero value is an
// empty board. A Board is never modified in place; Append and Accept return
// a new value.
type Board struct {
	entries []Entry
}

func (b Board) Len() int {
	return len(b.entries)
}

// Entries returns a copy of the entries in storage order.
func (b Board) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)

	return out
}

func (b Board) has(id string) bool {
	for _, e := range b.entries {
		if e.ID == id {
			return true
		}
	}

	return false
}

// Append returns a new board with e added after all existing entries.
func (b Board) Append(e Entry) Board {
	next := make([]Entry, len(b.entries), len(b.entries)+1)
	copy(next, b.entries)

	return Board{entries: append(next, e)}
}

// Accept validates s and, if it passes, appends it as a new entry with the
// given id and creation time. Rejected submissions return the receiver
// unchanged along with an error wrapping ErrInvalidSubmission.
func (b Board) Accept(s Submission, id string, at time.Time) (Board, Entry, error) {
	if err := Validate(s); err != nil {
		return b, Entry{}, err
	}

	if id == "" {
		return b, Entry{}, ErrMissingID
	}

	if b.has(id) {
		return b, Entry{}, ErrDuplicateID
	}

	e := Entry{
		ID:        id,
		Title:     s.Title,
		Rater:     s.Rater,
		Score:     s.Score,
		CreatedAt: at,
	}

	return b.Append(e), e, nil
}

// Ranking returns the board sorted by descending score. It is recomputed on
// every call.
func (b Board) Ranking() []Ranked {
	return Rank(b.entries)
}
