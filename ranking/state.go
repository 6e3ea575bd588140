/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ranking

import (
	"time"
)

// Draft holds the pending form fields of a single player.
type Draft struct {
	Title string `json:"title"`
	Rater string `json:"rater"`
	Score int    `json:"score"`
}

func (d Draft) Submission() Submission {
	return Submission{
		Title: d.Title,
		Rater: d.Rater,
		Score: d.Score,
	}
}

// State is the full view state of one form and its board. Reduce never
// modifies a State; it returns the next one.
type State struct {
	Draft  Draft
	Board  Board
	Notice string
}

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

type TitleChanged struct {
	Title string
}

type RaterChanged struct {
	Rater string
}

// ScoreSelected records a tap on one of the star targets.
type ScoreSelected struct {
	Score int
}

// Submitted asks for the current draft to be accepted under ID.
type Submitted struct {
	ID string
	At time.Time
}

func (TitleChanged) isEvent()  {}
func (RaterChanged) isEvent()  {}
func (ScoreSelected) isEvent() {}
func (Submitted) isEvent()     {}

// Reduce applies ev to s.
//
// An accepted submission appends the entry, clears the draft and the notice.
// A rejected one keeps the draft and board and sets Notice.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case TitleChanged:
		s.Draft.Title = ev.Title
		s.Notice = ""
	case RaterChanged:
		s.Draft.Rater = ev.Rater
		s.Notice = ""
	case ScoreSelected:
		s.Draft.Score = ev.Score
		s.Notice = ""
	case Submitted:
		board, _, err := s.Board.Accept(s.Draft.Submission(), ev.ID, ev.At)
		if err != nil {
			s.Notice = Notice

			return s
		}

		return State{Board: board}
	}

	return s
}
