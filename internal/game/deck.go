package game

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Deck is the stack of remaining questions of a game. The current question is
// the last element and advancing pops it.
type Deck struct {
	questions []Question
}

// NewDeck builds a deck from questions given in play order. They are stored
// reversed so that the first question to play sits at the tail.
func NewDeck(questions []Question) *Deck {
	d := &Deck{questions: make([]Question, 0, len(questions))}
	for _, q := range questions {
		d.questions = append(d.questions, q.Clone())
	}
	slices.Reverse(d.questions)

	return d
}

// Current returns the question being played, false if the deck is empty.
func (d *Deck) Current() (*Question, bool) {
	if len(d.questions) == 0 {
		return nil, false
	}

	return &d.questions[len(d.questions)-1], true
}

// ConsumeMatch removes alias from the given slot of the current question and
// returns the points it was worth. The slot is removed once it is exhausted.
func (d *Deck) ConsumeMatch(slot int, alias string) decimal.Decimal {
	q, ok := d.Current()
	if !ok || slot < 0 || slot >= len(q.Slots) {
		return decimal.Zero
	}

	s := &q.Slots[slot]
	points := s.Points()
	if s.consume(alias) {
		q.Slots = slices.Delete(q.Slots, slot, slot+1)
	}

	return points
}

func (d *Deck) IsCurrentSolved() bool {
	q, ok := d.Current()
	return ok && q.Solved()
}

// Advance pops the current question.
func (d *Deck) Advance() (Question, bool) {
	if len(d.questions) == 0 {
		return Question{}, false
	}

	last := len(d.questions) - 1
	q := d.questions[last]
	d.questions = d.questions[:last]

	return q, true
}

// Len is the number of questions left, the current one included.
func (d *Deck) Len() int {
	return len(d.questions)
}
