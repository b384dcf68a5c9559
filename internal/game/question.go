package game

import (
	"slices"

	"github.com/shopspring/decimal"
)

var (
	fullPoint = decimal.NewFromInt(1)
	halfPoint = decimal.New(5, -1)
)

// AnswerSlot is one unit of required answer content of a question.
//
// A single slot holds exactly one alias and is worth a full point. A group slot
// holds several sub-answers (e.g. song title and artist), each worth half a
// point, unless the group was built with a single alias in which case that
// alias is worth a full point. Aliases only ever shrink, originalSize never changes.
type AnswerSlot struct {
	aliases      []string
	group        bool
	originalSize int
}

// NewSingleSlot returns a slot satisfied by exactly one answer.
func NewSingleSlot(text string) AnswerSlot {
	return AnswerSlot{
		aliases:      []string{Normalize(text)},
		originalSize: 1,
	}
}

// NewGroupSlot returns a slot satisfied incrementally by each of aliases.
// Aliases are normalized and deduplicated.
func NewGroupSlot(aliases []string) AnswerSlot {
	s := AnswerSlot{group: true}
	for _, a := range aliases {
		n := Normalize(a)
		if slices.Contains(s.aliases, n) {
			continue
		}
		s.aliases = append(s.aliases, n)
	}
	s.originalSize = len(s.aliases)

	return s
}

// Aliases returns a copy of the still unanswered aliases of the slot.
func (s AnswerSlot) Aliases() []string {
	return slices.Clone(s.aliases)
}

func (s AnswerSlot) IsGroup() bool { return s.group }

func (s AnswerSlot) OriginalSize() int { return s.originalSize }

// Points is the value of one matching alias of the slot.
func (s AnswerSlot) Points() decimal.Decimal {
	if !s.group || s.originalSize == 1 {
		return fullPoint
	}

	return halfPoint
}

func (s AnswerSlot) contains(normalized string) bool {
	return slices.Contains(s.aliases, normalized)
}

// consume removes alias from the slot and reports whether the slot is now exhausted.
func (s *AnswerSlot) consume(alias string) bool {
	if !s.group {
		return true
	}

	if i := slices.Index(s.aliases, alias); i >= 0 {
		s.aliases = slices.Delete(s.aliases, i, i+1)
	}

	return len(s.aliases) == 0
}

func (s AnswerSlot) clone() AnswerSlot {
	s.aliases = slices.Clone(s.aliases)
	return s
}

// Question is a named set of answer slots. It is solved once every slot is consumed.
type Question struct {
	Name  string
	Slots []AnswerSlot
}

func (q *Question) Solved() bool {
	return len(q.Slots) == 0
}

// Clone returns a deep copy so that playing a question never alters the loaded set.
func (q Question) Clone() Question {
	slots := make([]AnswerSlot, 0, len(q.Slots))
	for _, s := range q.Slots {
		slots = append(slots, s.clone())
	}

	return Question{Name: q.Name, Slots: slots}
}

// answerList is the disclosure of every accepted alias of q.
func (q *Question) answerList() [][]string {
	out := make([][]string, 0, len(q.Slots))
	for _, s := range q.Slots {
		out = append(out, s.Aliases())
	}

	return out
}
