// Package question loads question sets. A question set is a JSON document:
//
//	[
//	  {"name": "song 1", "answer": ["believer", ["imagine dragons", "dragons"]]}
//	]
//
// Each answer is either a string, a single slot, or a list of strings, a group
// slot whose aliases each score separately.
package question

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/victornm/blindtest/internal/errors"
	"github.com/victornm/blindtest/internal/game"
)

var ErrSetNotFound = errors.New(errors.CodeNotFound,
	errors.WithReason("question_set_not_found"),
	errors.WithMessagef("question set not found"))

// Source loads a question set by name, questions in play order.
type Source interface {
	Load(ctx context.Context, set string) ([]game.Question, error)
}

// Document is the JSON form of a question set.
type Document []DocumentQuestion

type DocumentQuestion struct {
	Name   string       `json:"name"`
	Answer []AnswerSpec `json:"answer"`
}

// AnswerSpec is a single answer string or a group of aliases.
type AnswerSpec struct {
	Single  string
	Aliases []string
}

func (a *AnswerSpec) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		a.Single = ""
		return json.Unmarshal(b, &a.Aliases)
	}

	a.Aliases = nil
	return json.Unmarshal(b, &a.Single)
}

func (a AnswerSpec) MarshalJSON() ([]byte, error) {
	if a.Aliases != nil {
		return json.Marshal(a.Aliases)
	}

	return json.Marshal(a.Single)
}

// Parse decodes and validates a question set document.
func Parse(r io.Reader) ([]game.Question, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode question set: %w", err)
	}

	return doc.Questions()
}

// Questions validates the document and builds the game questions. Every
// question needs a name and at least one non-empty answer.
func (d Document) Questions() ([]game.Question, error) {
	out := make([]game.Question, 0, len(d))
	for i, dq := range d {
		q := game.Question{Name: dq.Name}
		if q.Name == "" {
			return nil, invalid("question %d has no name", i+1)
		}

		for j, a := range dq.Answer {
			var slot game.AnswerSlot
			if a.Aliases != nil {
				slot = game.NewGroupSlot(a.Aliases)
			} else {
				slot = game.NewSingleSlot(a.Single)
			}

			for _, alias := range slot.Aliases() {
				if alias == "" {
					return nil, invalid("question %q: answer %d is blank", dq.Name, j+1)
				}
			}
			if slot.OriginalSize() == 0 {
				return nil, invalid("question %q: answer %d has no alias", dq.Name, j+1)
			}

			q.Slots = append(q.Slots, slot)
		}

		if len(q.Slots) == 0 {
			return nil, invalid("question %q has no answer", dq.Name)
		}
		out = append(out, q)
	}

	return out, nil
}

// FromQuestions converts questions back to their document form.
func FromQuestions(questions []game.Question) Document {
	doc := make(Document, 0, len(questions))
	for _, q := range questions {
		dq := DocumentQuestion{Name: q.Name}
		for _, s := range q.Slots {
			if s.IsGroup() {
				dq.Answer = append(dq.Answer, AnswerSpec{Aliases: s.Aliases()})
			} else {
				dq.Answer = append(dq.Answer, AnswerSpec{Single: s.Aliases()[0]})
			}
		}
		doc = append(doc, dq)
	}

	return doc
}

func invalid(format string, args ...any) error {
	return errors.New(errors.CodePrecondition,
		errors.WithReason("invalid_question_set"),
		errors.WithMessagef(format, args...))
}
