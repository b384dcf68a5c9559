package game

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize collapses whitespace runs into single spaces, trims the ends and lowercases.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Match is the result of a successful answer lookup.
type Match struct {
	Slot   int
	Alias  string
	Points decimal.Decimal
}

// MatchAnswer looks raw up in the slots of q. The first slot holding the
// normalized input wins.
func MatchAnswer(q *Question, raw string) (Match, bool) {
	n := Normalize(raw)
	for i, s := range q.Slots {
		if s.contains(n) {
			return Match{Slot: i, Alias: n, Points: s.Points()}, true
		}
	}

	return Match{}, false
}
