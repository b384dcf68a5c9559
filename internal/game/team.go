package game

import (
	"cmp"
	"iter"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/victornm/blindtest/internal/domain"
)

// Team is a group of players answering in one channel, with its ledger.
type Team struct {
	Name    string
	Channel domain.ChannelID

	leaderboard map[domain.UserID]decimal.Decimal
	total       decimal.Decimal
}

func NewTeam(name string, channel domain.ChannelID) *Team {
	return &Team{
		Name:        name,
		Channel:     channel,
		leaderboard: make(map[domain.UserID]decimal.Decimal),
	}
}

// Credit adds points to user and to the team total, and returns the new user total.
// It is the only way scores change.
func (t *Team) Credit(user domain.UserID, points decimal.Decimal) decimal.Decimal {
	p := t.leaderboard[user].Add(points)
	t.leaderboard[user] = p
	t.total = t.total.Add(points)

	return p
}

func (t *Team) Total() decimal.Decimal { return t.total }

func (t *Team) Points(user domain.UserID) decimal.Decimal { return t.leaderboard[user] }

// Ranked yields users sorted by points in ascending order, lowest scorer first,
// ties ordered by user id. At most limit entries are produced, all of them when
// limit <= 0. Each iteration works on a fresh snapshot of the ledger.
func (t *Team) Ranked(limit int) iter.Seq2[domain.UserID, decimal.Decimal] {
	return func(yield func(domain.UserID, decimal.Decimal) bool) {
		users := slices.SortedFunc(maps.Keys(t.leaderboard), func(a, b domain.UserID) int {
			if c := t.leaderboard[a].Cmp(t.leaderboard[b]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		for i, u := range users {
			if limit > 0 && i >= limit {
				return
			}
			if !yield(u, t.leaderboard[u]) {
				return
			}
		}
	}
}

// Standing snapshots the team for a leaderboard query.
func (t *Team) Standing(limit int, export bool) domain.TeamStanding {
	s := domain.TeamStanding{
		Name:        t.Name,
		Channel:     t.Channel,
		TotalPoints: t.total,
		Entries:     []domain.LeaderboardEntry{},
	}
	for u, p := range t.Ranked(limit) {
		s.Entries = append(s.Entries, domain.LeaderboardEntry{User: u, Points: p})
	}

	if export {
		s.Export = &domain.TeamExport{
			Name:        t.Name,
			Channel:     t.Channel,
			Leaderboard: maps.Clone(t.leaderboard),
			TotalPoints: t.total,
		}
	}

	return s
}
