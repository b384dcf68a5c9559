package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventNameScoreCredited      = "score.credited"
	EventNameGameStateChanged   = "game.state_changed"
	EventNameGameDeleted        = "game.deleted"
	EventNameTeamRemoved        = "team.removed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventScoreCredited struct {
	Community  CommunityID
	Team       string
	User       UserID
	Points     decimal.Decimal
	UserTotal  decimal.Decimal
	TeamTotal  decimal.Decimal
	CreditTime time.Time
}

func (EventScoreCredited) Name() string { return EventNameScoreCredited }

type EventGameStateChanged struct {
	Community CommunityID
	From      string
	To        string
}

func (EventGameStateChanged) Name() string { return EventNameGameStateChanged }

type EventGameDeleted struct {
	Community CommunityID
	Teams     []string
}

func (EventGameDeleted) Name() string { return EventNameGameDeleted }

type EventTeamRemoved struct {
	Community CommunityID
	Team      string
}

func (EventTeamRemoved) Name() string { return EventNameTeamRemoved }

// EventLeaderboardUpdated carries the projected ranking of one team.
type EventLeaderboardUpdated struct {
	Community CommunityID
	Team      string
	Entries   []LeaderboardEntry
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
