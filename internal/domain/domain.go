package domain

import (
	"github.com/shopspring/decimal"
)

// CommunityID identifies a community (a guild) owning at most one game.
type CommunityID string

// ChannelID identifies a chat channel. Channel ids are unique across communities.
type ChannelID string

// UserID identifies a chat user.
type UserID string

// MessageEvent is an inbound chat message as delivered by a gateway.
type MessageEvent struct {
	Community CommunityID `json:"community"`
	Channel   ChannelID   `json:"channel"`
	Author    UserID      `json:"author"`
	Text      string      `json:"text"`
	// Automated is set for messages sent by bots or webhooks. They never reach a game.
	Automated bool `json:"automated,omitempty"`
}

// LeaderboardEntry is the score of one user within a team.
type LeaderboardEntry struct {
	User   UserID          `json:"user"`
	Points decimal.Decimal `json:"points"`
}

// TeamStanding is the read-only view of a team returned by leaderboard queries.
// Entries are sorted by points in ascending order.
type TeamStanding struct {
	Name        string             `json:"name"`
	Channel     ChannelID          `json:"channel"`
	TotalPoints decimal.Decimal    `json:"total_points"`
	Entries     []LeaderboardEntry `json:"entries"`
	Export      *TeamExport        `json:"export,omitempty"`
}

// TeamExport is the structured export of a team, the full leaderboard keyed by user.
type TeamExport struct {
	Name        string                     `json:"name"`
	Channel     ChannelID                  `json:"channel"`
	Leaderboard map[UserID]decimal.Decimal `json:"leaderboard"`
	TotalPoints decimal.Decimal            `json:"total_points"`
}

// Leaderboard lists the standings of every team of a community, in team order.
type Leaderboard struct {
	Community CommunityID    `json:"community"`
	State     string         `json:"state"`
	Teams     []TeamStanding `json:"teams"`
}
