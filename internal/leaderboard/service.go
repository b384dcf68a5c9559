// Package leaderboard projects team scores into Redis sorted sets so they can
// be read by other instances and pushed to scoreboard subscribers.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultLimit    = 20
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreCredited, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreCredited))
	})
	s.eb.Subscribe(domain.EventNameTeamRemoved, func(ctx context.Context, e event.Event) error {
		return s.RemoveLeaderboard(ctx, e.(domain.EventTeamRemoved))
	})
	s.eb.Subscribe(domain.EventNameGameDeleted, func(ctx context.Context, e event.Event) error {
		return s.DeleteLeaderboards(ctx, e.(domain.EventGameDeleted))
	})

	return s
}

type GetLeaderboardRequest struct {
	Community domain.CommunityID
	Team      string
	// Limit bounds the number of entries, 20 when zero, unbounded when negative.
	Limit int
}

// GetLeaderboard returns the projected entries of one team, sorted by points in
// ascending order.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) ([]domain.LeaderboardEntry, error) {
	stop := int64(req.Limit) - 1
	switch {
	case req.Limit == 0:
		stop = defaultLimit - 1
	case req.Limit < 0:
		stop = -1
	}

	res, err := s.redis.ZRangeWithScores(ctx, s.leaderboardKey(req.Community, req.Team), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			User:   domain.UserID(z.Member.(string)),
			Points: decimal.NewFromFloat(z.Score),
		})
	}

	return entries, nil
}

// Teams lists the teams that have a projected leaderboard in community.
func (s *Service) Teams(ctx context.Context, community domain.CommunityID) ([]string, error) {
	teams, err := s.redis.SMembers(ctx, s.teamsKey(community)).Result()
	if err != nil {
		return nil, fmt.Errorf("get teams: %w", err)
	}

	return teams, nil
}

// UpdateLeaderboard adds the credited points to the user's score. Increments
// commute, so credits may be applied in any order.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreCredited) error {
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZIncrBy(ctx, s.leaderboardKey(e.Community, e.Team), e.Points.InexactFloat64(), string(e.User))
		p.SAdd(ctx, s.teamsKey(e.Community), e.Team)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, e)
}

// RemoveLeaderboard drops the leaderboard of a removed team, so a team added
// later under the same name starts from scratch.
func (s *Service) RemoveLeaderboard(ctx context.Context, e domain.EventTeamRemoved) error {
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.leaderboardKey(e.Community, e.Team), s.timeKey(e.Community, e.Team))
		p.SRem(ctx, s.teamsKey(e.Community), e.Team)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove leaderboard: %w", err)
	}

	return nil
}

// DeleteLeaderboards drops every key of a deleted game.
func (s *Service) DeleteLeaderboards(ctx context.Context, e domain.EventGameDeleted) error {
	known, err := s.Teams(ctx, e.Community)
	if err != nil {
		return err
	}

	keys := []string{s.teamsKey(e.Community)}
	for _, team := range append(known, e.Teams...) {
		keys = append(keys, s.leaderboardKey(e.Community, team), s.timeKey(e.Community, team))
	}

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete leaderboards: %w", err)
	}

	return nil
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per team
// and publish interval. The SETNX lock is shared by every instance.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, e domain.EventScoreCredited) error {
	ok, err := s.redis.SetNX(ctx, s.timeKey(e.Community, e.Team), e.CreditTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, e)
}

func (s *Service) publishLeaderboard(ctx context.Context, e domain.EventScoreCredited) error {
	entries, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		Community: e.Community,
		Team:      e.Team,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: community=%s team=%s: %w", e.Community, e.Team, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Community: e.Community,
		Team:      e.Team,
		Entries:   entries,
	})

	return nil
}

func (s *Service) leaderboardKey(community domain.CommunityID, team string) string {
	return fmt.Sprintf("%s:%s:team:%s:leaderboard", s.prefix, community, team)
}

func (s *Service) timeKey(community domain.CommunityID, team string) string {
	return fmt.Sprintf("%s:%s:team:%s:time", s.prefix, community, team)
}

func (s *Service) teamsKey(community domain.CommunityID) string {
	return fmt.Sprintf("%s:%s:teams", s.prefix, community)
}
