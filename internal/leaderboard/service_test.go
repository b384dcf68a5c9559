package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/event"
	"github.com/victornm/blindtest/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s, _ := makeService(t)
	ctx := context.Background()

	for _, e := range []domain.EventScoreCredited{
		credited("g1", "red", "u1", "1.5"),
		credited("g1", "red", "u2", "0.5"),
		credited("g1", "red", "u3", "3"),
		credited("g1", "blue", "u4", "1"),
	} {
		require.NoError(t, s.UpdateLeaderboard(ctx, e))
	}

	entries, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red"})
	require.NoError(t, err)

	// Lowest totals first, the order chat leaderboards have always used.
	got := make(map[domain.UserID]string)
	var order []domain.UserID
	for _, e := range entries {
		order = append(order, e.User)
		got[e.User] = e.Points.String()
	}
	assert.Equal(t, []domain.UserID{"u2", "u1", "u3"}, order)
	assert.Equal(t, map[domain.UserID]string{"u1": "1.5", "u2": "0.5", "u3": "3"}, got)

	limited, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	teams, err := s.Teams(ctx, "g1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"red", "blue"}, teams)
}

func TestService_UpdateLeaderboard_AnyOrder(t *testing.T) {
	ctx := context.Background()

	// One player finds three aliases of a four-alias group.
	credits := []domain.EventScoreCredited{
		credit("g1", "red", "u1", "0.5", "0.5"),
		credit("g1", "red", "u1", "0.5", "1"),
		credit("g1", "red", "u1", "0.5", "1.5"),
	}

	t.Run("reversed", func(t *testing.T) {
		s, _ := makeService(t)
		for i := len(credits) - 1; i >= 0; i-- {
			require.NoError(t, s.UpdateLeaderboard(ctx, credits[i]))
		}

		entries, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "1.5", entries[0].Points.String())
	})

	t.Run("through the event bus", func(t *testing.T) {
		eb := event.NewBus()
		s, _ := makeService(t, withEventBus(eb))

		events := make([]event.Event, 0, len(credits))
		for _, c := range credits {
			events = append(events, c)
		}
		eb.Publish(ctx, events...)
		eb.Stop()

		entries, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "1.5", entries[0].Points.String())
	})
}

func TestService_RemoveLeaderboard(t *testing.T) {
	s, rs := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateLeaderboard(ctx, credited("g1", "red", "u1", "1")))
	require.NoError(t, s.UpdateLeaderboard(ctx, credited("g1", "blue", "u2", "1")))

	require.NoError(t, s.RemoveLeaderboard(ctx, domain.EventTeamRemoved{Community: "g1", Team: "red"}))
	assert.False(t, rs.Exists("blindtest:g1:team:red:leaderboard"))
	assert.False(t, rs.Exists("blindtest:g1:team:red:time"))

	teams, err := s.Teams(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"blue"}, teams)

	// A new team under the same name starts from zero.
	require.NoError(t, s.UpdateLeaderboard(ctx, credited("g1", "red", "u3", "0.5")))
	entries, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.UserID("u3"), entries[0].User)
	assert.Equal(t, "0.5", entries[0].Points.String())
}

func TestService_DeleteLeaderboards(t *testing.T) {
	s, rs := makeService(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateLeaderboard(ctx, credited("g1", "red", "u1", "1")))
	require.NoError(t, s.UpdateLeaderboard(ctx, credited("g2", "red", "u1", "1")))

	require.NoError(t, s.DeleteLeaderboards(ctx, domain.EventGameDeleted{Community: "g1", Teams: []string{"red"}}))

	entries, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red"})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, rs.Exists("blindtest:g1:teams"))

	entries, err = s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g2", Team: "red"})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "other communities should keep their leaderboard")
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventScoreCredited
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish leaderboard.updated after receiving score.credited": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreCredited{credited("g1", "red", "u1", "0.5")},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")

				e := out.publishedEvents[0]
				assert.Equal(t, domain.CommunityID("g1"), e.Community)
				assert.Equal(t, "red", e.Team)
				require.Len(t, e.Entries, 1)
				assert.Equal(t, domain.UserID("u1"), e.Entries[0].User)
				assert.Equal(t, "0.5", e.Entries[0].Points.String())
			},
		},

		"should publish once per team": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreCredited{
						credited("g1", "red", "u1", "1"),
						credited("g1", "blue", "u2", "1"),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated events")
			},
		},

		"should publish once within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreCredited{
						credited("g1", "red", "u1", "1"),
						credited("g1", "red", "u2", "2"),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s, _ := makeService(t, withEventBus(eb))

			for _, e := range in.receivedEvents {
				require.NoError(t, s.UpdateLeaderboard(context.Background(), e))
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_Subscriptions(t *testing.T) {
	eb := event.NewBus()
	s, _ := makeService(t, withEventBus(eb))
	ctx := context.Background()

	eb.Publish(ctx, credited("g1", "red", "u1", "1"))
	eb.Stop()

	entries, err := s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	eb.Publish(ctx, domain.EventTeamRemoved{Community: "g1", Team: "red"})
	eb.Stop()

	entries, err = s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "red"})
	require.NoError(t, err)
	assert.Empty(t, entries)

	eb.Publish(ctx, credited("g1", "blue", "u2", "1"))
	eb.Stop()
	eb.Publish(ctx, domain.EventGameDeleted{Community: "g1", Teams: []string{"blue"}})
	eb.Stop()

	entries, err = s.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Community: "g1", Team: "blue"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// credited is the first credit of user, worth points.
func credited(community domain.CommunityID, team string, user domain.UserID, points string) domain.EventScoreCredited {
	return credit(community, team, user, points, points)
}

func credit(community domain.CommunityID, team string, user domain.UserID, points, total string) domain.EventScoreCredited {
	return domain.EventScoreCredited{
		Community:  community,
		Team:       team,
		User:       user,
		Points:     decimal.RequireFromString(points),
		UserTotal:  decimal.RequireFromString(total),
		TeamTotal:  decimal.RequireFromString(total),
		CreditTime: time.Now(),
	}
}

func makeService(t *testing.T, opts ...options) (*leaderboard.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "blindtest",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c), rs
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
