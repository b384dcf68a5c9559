package redisbridge_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/gateway/redisbridge"
	"github.com/victornm/blindtest/internal/notify"
)

func TestBridge_Notify(t *testing.T) {
	rc := makeRedis(t)
	ctx := context.Background()

	sub := subscribe(t, rc, "bt:channel:c1")
	b := redisbridge.New(redisbridge.Config{Redis: rc, Prefix: "bt"})

	require.NoError(t, b.Notify(ctx, "c1", domain.Notification{
		ID:        "n1",
		Community: "g1",
		Kind:      domain.NotificationGameFinished,
		Title:     "The game is finished",
	}))

	var got notify.Message
	require.NoError(t, json.Unmarshal([]byte(receive(t, sub)), &got))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, domain.ChannelID("c1"), got.Channel)
	assert.Equal(t, domain.NotificationGameFinished, got.Kind)
	assert.NotEmpty(t, got.Body)
}

func TestBridge_PublishLeaderboardUpdated(t *testing.T) {
	rc := makeRedis(t)
	ctx := context.Background()

	sub := subscribe(t, rc, "bt:scoreboard:g1")
	b := redisbridge.New(redisbridge.Config{Redis: rc, Prefix: "bt"})

	require.NoError(t, b.PublishLeaderboardUpdated(ctx, domain.EventLeaderboardUpdated{
		Community: "g1",
		Team:      "red",
		Entries: []domain.LeaderboardEntry{
			{User: "u1", Points: decimal.RequireFromString("0.5")},
		},
	}))

	var got redisbridge.Scoreboard
	require.NoError(t, json.Unmarshal([]byte(receive(t, sub)), &got))
	assert.Equal(t, redisbridge.Scoreboard{
		Event:     domain.EventNameLeaderboardUpdated,
		Community: "g1",
		Team:      "red",
		Entries:   []redisbridge.ScoreboardEntry{{User: "u1", Points: "0.5"}},
	}, got)
}

func TestBridge_Inbound(t *testing.T) {
	rc := makeRedis(t)
	ctx := context.Background()

	h := handlerFunc(make(chan domain.MessageEvent, 1))
	b := redisbridge.New(redisbridge.Config{Redis: rc, Prefix: "bt", Handler: h})
	require.NoError(t, b.Start(ctx))

	require.NoError(t, rc.Publish(ctx, "bt:inbound", "not json").Err())
	require.NoError(t, rc.Publish(ctx, "bt:inbound",
		`{"community": "g1", "channel": "c1", "author": "u1", "text": "believer"}`).Err())

	select {
	case m := <-h:
		assert.Equal(t, domain.MessageEvent{Community: "g1", Channel: "c1", Author: "u1", Text: "believer"}, m)
	case <-time.After(time.Second):
		t.Fatal("inbound message should reach the handler")
	}

	require.NoError(t, b.Stop())
	require.NoError(t, b.Stop(), "stopping twice should be a no-op")
}

func TestBridge_Inbound_CommunitiesRunIndependently(t *testing.T) {
	rc := makeRedis(t)
	ctx := context.Background()

	h := gated{release: make(chan struct{}), handled: make(chan domain.MessageEvent, 8)}
	b := redisbridge.New(redisbridge.Config{Redis: rc, Prefix: "bt", Handler: h})
	require.NoError(t, b.Start(ctx))

	publish := func(community, text string) {
		require.NoError(t, rc.Publish(ctx, "bt:inbound",
			`{"community": "`+community+`", "channel": "c1", "author": "u1", "text": "`+text+`"}`).Err())
	}

	publish("slow", "stuck")
	for _, text := range []string{"1", "2", "3"} {
		publish("g1", text)
	}

	var texts []string
	for range 3 {
		select {
		case m := <-h.handled:
			assert.Equal(t, domain.CommunityID("g1"), m.Community, "the blocked community should not be handled yet")
			texts = append(texts, m.Text)
		case <-time.After(time.Second):
			t.Fatal("a blocked community should not delay the others")
		}
	}
	assert.Equal(t, []string{"1", "2", "3"}, texts, "messages of a community keep their order")

	close(h.release)
	select {
	case m := <-h.handled:
		assert.Equal(t, "stuck", m.Text)
	case <-time.After(time.Second):
		t.Fatal("the released message should be handled")
	}

	require.NoError(t, b.Stop())
}

// gated blocks the messages of community "slow" until release is closed.
type gated struct {
	release chan struct{}
	handled chan domain.MessageEvent
}

func (g gated) HandleMessage(_ context.Context, m domain.MessageEvent) error {
	if m.Community == "slow" {
		<-g.release
	}
	g.handled <- m
	return nil
}

type handlerFunc chan domain.MessageEvent

func (h handlerFunc) HandleMessage(_ context.Context, m domain.MessageEvent) error {
	h <- m
	return nil
}

func makeRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { _ = rc.Close() })

	return rc
}

func subscribe(t *testing.T, rc redis.UniversalClient, topic string) *redis.PubSub {
	t.Helper()

	ps := rc.Subscribe(context.Background(), topic)
	_, err := ps.Receive(context.Background())
	require.NoError(t, err, "should subscribe to %s", topic)
	t.Cleanup(func() { _ = ps.Close() })

	return ps
}

func receive(t *testing.T, ps *redis.PubSub) string {
	t.Helper()

	select {
	case msg := <-ps.Channel():
		return msg.Payload
	case <-time.After(time.Second):
		t.Fatal("should receive a message")
		return ""
	}
}
