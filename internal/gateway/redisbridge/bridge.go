// Package redisbridge connects games to an external chat relay through Redis
// pub/sub. The relay publishes inbound messages on <prefix>:inbound and
// listens on <prefix>:channel:<id> for rendered notifications.
package redisbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/event"
	"github.com/victornm/blindtest/internal/notify"
)

// workerBuffer is the number of messages queued per community before the
// subscription stops reading.
const workerBuffer = 64

type (
	// Scoreboard is published on <prefix>:scoreboard:<community>.
	Scoreboard struct {
		Event     string            `json:"event"`
		Community string            `json:"community"`
		Team      string            `json:"team"`
		Entries   []ScoreboardEntry `json:"entries"`
	}

	ScoreboardEntry struct {
		User   string `json:"user"`
		Points string `json:"points"`
	}
)

// MessageHandler consumes inbound chat messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, m domain.MessageEvent) error
}

type Config struct {
	Redis    redis.UniversalClient
	Prefix   string
	EventBus *event.Bus
	Handler  MessageHandler
}

type Bridge struct {
	redis   redis.UniversalClient
	prefix  string
	handler MessageHandler

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func New(c Config) *Bridge {
	b := &Bridge{
		redis:   c.Redis,
		prefix:  c.Prefix,
		handler: c.Handler,
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return b.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return b
}

// Notify publishes the rendered notification on the channel topic.
func (b *Bridge) Notify(ctx context.Context, channel domain.ChannelID, n domain.Notification) error {
	return b.publish(ctx, fmt.Sprintf("%s:channel:%s", b.prefix, channel), notify.Render(channel, n))
}

// PublishLeaderboardUpdated pushes a team scoreboard to the community topic.
func (b *Bridge) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := Scoreboard{
		Event:     e.Name(),
		Community: string(e.Community),
		Team:      e.Team,
		Entries:   make([]ScoreboardEntry, 0, len(e.Entries)),
	}

	for _, entry := range e.Entries {
		data.Entries = append(data.Entries, ScoreboardEntry{
			User:   string(entry.User),
			Points: entry.Points.String(),
		})
	}

	return b.publish(ctx, fmt.Sprintf("%s:scoreboard:%s", b.prefix, e.Community), data)
}

// Start subscribes to the inbound topic and feeds every message to the handler
// until Stop is called. It returns once the subscription is confirmed.
func (b *Bridge) Start(ctx context.Context) error {
	topic := b.prefix + ":inbound"
	ps := b.redis.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redisbridge: subscribe %s: %w", topic, err)
	}

	b.mu.Lock()
	b.pubsub = ps
	b.done = make(chan struct{})
	b.mu.Unlock()

	go b.consume(context.WithoutCancel(ctx), ps.Channel(), b.done)

	slog.InfoContext(ctx, "redisbridge: subscribed", "topic", topic)
	return nil
}

// consume hands every message to the worker of its community. Messages of a
// community are handled in arrival order, communities run independently.
func (b *Bridge) consume(ctx context.Context, ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	var (
		wg      sync.WaitGroup
		workers = make(map[domain.CommunityID]chan domain.MessageEvent)
	)
	defer func() {
		for _, w := range workers {
			close(w)
		}
		wg.Wait()
	}()

	for msg := range ch {
		var m domain.MessageEvent
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			slog.WarnContext(ctx, "redisbridge: drop malformed message", "error", err)
			continue
		}

		w, ok := workers[m.Community]
		if !ok {
			w = make(chan domain.MessageEvent, workerBuffer)
			workers[m.Community] = w

			wg.Add(1)
			go func() {
				defer wg.Done()
				b.work(ctx, w)
			}()
		}

		w <- m
	}
}

func (b *Bridge) work(ctx context.Context, in <-chan domain.MessageEvent) {
	for m := range in {
		if err := b.handler.HandleMessage(ctx, m); err != nil {
			slog.ErrorContext(ctx, "redisbridge: handle message failed",
				"community", m.Community,
				"channel", m.Channel,
				"error", err,
			)
		}
	}
}

// Stop unsubscribes and waits for the queued messages to be handled.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	ps, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if ps == nil {
		return nil
	}

	err := ps.Close()
	<-done
	return err
}

func (b *Bridge) publish(ctx context.Context, topic string, data any) error {
	p, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("redisbridge: marshal %s: %v", topic, err)
	}

	if err := b.redis.Publish(ctx, topic, p).Err(); err != nil {
		return fmt.Errorf("redisbridge: publish %s: %w", topic, err)
	}

	return nil
}
