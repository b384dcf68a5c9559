// Package notify renders game notifications and delivers them to chat gateways.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/blindtest/internal/domain"
)

const maxConcurrent = 16

// Notifier delivers one notification to one channel.
type Notifier interface {
	Notify(ctx context.Context, channel domain.ChannelID, n domain.Notification) error
}

type NotifierFunc func(ctx context.Context, channel domain.ChannelID, n domain.Notification) error

func (f NotifierFunc) Notify(ctx context.Context, channel domain.ChannelID, n domain.Notification) error {
	return f(ctx, channel, n)
}

// Fanout delivers every notification through all of its notifiers. A failure
// of one does not stop the others; errors are joined.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, channel domain.ChannelID, n domain.Notification) error {
	var (
		eg   errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	eg.SetLimit(maxConcurrent)

	for _, nf := range f {
		eg.Go(func() error {
			if err := nf.Notify(ctx, channel, n); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("notify %s: %w", channel, errors.Join(errs...))
	}

	return nil
}
