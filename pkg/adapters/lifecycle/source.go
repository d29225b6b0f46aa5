// Package lifecycle bridges session events to aretw0/lifecycle.
package lifecycle

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/scribe/pkg/session"
)

type sessionSource struct {
	events <-chan session.Event
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits session events.
func NewSource(events <-chan session.Event) lifecycle.Source {
	return &sessionSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *sessionSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *sessionSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

// Subscriber is the part of session.Controller a channel subscription needs.
type Subscriber interface {
	Subscribe(fn func(session.Event)) (unsubscribe func())
}

// Channel subscribes to c and delivers its events on a buffered channel.
// Events that do not fit in the buffer are dropped and counted; listeners of
// the controller must never block it. cancel unsubscribes and closes the
// channel.
func Channel(c Subscriber, buffer int) (events <-chan session.Event, dropped func() int, cancel func()) {
	ch := make(chan session.Event, buffer)
	var (
		mu     sync.Mutex
		closed bool
		lost   int
	)
	unsubscribe := c.Subscribe(func(e session.Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			lost++
		}
	})

	dropped = func() int {
		mu.Lock()
		defer mu.Unlock()
		return lost
	}
	var once sync.Once
	cancel = func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, dropped, cancel
}
