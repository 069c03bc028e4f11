package live

import (
	"context"
	"sync"

	"github.com/dalemusser/donorlink/internal/app/system/timeouts"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscription is a running live query. Close it to stop delivery.
type Subscription struct {
	id     string
	hub    *Hub
	topics []string
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// ID returns a unique identifier, useful in logs.
func (s *Subscription) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

func (s *Subscription) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
		// a reload is already pending
	}
}

// Close detaches the subscription and waits for its goroutine to exit.
// After Close returns no further callback runs. Close is idempotent and
// safe on a nil Subscription. It must not be called from inside the
// subscription's own callbacks.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		<-s.done
		if s.hub != nil {
			s.hub.unregister(s)
		}
		s.hub.logger().Debug("live subscription closed", zap.String("sub_id", s.id))
	})
}

func (h *Hub) logger() *zap.Logger {
	if h == nil || h.log == nil {
		return zap.NewNop()
	}
	return h.log
}

// Subscribe starts a live query on h. load runs immediately and again
// after each notification on one of topics; a successful result goes to
// onUpdate and a failure to onError (which may be nil). Each load gets its
// own timeout. Callbacks run on the subscription's goroutine, one at a
// time.
func Subscribe[T any](h *Hub, topics []string, load func(ctx context.Context) (T, error), onUpdate func(T), onError func(error)) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		id:     uuid.NewString(),
		hub:    h,
		topics: append([]string(nil), topics...),
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if h != nil {
		h.register(s)
	}
	h.logger().Debug("live subscription opened",
		zap.String("sub_id", s.id),
		zap.Strings("topics", s.topics))

	go func() {
		defer close(s.done)
		for {
			loadCtx, loadCancel := context.WithTimeout(ctx, timeouts.Medium())
			v, err := load(loadCtx)
			loadCancel()

			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if onError != nil {
					onError(err)
				}
			} else {
				onUpdate(v)
			}

			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
		}
	}()

	return s
}

// Group closes several subscriptions together.
type Group struct {
	subs []*Subscription
}

// NewGroup returns a Group owning subs.
func NewGroup(subs ...*Subscription) *Group {
	return &Group{subs: subs}
}

// Close closes every member subscription. Safe on a nil Group.
func (g *Group) Close() {
	if g == nil {
		return
	}
	for _, s := range g.subs {
		s.Close()
	}
}
