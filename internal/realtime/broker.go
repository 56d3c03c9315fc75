package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriptionBuffer = 64

// Transport moves changes between server instances. Listen blocks until
// ctx is done or the transport fails.
type Transport interface {
	Publish(ctx context.Context, c Change) error
	Listen(ctx context.Context, deliver func(Change)) error
}

// Broker fans changes out to local subscriptions.
type Broker struct {
	transport Transport
	log       *slog.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewBroker(transport Transport, log *slog.Logger) *Broker {
	return &Broker{
		transport: transport,
		log:       log,
		subs:      make(map[string]*Subscription),
	}
}

// Run consumes the transport until ctx is cancelled. There is no
// reconnect: when the transport fails, subscriptions simply go quiet.
func (b *Broker) Run(ctx context.Context) error {
	return b.transport.Listen(ctx, b.dispatch)
}

func (b *Broker) Publish(ctx context.Context, c Change) error {
	return b.transport.Publish(ctx, c)
}

// Subscribe registers filter. The caller must Close the subscription.
func (b *Broker) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		filter: filter,
		ch:     make(chan Change, subscriptionBuffer),
		broker: b,
	}
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	b.log.Debug("subscription opened", "subscription_id", sub.id, "filter", filter.String())
	return sub
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) dispatch(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		if !sub.filter.Matches(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			b.log.Warn("subscriber too slow, dropping change",
				"subscription_id", id, "table", c.Table, "event", c.Event)
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(sub.ch)
	}
	b.mu.Unlock()
	b.log.Debug("subscription closed", "subscription_id", sub.id)
}

type Subscription struct {
	id     string
	filter Filter
	ch     chan Change
	broker *Broker
	once   sync.Once
}

// C is closed once the subscription is closed.
func (s *Subscription) C() <-chan Change { return s.ch }

func (s *Subscription) Filter() Filter { return s.filter }

func (s *Subscription) Close() {
	s.once.Do(func() { s.broker.remove(s) })
}

// LocalTransport delivers changes within a single process.
type LocalTransport struct {
	ch chan Change
}

func NewLocalTransport(buffer int) *LocalTransport {
	return &LocalTransport{ch: make(chan Change, buffer)}
}

func (t *LocalTransport) Publish(ctx context.Context, c Change) error {
	select {
	case t.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *LocalTransport) Listen(ctx context.Context, deliver func(Change)) error {
	for {
		select {
		case c := <-t.ch:
			deliver(c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
