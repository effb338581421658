package registration

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// EventName identifies a registration signal
type EventName string

const (
	EventUserRegistered EventName = "user_registered"
	EventUserActivated  EventName = "user_activated"
)

// RequestInfo is a snapshot of the request that triggered an event. The
// Fiber context is recycled once the handler returns, so subscribers get a
// copy instead of the live request.
type RequestInfo struct {
	Context   context.Context
	Method    string
	Path      string
	Host      string
	IP        string
	UserAgent string
}

// NewRequestInfo copies the relevant request attributes out of c
func NewRequestInfo(c *fiber.Ctx) RequestInfo {
	if c == nil {
		return RequestInfo{Context: context.Background()}
	}
	return RequestInfo{
		Context:   c.UserContext(),
		Method:    c.Method(),
		Path:      c.Path(),
		Host:      c.Hostname(),
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// Event is delivered to subscribers of a signal
type Event struct {
	Name       EventName
	Account    *Account
	Request    RequestInfo
	OccurredAt time.Time
}

// Subscriber consumes registration signals
type Subscriber interface {
	Receive(ctx context.Context, event Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event) error

// Receive implements Subscriber.
func (f SubscriberFunc) Receive(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type subscription struct {
	id         uint64
	subscriber Subscriber
}

// Signals is an in-process publish/subscribe bus. Publish runs subscribers
// synchronously in subscription order and stops at the first error, which is
// returned to the publisher.
type Signals struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventName][]subscription
	now    func() time.Time
}

// NewSignals returns an empty bus
func NewSignals() *Signals {
	return &Signals{
		subs: map[EventName][]subscription{},
		now:  time.Now,
	}
}

// Subscribe registers s for name and returns a function that removes it
func (b *Signals) Subscribe(name EventName, s Subscriber) func() {
	if s == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, subscriber: s})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(name, id) })
	}
}

func (b *Signals) unsubscribe(name EventName, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[name]
	kept := make([]subscription, 0, len(current))
	for _, sub := range current {
		if sub.id != id {
			kept = append(kept, sub)
		}
	}

	if len(kept) == 0 {
		delete(b.subs, name)
		return
	}
	b.subs[name] = kept
}

// Subscribers returns how many subscribers are attached to name
func (b *Signals) Subscribers(name EventName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Publish delivers event to every subscriber of event.Name
func (b *Signals) Publish(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[event.Name]))
	copy(subs, b.subs[event.Name])
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.subscriber.Receive(ctx, event); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "signal subscriber failed").
				WithMetadata(map[string]any{
					"signal": string(event.Name),
				})
		}
	}

	return nil
}
