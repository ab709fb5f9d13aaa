package displaytest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/pkg/models"
)

// Broker is an in-memory display.Broker that counts subscribe and close calls.
type Broker struct {
	mu         sync.Mutex
	active     map[*Subscription]struct{}
	subscribes int
	closes     int
	channels   []string
	announced  []models.Presence

	// Err, when set, fails every Subscribe call.
	Err error
}

func NewBroker() *Broker {
	return &Broker{active: make(map[*Subscription]struct{})}
}

func (b *Broker) Subscribe(ctx context.Context, channel string) (display.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}

	s := &Subscription{
		broker:   b,
		channel:  channel,
		messages: make(chan models.Message),
		done:     make(chan struct{}),
	}
	b.active[s] = struct{}{}
	b.subscribes++
	b.channels = append(b.channels, channel)
	return s, nil
}

// Active is the number of subscriptions opened and not yet closed.
func (b *Broker) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.active)
}

func (b *Broker) Subscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes
}

func (b *Broker) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Channels lists every channel name subscribed to, in order.
func (b *Broker) Channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.channels...)
}

func (b *Broker) Announced() []models.Presence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Presence{}, b.announced...)
}

// Publish delivers a broadcast to the live subscription on channel and reports
// whether a subscriber took it.
func (b *Broker) Publish(channel, event string, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	return b.PublishRaw(channel, models.Message{Event: event, Payload: raw})
}

func (b *Broker) PublishRaw(channel string, msg models.Message) bool {
	b.mu.Lock()
	var target *Subscription
	for s := range b.active {
		if s.channel == channel {
			target = s
		}
	}
	b.mu.Unlock()

	if target == nil {
		return false
	}
	select {
	case target.messages <- msg:
		return true
	case <-target.done:
		return false
	case <-time.After(time.Second):
		return false
	}
}

type Subscription struct {
	broker   *Broker
	channel  string
	messages chan models.Message
	done     chan struct{}
	once     sync.Once
}

func (s *Subscription) Messages() <-chan models.Message {
	return s.messages
}

func (s *Subscription) Announce(ctx context.Context, p models.Presence) error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	s.broker.announced = append(s.broker.announced, p)
	return nil
}

func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.broker.mu.Lock()
		delete(s.broker.active, s)
		s.broker.closes++
		s.broker.mu.Unlock()
	})
	return nil
}
