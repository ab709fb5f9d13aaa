package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/pkg/global"
	"github.com/tamias-pos/customer-display/pkg/models"
	"go.uber.org/zap"
)

// PresenceKey is the hash holding one field per display listening on channel.
func PresenceKey(channel string) string {
	return fmt.Sprintf("presence:%s", channel)
}

// EncodeBroadcast is the wire form of a broadcast on a Redis channel.
func EncodeBroadcast(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(models.Message{Event: event, Payload: raw})
}

func DecodeBroadcast(data string) (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return models.Message{}, fmt.Errorf("failed to unmarshal broadcast: %w", err)
	}
	if msg.Event == "" {
		return models.Message{}, fmt.Errorf("broadcast has no event name")
	}
	return msg, nil
}

// Broker carries cashier channels over Redis pub/sub.
type Broker struct {
	client      *redis.Client
	presenceTTL time.Duration
	log         *zap.Logger
}

func NewBroker(client *redis.Client, presenceTTL time.Duration, log *zap.Logger) *Broker {
	return &Broker{
		client:      client,
		presenceTTL: presenceTTL,
		log:         log.Named("redis_broker"),
	}
}

func (b *Broker) Ping(ctx context.Context) error {
	return Ping(ctx, b.client)
}

// Subscribe returns once Redis has confirmed the subscription.
func (b *Broker) Subscribe(ctx context.Context, channel string) (display.Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	s := &Subscription{
		broker:   b,
		channel:  channel,
		member:   uuid.NewString(),
		ps:       ps,
		messages: make(chan models.Message),
		done:     make(chan struct{}),
	}
	go s.forward(ps.Channel())
	return s, nil
}

func (b *Broker) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := EncodeBroadcast(event, payload)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event, channel, err)
	}
	return nil
}

// Presence lists the displays that announced themselves on channel and have not left.
func (b *Broker) Presence(ctx context.Context, channel string) ([]models.Presence, error) {
	fields, err := b.client.HGetAll(ctx, PresenceKey(channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence for %s: %w", channel, err)
	}

	presences := make([]models.Presence, 0, len(fields))
	for member, raw := range fields {
		var p models.Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			b.log.Warn("skipping unreadable presence entry", zap.String("channel", channel), zap.String("member", member))
			continue
		}
		presences = append(presences, p)
	}
	return presences, nil
}

type Subscription struct {
	broker   *Broker
	channel  string
	member   string
	ps       *redis.PubSub
	messages chan models.Message
	done     chan struct{}
	once     sync.Once

	// mu orders Announce against Close so a late announce cannot outlive the HDel.
	mu     sync.Mutex
	closed bool
}

func (s *Subscription) Messages() <-chan models.Message {
	return s.messages
}

func (s *Subscription) forward(in <-chan *redis.Message) {
	defer close(s.messages)
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			msg, err := DecodeBroadcast(m.Payload)
			if err != nil {
				s.broker.log.Warn("dropping broadcast", zap.String("channel", s.channel), zap.Error(err))
				continue
			}
			select {
			case s.messages <- msg:
			case <-s.done:
				return
			}
		}
	}
}

// Announce records this display in the channel's presence hash. It does
// nothing once the subscription is closed.
func (s *Subscription) Announce(ctx context.Context, p models.Presence) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	key := PresenceKey(s.channel)
	pipe := s.broker.client.TxPipeline()
	pipe.HSet(ctx, key, s.member, raw)
	if s.broker.presenceTTL > 0 {
		pipe.Expire(ctx, key, s.broker.presenceTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record presence on %s: %w", s.channel, err)
	}
	return nil
}

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		ctx, cancel := global.GetDefaultTimer()
		defer cancel()
		if delErr := s.broker.client.HDel(ctx, PresenceKey(s.channel), s.member).Err(); delErr != nil {
			s.broker.log.Warn("failed to clear presence", zap.String("channel", s.channel), zap.Error(delErr))
		}
		err = s.ps.Close()
	})
	return err
}
