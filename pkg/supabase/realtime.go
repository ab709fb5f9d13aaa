package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/pkg/models"
)

const (
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
	joinRef           = "1"
)

// phoenixMessage is one frame of the Realtime (Phoenix channels v1) protocol.
type phoenixMessage struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref,omitempty"`
	JoinRef string `json:"join_ref,omitempty"`
}

// RealtimeURL turns a project URL into its Realtime websocket endpoint.
func RealtimeURL(supabaseURL, apiKey string) string {
	wsURL := strings.TrimRight(supabaseURL, "/")
	switch {
	case strings.HasPrefix(wsURL, "https"):
		wsURL = "wss" + strings.TrimPrefix(wsURL, "https")
	case strings.HasPrefix(wsURL, "http"):
		wsURL = "ws" + strings.TrimPrefix(wsURL, "http")
	}
	return wsURL + "/realtime/v1/websocket?apikey=" + url.QueryEscape(apiKey) + "&vsn=1.0.0"
}

// Topic is the Realtime topic for a broadcast channel name.
func Topic(channel string) string {
	return "realtime:" + channel
}

// RealtimeBroker opens one Realtime socket per subscription, so closing a
// subscription releases everything it held.
type RealtimeBroker struct {
	url       string
	dialer    websocket.Dialer
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewRealtimeBroker(supabaseURL, apiKey string, logger *zap.Logger) *RealtimeBroker {
	return &RealtimeBroker{
		url:       RealtimeURL(supabaseURL, apiKey),
		dialer:    websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		heartbeat: heartbeatInterval,
		logger:    logger.Named("realtime"),
	}
}

// Subscribe joins the channel and returns after the server acknowledged the join.
func (b *RealtimeBroker) Subscribe(ctx context.Context, channel string) (display.Subscription, error) {
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	s := &RealtimeSubscription{
		broker:   b,
		conn:     conn,
		channel:  channel,
		topic:    Topic(channel),
		messages: make(chan models.Message),
		done:     make(chan struct{}),
		ref:      1,
	}

	if err := s.join(ctx); err != nil {
		stop()
		conn.Close()
		return nil, err
	}
	if !stop() {
		return nil, fmt.Errorf("join %s: %w", channel, ctx.Err())
	}

	go s.readLoop()
	go s.heartbeatLoop()
	return s, nil
}

type RealtimeSubscription struct {
	broker   *RealtimeBroker
	conn     *websocket.Conn
	channel  string
	topic    string
	messages chan models.Message
	done     chan struct{}

	writeMu sync.Mutex
	ref     int
	once    sync.Once
}

func (s *RealtimeSubscription) Messages() <-chan models.Message {
	return s.messages
}

func (s *RealtimeSubscription) join(ctx context.Context) error {
	err := s.write(phoenixMessage{
		Topic: s.topic,
		Event: "phx_join",
		Payload: map[string]any{
			"config": map[string]any{
				"broadcast": map[string]any{"self": false, "ack": false},
				"presence":  map[string]any{"key": ""},
			},
		},
		Ref:     joinRef,
		JoinRef: joinRef,
	})
	if err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
		defer s.conn.SetReadDeadline(time.Time{})
	}

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await join reply: %w", err)
		}
		msg := gjson.ParseBytes(frame)
		if msg.Get("topic").String() != s.topic || msg.Get("event").String() != "phx_reply" || msg.Get("ref").String() != joinRef {
			continue
		}
		if status := msg.Get("payload.status").String(); status != "ok" {
			return fmt.Errorf("join %s rejected: %s %s", s.channel, status, msg.Get("payload.response").Raw)
		}
		return nil
	}
}

func (s *RealtimeSubscription) readLoop() {
	defer close(s.messages)
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.broker.logger.Warn("realtime connection lost", zap.String("channel", s.channel), zap.Error(err))
			}
			return
		}

		msg := gjson.ParseBytes(frame)
		if msg.Get("topic").String() != s.topic {
			continue
		}

		switch msg.Get("event").String() {
		case "broadcast":
			out := models.Message{
				Event:   msg.Get("payload.event").String(),
				Payload: json.RawMessage(msg.Get("payload.payload").Raw),
			}
			if out.Event == "" {
				continue
			}
			select {
			case s.messages <- out:
			case <-s.done:
				return
			}
		case "phx_error", "phx_close":
			s.broker.logger.Warn("realtime channel closed by server", zap.String("channel", s.channel), zap.String("event", msg.Get("event").String()))
			return
		}
	}
}

func (s *RealtimeSubscription) heartbeatLoop() {
	ticker := time.NewTicker(s.broker.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.write(phoenixMessage{Topic: "phoenix", Event: "heartbeat", Payload: map[string]any{}})
			if err != nil {
				s.broker.logger.Warn("realtime heartbeat failed", zap.String("channel", s.channel), zap.Error(err))
				return
			}
		}
	}
}

// Announce tracks presence for this socket on the channel.
func (s *RealtimeSubscription) Announce(ctx context.Context, p models.Presence) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(phoenixMessage{
		Topic: s.topic,
		Event: "presence",
		Payload: map[string]any{
			"type":    "presence",
			"event":   "track",
			"payload": p,
		},
		JoinRef: joinRef,
	})
}

func (s *RealtimeSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)

		if leaveErr := s.write(phoenixMessage{Topic: s.topic, Event: "phx_leave", Payload: map[string]any{}, JoinRef: joinRef}); leaveErr != nil {
			s.broker.logger.Debug("realtime leave not sent", zap.String("channel", s.channel), zap.Error(leaveErr))
		}

		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// write assigns the next ref and sends one frame; gorilla allows a single concurrent writer.
func (s *RealtimeSubscription) write(msg phoenixMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	if msg.Ref == "" {
		s.ref++
		msg.Ref = strconv.Itoa(s.ref)
	}
	return s.conn.WriteJSON(msg)
}
