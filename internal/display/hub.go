package display

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HubOptions struct {
	RevertDelay time.Duration
	// ConnectGrace is how long a session may go without a viewer, before its
	// first one or after its last one left, before it is closed.
	ConnectGrace time.Duration
	Clock        Clock
	Logger       *zap.Logger
}

// Hub owns the open display sessions of this process.
type Hub struct {
	resolver *Resolver
	broker   Broker
	opts     HubOptions
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	grace    map[string]Timer
}

func NewHub(resolver *Resolver, broker Broker, opts HubOptions) *Hub {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		resolver: resolver,
		broker:   broker,
		opts:     opts,
		log:      opts.Logger.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
		grace:    make(map[string]Timer),
	}
}

// Resolve runs store resolution without opening a session.
func (h *Hub) Resolve(ctx context.Context, storeRef string) Resolution {
	return h.resolver.Resolve(ctx, storeRef)
}

// Open resolves storeRef and starts a session for it. The session is nil when
// the store could not be resolved.
func (h *Hub) Open(ctx context.Context, storeRef string) (*Session, Resolution) {
	res := h.resolver.Resolve(ctx, storeRef)
	if !res.Found {
		return nil, res
	}

	s := NewSession(uuid.NewString(), res, h.broker, SessionOptions{
		RevertDelay: h.opts.RevertDelay,
		Clock:       h.opts.Clock,
		Logger:      h.opts.Logger,
	})

	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()

	s.Start(h.ctx)
	go h.forget(s)
	h.closeUnwatched(s)

	h.log.Info("display session opened",
		zap.String("session_id", s.ID()),
		zap.String("store_id", res.Store.ID),
		zap.Int("cashiers", len(res.Cashiers)))
	return s, res
}

func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Close ends the session with the given id, if it is still open.
func (h *Hub) Close(id string) {
	if s, ok := h.Get(id); ok {
		s.Close()
	}
}

// Release is called when a viewer stops watching s. The session stays open
// for ConnectGrace so a reconnecting viewer finds it; without a grace period it
// closes at once.
func (h *Hub) Release(s *Session) {
	if s.Viewers() > 0 {
		return
	}
	if h.opts.ConnectGrace <= 0 {
		s.Close()
		return
	}
	h.closeUnwatched(s)
}

// closeUnwatched arms the grace timer of s, replacing any earlier one.
func (h *Hub) closeUnwatched(s *Session) {
	if h.opts.ConnectGrace <= 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, open := h.sessions[s.ID()]; !open {
		return
	}
	if t, ok := h.grace[s.ID()]; ok {
		t.Stop()
	}
	h.grace[s.ID()] = h.opts.Clock.AfterFunc(h.opts.ConnectGrace, func() {
		if s.Viewers() == 0 {
			h.log.Info("closing display session nobody watches", zap.String("session_id", s.ID()))
			s.Close()
		}
	})
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every session and waits for them to release their subscriptions.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	h.cancel()
	for _, s := range sessions {
		s.Close()
	}
}

func (h *Hub) forget(s *Session) {
	<-s.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.ID())
	if t, ok := h.grace[s.ID()]; ok {
		t.Stop()
		delete(h.grace, s.ID())
	}
}
