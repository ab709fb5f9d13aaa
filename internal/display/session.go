package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tamias-pos/customer-display/internal/metrics"
	"github.com/tamias-pos/customer-display/pkg/global"
	"github.com/tamias-pos/customer-display/pkg/models"
	"go.uber.org/zap"
)

var (
	ErrUnknownCashier = errors.New("cashier does not belong to this store")
	ErrSessionClosed  = errors.New("display session closed")
)

// Snapshot is an immutable copy of everything a display view needs.
type Snapshot struct {
	SessionID  string           `json:"session_id"`
	Version    uint64           `json:"version"`
	Store      models.Store     `json:"store"`
	Cashiers   []models.Cashier `json:"cashiers"`
	Cashier    *models.Cashier  `json:"cashier,omitempty"`
	Channel    string           `json:"channel,omitempty"`
	Subscribed bool             `json:"subscribed"`

	State         State             `json:"state"`
	Cart          []models.CartItem `json:"cart"`
	Totals        models.Totals     `json:"totals"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	QrisURL       string            `json:"qris_url,omitempty"`
	Change        int64             `json:"change"`
}

// ChoosingCashier reports whether the cashier selection screen should be shown.
func (s Snapshot) ChoosingCashier() bool {
	return s.Cashier == nil
}

type SessionOptions struct {
	RevertDelay time.Duration
	Clock       Clock
	Logger      *zap.Logger
}

type commandKind int

const (
	cmdSelectCashier commandKind = iota
	cmdClearCashier
)

type command struct {
	kind      commandKind
	cashierID string
	reply     chan error
}

// Session is one customer display: a resolved store, at most one cashier
// channel subscription and the state machine fed by it. All of its state is
// owned by the run goroutine; other goroutines talk to it through commands and
// read published snapshots.
type Session struct {
	id          string
	store       models.Store
	cashiers    []models.Cashier
	broker      Broker
	clock       Clock
	revertDelay time.Duration
	log         *zap.Logger

	commands  chan command
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once

	// owned by run
	machine *Machine
	cashier *models.Cashier
	sub     Subscription
	revert  Timer
	version uint64

	mu       sync.Mutex
	latest   Snapshot
	watchers map[int]chan Snapshot
	nextID   int
	closed   bool
}

func NewSession(id string, res Resolution, broker Broker, opts SessionOptions) *Session {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RevertDelay <= 0 {
		opts.RevertDelay = 5 * time.Second
	}

	s := &Session{
		id:          id,
		store:       res.Store,
		cashiers:    append([]models.Cashier{}, res.Cashiers...),
		broker:      broker,
		clock:       opts.Clock,
		revertDelay: opts.RevertDelay,
		log:         opts.Logger.Named("display").With(zap.String("session_id", id), zap.String("store_id", res.Store.ID)),
		commands:    make(chan command),
		done:        make(chan struct{}),
		machine:     NewMachine(),
		watchers:    make(map[int]chan Snapshot),
	}
	s.latest = s.snapshot()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Start runs the session until ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	metrics.SessionsActive.Inc()
	go s.run(ctx)
}

// Close stops the session and waits until its subscription and timer are released.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// SelectCashier switches the observed channel to the given cashier.
func (s *Session) SelectCashier(ctx context.Context, cashierID string) error {
	return s.send(ctx, command{kind: cmdSelectCashier, cashierID: cashierID})
}

// ClearCashier drops the channel subscription and returns to cashier selection.
func (s *Session) ClearCashier(ctx context.Context) error {
	return s.send(ctx, command{kind: cmdClearCashier})
}

func (s *Session) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// Snapshot returns the most recently published state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Watch streams snapshots, starting with the current one. Slow readers only see
// the latest snapshot. The channel is closed when the session ends. A session
// may be watched again after every earlier watcher stopped.
func (s *Session) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- s.latest
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Viewers is the number of live watchers.
func (s *Session) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.teardown()

	for {
		var messages <-chan models.Message
		if s.sub != nil {
			messages = s.sub.Messages()
		}
		var revert <-chan time.Time
		if s.revert != nil {
			revert = s.revert.C()
		}

		select {
		case <-ctx.Done():
			return

		case cmd := <-s.commands:
			cmd.reply <- s.handleCommand(ctx, cmd)
			s.publish()

		case msg, ok := <-messages:
			if !ok {
				s.log.Warn("channel subscription ended", zap.String("channel", s.channel()))
				s.unsubscribe()
				s.publish()
				continue
			}
			if s.handleMessage(msg) {
				s.publish()
			}

		case <-revert:
			s.revert = nil
			s.machine.Revert()
			metrics.Reverts.Inc()
			s.publish()
		}
	}
}

func (s *Session) handleCommand(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdSelectCashier:
		cashier, ok := s.findCashier(cmd.cashierID)
		if !ok {
			return ErrUnknownCashier
		}
		if s.cashier != nil && s.cashier.ID == cashier.ID && s.sub != nil {
			return nil
		}

		s.unsubscribe()
		s.reset()
		s.cashier = &cashier
		s.subscribe(ctx)
		return nil

	case cmdClearCashier:
		s.unsubscribe()
		s.reset()
		s.cashier = nil
		return nil
	}
	return fmt.Errorf("unknown command %d", cmd.kind)
}

// handleMessage applies one broadcast and reports whether the state changed.
func (s *Session) handleMessage(msg models.Message) bool {
	ev, err := DecodeEvent(msg)
	if err != nil {
		s.log.Debug("ignoring broadcast", zap.Error(err))
		return false
	}

	metrics.EventsReceived.WithLabelValues(ev.Kind.String()).Inc()
	if ev.Malformed {
		metrics.EventsMalformed.WithLabelValues(ev.Kind.String()).Inc()
		s.log.Warn("malformed broadcast payload, using defaults", zap.String("event", msg.Event))
	}

	if err := s.apply(ev); err != nil {
		s.log.Error("display event handler failed", zap.String("event", msg.Event), zap.Error(err))
		return false
	}

	if s.machine.State() == StateSuccess {
		s.resetRevert()
	} else {
		s.stopRevert()
	}
	return true
}

// apply runs the transition on a copy so a failing handler leaves the last good state in place.
func (s *Session) apply(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic applying %s: %v", ev.Kind, r)
		}
	}()

	next := s.machine.Clone()
	next.Apply(ev)
	s.machine = next
	return nil
}

func (s *Session) subscribe(ctx context.Context) {
	channel := s.channel()

	subCtx, cancel := global.GetTimer(ctx)
	defer cancel()

	sub, err := s.broker.Subscribe(subCtx, channel)
	if err != nil {
		metrics.SubscribeFailures.Inc()
		s.log.Error("channel subscription failed", zap.String("channel", channel), zap.Error(err))
		return
	}

	s.sub = sub
	metrics.SubscriptionsActive.Inc()
	s.log.Info("subscribed to cashier channel", zap.String("channel", channel))

	go s.announce(ctx, sub, channel)
}

// announce publishes presence; it is advisory and never holds up event handling.
func (s *Session) announce(ctx context.Context, sub Subscription, channel string) {
	announceCtx, cancel := global.GetTimer(ctx)
	defer cancel()

	if err := sub.Announce(announceCtx, models.DisplayPresence(s.clock.Now())); err != nil {
		s.log.Warn("presence announce failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (s *Session) unsubscribe() {
	if s.sub == nil {
		return
	}
	if err := s.sub.Close(); err != nil {
		s.log.Warn("closing channel subscription", zap.String("channel", s.channel()), zap.Error(err))
	}
	s.sub = nil
	metrics.SubscriptionsActive.Dec()
}

func (s *Session) reset() {
	s.stopRevert()
	s.machine = NewMachine()
}

func (s *Session) resetRevert() {
	s.stopRevert()
	s.revert = s.clock.NewTimer(s.revertDelay)
}

func (s *Session) stopRevert() {
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
}

func (s *Session) teardown() {
	s.stopRevert()
	s.unsubscribe()
	metrics.SessionsActive.Dec()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w)
	}
	s.log.Debug("display session closed")
}

func (s *Session) findCashier(id string) (models.Cashier, bool) {
	for _, c := range s.cashiers {
		if c.ID == id {
			return c, true
		}
	}
	return models.Cashier{}, false
}

func (s *Session) channel() string {
	if s.cashier == nil {
		return ""
	}
	return ChannelName(s.store.ID, s.cashier.ID)
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		Version:    s.version,
		Store:      s.store,
		Cashiers:   append([]models.Cashier{}, s.cashiers...),
		Channel:    s.channel(),
		Subscribed: s.sub != nil,
	}
	if s.cashier != nil {
		c := *s.cashier
		snap.Cashier = &c
	}
	s.machine.fill(&snap)
	return snap
}

func (s *Session) publish() {
	s.version++
	snap := s.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	for _, w := range s.watchers {
		select {
		case <-w:
		default:
		}
		w <- snap
	}
}
