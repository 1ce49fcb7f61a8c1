package messages

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/spachava753/imessage/internal/logx"
)

const (
	// DefaultPollInterval is the pause between the end of one cycle and the
	// start of the next.
	DefaultPollInterval = 5 * time.Second
	// DefaultCursorMargin is subtracted from "now" when advancing the cursor.
	DefaultCursorMargin = 5 * time.Second
)

// SessionState is the lifecycle state of a [Session].
type SessionState int

const (
	StateIdle SessionState = iota
	StateRunning
	StateHalted
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// SessionConfig tunes a [Session]. Zero fields take defaults.
type SessionConfig struct {
	Codec    Codec
	Interval time.Duration
	Margin   time.Duration
	// Home replaces "~" in attachment paths. Defaults to os.UserHomeDir.
	Home string
	// PruneLedger drops remembered GUIDs whose sent time fell behind the
	// cursor, bounding memory for long sessions.
	PruneLedger bool
	Log         logx.Logger
}

// Session polls a [Store] and publishes each message it has not seen before.
//
// A Session owns its cursor and ledger; only its polling goroutine touches
// them. Cycles never overlap: the next one is scheduled after the previous
// query returns.
type Session struct {
	store    Store
	cfg      SessionConfig
	ledger   *Ledger
	notifier *Notifier
	log      logx.Logger

	mu     sync.Mutex
	state  SessionState
	cursor int64
	err    error
	done   chan struct{}
}

// NewSession returns an idle session over store.
func NewSession(store Store, cfg SessionConfig) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultCursorMargin
	}
	if cfg.Codec.Clock == nil {
		cfg.Codec.Clock = time.Now
	}
	if cfg.Home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Home = home
		}
	}
	log := cfg.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "poller"))

	return &Session{
		store:    store,
		cfg:      cfg,
		ledger:   NewLedger(),
		notifier: NewNotifier(log),
		log:      log,
		done:     make(chan struct{}),
	}
}

// Events returns the session's notifier. Subscribing before Start guarantees
// the first cycle's events are observed.
func (s *Session) Events() *Notifier { return s.notifier }

// Start begins polling and returns the notifier immediately; the first cycle
// runs asynchronously. Calling Start again, in any state, returns the same
// notifier without side effects.
//
// Cancelling ctx stops scheduling further cycles and interrupts a running
// query. A store failure halts the session and is published once as an
// EventError.
func (s *Session) Start(ctx context.Context) *Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return s.notifier
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.state = StateRunning
	s.cursor = s.cfg.Codec.Now(s.cfg.Margin)

	s.log.Debug("polling started",
		logx.Int64("cursor", s.cursor),
		logx.Bool("packed", s.cfg.Codec.Packed),
		logx.Duration("interval", s.cfg.Interval),
	)
	go s.run(ctx)
	return s.notifier
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the encoded lower bound for the next query.
func (s *Session) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Err returns why the session halted, or nil while idle or running.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session halts. Err then reports why, even for a
// subscriber that missed the error event.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.halt(ctx.Err(), false)
			return
		case <-timer.C:
		}

		if err := s.cycle(ctx); err != nil {
			s.halt(err, ctx.Err() == nil)
			return
		}
		timer.Reset(s.cfg.Interval)
	}
}

func (s *Session) cycle(ctx context.Context) error {
	cursor := s.Cursor()
	rows, err := s.store.MessagesSince(ctx, cursor)

	next := s.cfg.Codec.Now(s.cfg.Margin)
	s.mu.Lock()
	s.cursor = next
	s.mu.Unlock()

	if err != nil {
		return err
	}

	emitted := 0
	for _, r := range rows {
		if s.ledger.Seen(r.GUID) {
			continue
		}
		s.ledger.MarkSeen(r.GUID, r.Date)
		s.notifier.Publish(Event{Kind: EventMessage, Message: newMessage(r, s.cfg.Home)})
		emitted++
	}

	pruned := 0
	if s.cfg.PruneLedger {
		pruned = s.ledger.Prune(next)
	}

	s.log.Debug("poll cycle",
		logx.Int64("cursor", cursor),
		logx.Int("rows", len(rows)),
		logx.Int("emitted", emitted),
		logx.Int("pruned", pruned),
		logx.Int("ledger", s.ledger.Len()),
	)
	return nil
}

func (s *Session) halt(err error, publish bool) {
	s.mu.Lock()
	s.state = StateHalted
	s.err = err
	s.mu.Unlock()

	if publish {
		s.log.Warn("store query failed; polling halted, new messages will not be detected", logx.Err(err))
		s.notifier.Publish(Event{Kind: EventError, Err: err})
	} else {
		s.log.Debug("polling stopped", logx.Err(err))
	}
	s.notifier.Close()
	close(s.done)
}
