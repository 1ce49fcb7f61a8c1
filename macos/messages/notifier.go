package messages

import (
	"sync"
	"time"

	"github.com/spachava753/imessage/internal/logx"
)

// EventKind names the two event types a session publishes.
type EventKind string

const (
	// EventMessage carries a newly seen Message.
	EventMessage EventKind = "message"
	// EventError carries the query failure that halted the session.
	EventError EventKind = "error"
)

// Event is one notification from a polling session.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Message Message
	Err     error
}

const defaultSubscriberBuffer = 64

// Notifier fans session events out to any number of subscribers.
//
// Contract:
//   - Publish never blocks; a subscriber whose buffer is full misses that event.
//   - Subscribers only see events published after they attach.
//   - Close closes every subscriber channel; later subscribers get a closed channel.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	seq    uint64
	closed bool

	log logx.Logger
}

// NewNotifier returns a notifier with no subscribers.
func NewNotifier(log logx.Logger) *Notifier {
	return &Notifier{subs: map[uint64]chan Event{}, log: log}
}

// Subscribe attaches a subscriber with the given channel buffer (64 when <= 0).
// The returned function detaches it and closes the channel; it is safe to call
// more than once.
//
// A full buffer drops events, including a session's final EventError. Once
// the channel closes, [Session.Err] holds the reason.
func (n *Notifier) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	n.seq++
	id := n.seq
	n.subs[id] = ch
	n.mu.Unlock()

	unsubscribe := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers e to every current subscriber without blocking.
func (n *Notifier) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	// Holding the read lock keeps Close and unsubscribe from closing a channel
	// mid-send. Sends never block, so the lock is held briefly.
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	for id, ch := range n.subs {
		select {
		case ch <- e:
		default:
			n.log.Debug("event dropped (subscriber slow)",
				logx.String("kind", string(e.Kind)),
				logx.Int64("subscriber", int64(id)),
				logx.Int("queue_cap", cap(ch)),
			)
		}
	}
}

// Close detaches and closes all subscribers. Later publishes are ignored.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
