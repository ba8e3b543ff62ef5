package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/logging"
)

type EventType string

const (
	SignedIn       EventType = "SIGNED_IN"
	SignedOut      EventType = "SIGNED_OUT"
	TokenRefreshed EventType = "TOKEN_REFRESHED"
	UserUpdated    EventType = "USER_UPDATED"
)

// Event is a session state change. AccessToken is the session's token when
// one is live, so subscribers can write as the user.
type Event struct {
	Type        EventType
	UserID      string
	Email       string
	AccessToken string
	At          time.Time
}

// Notifier delivers session events to subscribers on a single dispatcher
// goroutine, in emission order.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[uint64]func(Event)
	nextID uint64
	closed bool

	events  chan Event
	done    chan struct{}
	started bool
	log     *logrus.Entry
}

// Subscription is returned by Subscribe; call Unsubscribe to stop receiving events.
type Subscription struct {
	n    *Notifier
	id   uint64
	once sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.n.mu.Lock()
		delete(s.n.subs, s.id)
		s.n.mu.Unlock()
	})
}

// NewNotifier creates a notifier buffering up to buffer pending events.
func NewNotifier(buffer int, log logrus.FieldLogger) *Notifier {
	if buffer < 1 {
		buffer = 64
	}
	return &Notifier{
		subs:   make(map[uint64]func(Event)),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		log:    logging.Component(log, "session"),
	}
}

// Start launches the dispatcher. Calling it more than once has no effect.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true
	go n.run()
}

// Stop rejects new events, delivers the ones already queued and returns once
// the dispatcher has exited.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		if n.started {
			<-n.done
		}
		return
	}
	n.closed = true
	close(n.events)
	started := n.started
	n.mu.Unlock()

	if started {
		<-n.done
	}
}

func (n *Notifier) Subscribe(fn func(Event)) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.subs[n.nextID] = fn
	return &Subscription{n: n, id: n.nextID}
}

// Emit queues e for delivery. Events are dropped once the notifier is stopped
// or when the queue is full.
func (n *Notifier) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.events <- e:
	default:
		n.log.WithField("event", e.Type).Warn("session event queue full, dropping event")
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for e := range n.events {
		n.mu.RLock()
		handlers := make([]func(Event), 0, len(n.subs))
		for _, fn := range n.subs {
			handlers = append(handlers, fn)
		}
		n.mu.RUnlock()

		for _, fn := range handlers {
			n.deliver(fn, e)
		}
	}
}

func (n *Notifier) deliver(fn func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.log.WithField("event", e.Type).Errorf("session subscriber panicked: %v", r)
		}
	}()
	fn(e)
}
