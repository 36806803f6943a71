package enrichment

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"github.com/rs/zerolog"
)

// EventKind distinguishes a published result from a failed refresh.
type EventKind string

const (
	// EventPublished carries a new (or, on subscribe, the current) ResultSet.
	EventPublished EventKind = "published"

	// EventFailed reports a refresh that published nothing. Results holds the
	// unchanged current set.
	EventFailed EventKind = "failed"
)

// Event is delivered to listeners.
type Event struct {
	Kind       EventKind
	Generation uint64
	Results    ResultSet
	Err        error
}

// Listener receives slot events. Listeners run sequentially in publish order
// and must not block or call Subscribe or Refresh synchronously.
type Listener func(Event)

// Subscription identifies a registered listener.
type Subscription uint64

// Slot is a single-value observable holding the current ResultSet.
type Slot struct {
	current atomic.Pointer[ResultSet]

	// notifyMu serializes replacement and delivery so listeners observe
	// events in generation order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	listeners map[Subscription]Listener
	nextID    Subscription

	logger zerolog.Logger
}

// NewSlot returns a slot holding an empty ResultSet.
func NewSlot() *Slot {
	s := &Slot{
		listeners: make(map[Subscription]Listener),
		logger:    logging.NewLogger("enrichment-slot"),
	}
	s.current.Store(&ResultSet{Entities: []DisplayEntity{}})
	return s
}

// Current returns a copy of the published ResultSet.
func (s *Slot) Current() ResultSet {
	return s.current.Load().clone()
}

// Subscribe registers l and immediately delivers the current ResultSet to it.
func (s *Slot) Subscribe(l Listener) Subscription {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	s.mu.Unlock()

	cur := s.current.Load()
	l(Event{Kind: EventPublished, Generation: cur.Generation, Results: cur.clone()})

	return id
}

// Unsubscribe removes a listener. Unknown or already removed handles are ignored.
func (s *Slot) Unsubscribe(id Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// Subscribers returns the number of registered listeners.
func (s *Slot) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// publish replaces the current set if rs is newer and notifies listeners.
// It reports whether rs was accepted.
func (s *Slot) publish(rs ResultSet) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if rs.Generation <= s.current.Load().Generation {
		return false
	}

	rs.PublishedAt = time.Now()
	stored := rs.clone()
	s.current.Store(&stored)

	s.deliver(Event{Kind: EventPublished, Generation: rs.Generation, Results: stored})
	return true
}

// fail notifies listeners that refresh generation gen published nothing.
func (s *Slot) fail(gen uint64, err error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.deliver(Event{Kind: EventFailed, Generation: gen, Results: *s.current.Load(), Err: err})
}

// deliver must be called with notifyMu held.
func (s *Slot) deliver(ev Event) {
	s.mu.Lock()
	ids := make([]Subscription, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = s.listeners[id]
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("kind", string(ev.Kind)).
		Uint64("generation", ev.Generation).
		Int("listeners", len(listeners)).
		Msg("Delivering slot event")

	for _, l := range listeners {
		out := ev
		out.Results = ev.Results.clone()
		l(out)
	}
}
