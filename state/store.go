package state

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/donnyesq/gamble/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Observer receives snapshots in transition order.
type Observer func(Snapshot)

// Store owns the current snapshot. Transitions are serialized; every
// subscriber sees every published snapshot in the order it was applied.
type Store struct {
	mu      sync.Mutex
	current Snapshot
	subs    map[string]*Subscription
	closed  bool
	logger  zerolog.Logger
}

// NewStore creates a store holding Initial().
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		current: Initial(),
		subs:    make(map[string]*Subscription),
		logger:  logger.With().Str("component", "state_store").Logger(),
	}
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Apply runs t against the current snapshot and publishes the result.
// A panicking transition leaves the state unchanged apart from Err.
func (s *Store) Apply(t Transition) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := run(t, s.current)
	if err != nil {
		s.logger.Error().Err(err).Msg("Transition panicked")
		next = SetErr(err)(s.current)
	}
	s.current = next

	for _, sub := range s.subs {
		sub.enqueue(next)
	}
	return next
}

func run(t Transition, current Snapshot) (next Snapshot, appErr *errors.AppError) {
	defer func() {
		if r := recover(); r != nil {
			appErr = errors.NewWithDebug(errors.ErrInternal, "state transition failed", fmt.Sprintf("%v\n%s", r, debug.Stack()))
		}
	}()
	return t(current), nil
}

// Subscribe registers fn and delivers the current snapshot to it first. On a
// closed store fn still receives the current snapshot once, then Done closes.
func (s *Store) Subscribe(fn Observer) *Subscription {
	sub := &Subscription{
		ID:       uuid.New().String(),
		store:    s,
		observer: fn,
		done:     make(chan struct{}),
		logger:   s.logger,
	}
	sub.cond = sync.NewCond(&sub.mu)

	s.mu.Lock()
	if s.closed {
		current := s.current
		s.mu.Unlock()
		sub.stopped = true
		go func() {
			defer close(sub.done)
			sub.deliver(current)
		}()
		return sub
	}
	sub.enqueue(s.current)
	s.subs[sub.ID] = sub
	s.mu.Unlock()

	go sub.run()

	s.logger.Debug().Str("sub_id", sub.ID).Msg("Subscriber added")
	return sub
}

// Close stops every subscription. Apply keeps working afterwards but nobody
// is notified.
func (s *Store) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*Subscription)
	s.closed = true
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// Subscription is a live registration on a Store. Each one has its own
// queue and goroutine so a slow observer cannot hold up Apply.
type Subscription struct {
	ID string

	store    *Store
	observer Observer
	logger   zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Snapshot
	stopped bool
	once    sync.Once
	done    chan struct{}
}

// Unsubscribe stops delivery. A delivery already running is allowed to finish.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.store.remove(sub.ID)
		sub.stop()
		sub.logger.Debug().Str("sub_id", sub.ID).Msg("Subscriber removed")
	})
}

// Done is closed once the delivery goroutine has exited.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

func (sub *Subscription) enqueue(snap Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.stopped {
		return
	}
	sub.queue = append(sub.queue, snap)
	sub.cond.Signal()
}

func (sub *Subscription) stop() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.stopped = true
	sub.queue = nil
	sub.cond.Broadcast()
}

func (sub *Subscription) run() {
	defer close(sub.done)
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.stopped {
			sub.cond.Wait()
		}
		if sub.stopped {
			sub.mu.Unlock()
			return
		}
		next := sub.queue[0]
		sub.queue[0] = Snapshot{}
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		sub.deliver(next)
	}
}

func (sub *Subscription) deliver(snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			sub.logger.Error().
				Str("sub_id", sub.ID).
				Interface("error", r).
				Str("stack", string(debug.Stack())).
				Msg("Observer panicked")
		}
	}()
	sub.observer(snap)
}
