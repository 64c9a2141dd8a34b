package store

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
)

// MaxDispatchDepth bounds re-entrant dispatch (a listener dispatching while being notified).
const MaxDispatchDepth = 32

var ErrDispatchDepth = errors.New("store: re-entrant dispatch nested too deeply")

// Listener receives every committed composite state.
type Listener func(*State)

// ActionObserver sees each dispatched action with the state it produced.
type ActionObserver func(a Action, next *State, changed bool)

// Store holds the composite state of the host process. State only changes through Dispatch.
//
// Dispatch is synchronous: reduce, commit, notify, return. A listener that dispatches is
// served immediately (re-entrant), up to MaxDispatchDepth. Dispatch is meant to be driven
// from a single goroutine (see Loop); State may be read from anywhere.
type Store struct {
	combined *Combined

	mu        sync.Mutex
	state     *State
	depth     int
	listeners []*entry[Listener]
	observers []*entry[ActionObserver]
}

type entry[F any] struct {
	fn     F
	active atomic.Bool
}

func New(c *Combined) (*Store, error) {
	if c == nil {
		return nil, errors.New("store: nil reducer")
	}
	initial, err := c.Init()
	if err != nil {
		return nil, err
	}
	return &Store{combined: c, state: initial}, nil
}

// State returns the current composite state.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch reduces a against the current state, commits the result and notifies
// subscribers in registration order. On error nothing is committed. A listener may
// dispatch; the nested dispatch runs at once, and listeners this dispatch has not reached
// yet only hear the nested state.
func (s *Store) Dispatch(a Action) (*State, error) {
	a = a.clone()

	s.mu.Lock()
	if s.depth >= MaxDispatchDepth {
		s.mu.Unlock()
		return nil, ErrDispatchDepth
	}
	s.depth++
	prev := s.state
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.depth--
		s.mu.Unlock()
	}()

	next, err := s.combined.Reduce(prev, a)
	if err != nil {
		return nil, err
	}
	changed := next != prev

	s.mu.Lock()
	if changed {
		s.state = next
	}
	observers := slices.Clone(s.observers)
	var listeners []*entry[Listener]
	if changed {
		listeners = slices.Clone(s.listeners)
	}
	s.mu.Unlock()

	for _, o := range observers {
		if o.active.Load() {
			o.fn(a, next, changed)
		}
	}
	for _, l := range listeners {
		// A nested dispatch committed a newer state and has already notified everyone.
		if s.superseded(next) {
			break
		}
		if l.active.Load() {
			l.fn(next)
		}
	}
	return next, nil
}

func (s *Store) superseded(st *State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != st
}

// OnState registers l and immediately calls it with the current state.
func (s *Store) OnState(l Listener) *Subscription {
	e := &entry[Listener]{fn: l}
	e.active.Store(true)

	s.mu.Lock()
	s.listeners = append(s.listeners, e)
	cur := s.state
	s.mu.Unlock()

	l(cur)

	return newSubscription(func() {
		e.active.Store(false)
		s.mu.Lock()
		s.listeners = slices.DeleteFunc(s.listeners, func(x *entry[Listener]) bool { return x == e })
		s.mu.Unlock()
	})
}

// OnAction registers an observer of committed dispatches, no-ops included.
func (s *Store) OnAction(fn ActionObserver) *Subscription {
	e := &entry[ActionObserver]{fn: fn}
	e.active.Store(true)

	s.mu.Lock()
	s.observers = append(s.observers, e)
	s.mu.Unlock()

	return newSubscription(func() {
		e.active.Store(false)
		s.mu.Lock()
		s.observers = slices.DeleteFunc(s.observers, func(x *entry[ActionObserver]) bool { return x == e })
		s.mu.Unlock()
	})
}

// Subscription removes a registration. Dispose may be called any number of times.
type Subscription struct {
	done    atomic.Bool
	dispose func()
}

func newSubscription(fn func()) *Subscription {
	return &Subscription{dispose: fn}
}

func (s *Subscription) Dispose() {
	if s == nil || !s.done.CompareAndSwap(false, true) {
		return
	}
	s.dispose()
}

// Disposed reports whether Dispose has run.
func (s *Subscription) Disposed() bool {
	return s != nil && s.done.Load()
}
