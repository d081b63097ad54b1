package playback

import "sync"

// Transition describes one applied action.
type Transition struct {
	Prev   AudioState
	Next   AudioState
	Action Action
}

type subscriber struct {
	id int
	fn func(Transition)
}

// Store owns the AudioState. Dispatch is expected to be called from a
// single goroutine (the coordinator loop); State may be read from anywhere.
type Store struct {
	mu     sync.RWMutex
	state  AudioState
	subs   []subscriber
	nextID int
	closed bool
}

// NewStore creates a store seeded with an initial state.
func NewStore(initial AudioState) *Store {
	initial.HomeAudioActive = initial.AnyPlaying() ||
		initial.Music.Held || initial.Soundscape.Held || initial.Narration.Held
	return &Store{state: initial}
}

// State returns a copy of the current state.
func (s *Store) State() AudioState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces the action into the state and notifies subscribers in
// subscription order. Subscribers run on the dispatching goroutine and
// must not call Dispatch themselves.
func (s *Store) Dispatch(a Action) AudioState {
	s.mu.Lock()
	if s.closed {
		st := s.state
		s.mu.Unlock()
		return st
	}
	prev := s.state
	next := Reduce(prev, a)
	s.state = next
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	t := Transition{Prev: prev, Next: next, Action: a}
	for _, sub := range subs {
		sub.fn(t)
	}
	return next
}

// Subscribe registers fn for every subsequent transition and returns a
// function that removes it.
func (s *Store) Subscribe(fn func(Transition)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Close drops all subscribers; later dispatches are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = nil
}

// Replay folds a sequence of actions over an initial state.
func Replay(initial AudioState, actions []Action) AudioState {
	s := initial
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}
