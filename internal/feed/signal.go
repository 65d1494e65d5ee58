package feed

import "sync"

// Signal is the invalidation bus between the sync engine and the paged
// feeds: a monotonically increasing logical timestamp with latest-value
// replay. Subscribers always see the newest mark; intermediate marks may be
// coalesced, which is fine because consumers react by re-querying, not by
// replaying events.
type Signal struct {
	mu     sync.Mutex
	last   uint64
	nextID int
	subs   map[int]chan uint64
}

// NewSignal creates an idle signal at mark zero.
func NewSignal() *Signal {
	return &Signal{subs: make(map[int]chan uint64)}
}

// Publish advances the mark and notifies all subscribers. Never blocks: a
// subscriber that has not drained its previous notification just gets the
// newer mark instead.
func (s *Signal) Publish() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	for _, ch := range s.subs {
		select {
		case ch <- s.last:
		default:
			// Replace the stale pending mark with the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- s.last
		}
	}
	return s.last
}

// Last returns the current mark.
func (s *Signal) Last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Subscribe registers a subscriber and immediately replays the latest mark
// (if any was ever published), so late subscribers do not miss a completed
// sync. The returned cancel func must be called to release the subscription.
func (s *Signal) Subscribe() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	ch := make(chan uint64, 1)
	if s.last > 0 {
		ch <- s.last
	}
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
	return ch, cancel
}
