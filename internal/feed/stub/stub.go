// Package stub provides a deterministic in-memory feed for tests and
// dry runs.
package stub

import (
	"context"
	"sync"

	"token-sniper/internal/domain"
)

// Source implements feed.CandidateSource and feed.TickSource from
// values pushed by the caller, in push order.
type Source struct {
	mu         sync.Mutex
	candidates chan domain.CandidateSnapshot
	subs       map[string]chan domain.PriceTick
	closed     bool
}

// New creates an empty Source.
func New() *Source {
	return &Source{
		candidates: make(chan domain.CandidateSnapshot, 256),
		subs:       make(map[string]chan domain.PriceTick),
	}
}

// Candidates implements feed.CandidateSource.
func (s *Source) Candidates() <-chan domain.CandidateSnapshot {
	return s.candidates
}

// Subscribe implements feed.TickSource.
func (s *Source) Subscribe(_ context.Context, mint string) (<-chan domain.PriceTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.PriceTick, 256)
	s.subs[mint] = ch
	return ch, nil
}

// Unsubscribe implements feed.TickSource.
func (s *Source) Unsubscribe(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[mint]; ok {
		close(ch)
		delete(s.subs, mint)
	}
}

// PushCandidate delivers one candidate snapshot to the intake stream.
func (s *Source) PushCandidate(snap domain.CandidateSnapshot) {
	s.candidates <- snap
}

// PushTick delivers one tick to the mint's subscriber, if any. The send
// happens under the lock so a concurrent Unsubscribe cannot close the
// channel mid-send; channel buffers keep this from blocking in practice.
func (s *Source) PushTick(tick domain.PriceTick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[tick.Mint]; ok {
		ch <- tick
	}
}

// Subscribed reports whether a monitor is listening on the mint.
func (s *Source) Subscribed(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[mint]
	return ok
}

// Close ends the candidate stream. Tick subscriptions are closed via
// Unsubscribe by their owners.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.candidates)
}
