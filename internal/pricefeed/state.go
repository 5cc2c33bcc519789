// Package pricefeed owns the last known BTC/USD quote and the poller that
// refreshes it from a price source.
package pricefeed

import (
	"sync"

	"tradeTracker/internal/domain"
)

// State is the single owned price cell. Only the Poller writes it; everyone
// else reads the latest quote or subscribes to changes.
type State struct {
	mu          sync.RWMutex
	quote       domain.PriceQuote
	loaded      bool
	subscribers []chan domain.PriceQuote
}

// NewState creates an empty, not yet loaded price state.
func NewState() *State {
	return &State{}
}

// Latest returns the last known quote and whether a price has been loaded.
func (s *State) Latest() (domain.PriceQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quote, s.loaded
}

// Price returns the last known price, or 0 when no price has been loaded.
func (s *State) Price() float64 {
	q, ok := s.Latest()
	if !ok {
		return 0
	}
	return q.Price
}

// Subscribe returns a channel that receives every quote stored after the call.
// The channel holds one pending quote; a slow reader only sees the newest one.
func (s *State) Subscribe() <-chan domain.PriceQuote {
	ch := make(chan domain.PriceQuote, 1)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// set stores a quote and notifies subscribers without blocking.
func (s *State) set(q domain.PriceQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quote = q
	s.loaded = true
	for _, ch := range s.subscribers {
		select {
		case ch <- q:
		default:
			// Replace the stale pending quote with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- q:
			default:
			}
		}
	}
}
