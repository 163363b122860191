package app

import (
	"sync"

	"saa-quiz-service/internal/domain"
)

// Feed fans leaderboard snapshots out to live subscribers.
type Feed struct {
	mu          sync.Mutex
	last        *domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

// Subscribe returns a channel of snapshots, primed with the latest one if any.
// The caller must invoke cancel to release it.
func (f *Feed) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.last != nil {
		ch <- *f.last
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Active reports whether anyone is listening.
func (f *Feed) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers) > 0
}

// Publish delivers lb to every subscriber. A full subscriber loses its oldest
// snapshot rather than blocking the publisher.
func (f *Feed) Publish(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &lb
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
