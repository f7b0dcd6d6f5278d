package app

import (
	"sync"

	"classroom-assessment-service/internal/domain"
)

// leaderboardFeed fans leaderboard snapshots out to in-process subscribers, per assessment.
type leaderboardFeed struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func newFeed() *leaderboardFeed {
	return &leaderboardFeed{
		subscribers: make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

func (f *leaderboardFeed) subscribe(assessmentID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	subs, ok := f.subscribers[assessmentID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		f.subscribers[assessmentID] = subs
	}
	subs[ch] = struct{}{}
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[assessmentID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, assessmentID)
		}
	}
	return ch, cancel
}

func (f *leaderboardFeed) watched(assessmentID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[assessmentID]) > 0
}

func (f *leaderboardFeed) broadcast(assessmentID string, lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[assessmentID] {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
