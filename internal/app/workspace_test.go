package app

import (
	"sync"
	"testing"
	"time"

	"qsnap-gateway/internal/domain"
)

func TestSubscribeRacingClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		ws := newWorkspaceWithClock(domain.Snapshot{Paper: paper(1, true), Questions: solved(1)}, &fakeBackend{}, &fakeBackend{}, nil, PollConfig{Interval: time.Hour}, time.Now)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			updates, cancel := ws.Subscribe()
			defer cancel()
			for range updates {
			}
		}()
		go func() {
			defer wg.Done()
			ws.Close()
		}()
		wg.Wait()
	}
}

func TestSubscribeDeliversCurrentView(t *testing.T) {
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(1, true), Questions: solved(1, 2)}, &fakeBackend{}, nil, PollConfig{Interval: time.Hour})
	updates, cancel := ws.Subscribe()
	defer cancel()

	select {
	case u := <-updates:
		if u.Type != UpdateView || u.View.Counts.Solved != 2 {
			t.Fatalf("unexpected initial update %+v", u)
		}
	default:
		t.Fatalf("expected the current view to be buffered on subscribe")
	}

	ws.Close()
	if _, ok := <-updates; ok {
		t.Fatalf("expected channel closed after Close")
	}
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(1, true), Questions: solved(1)}, &fakeBackend{}, nil, PollConfig{Interval: time.Hour})
	ws.Close()

	updates, cancel := ws.Subscribe()
	defer cancel()
	if _, ok := <-updates; ok {
		t.Fatalf("expected a closed channel from a closed workspace")
	}
}
