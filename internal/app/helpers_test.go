package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qsnap-gateway/internal/domain"
)

var errUnavailable = errors.New("backend unavailable")

// fakeBackend answers snapshot fetches from a script; the last entry repeats.
type fakeBackend struct {
	mu      sync.Mutex
	script  []fetchResult
	gets    int
	gate    chan struct{}
	entered chan struct{}
	solve   func(ctx context.Context, questionID int64) (domain.Solution, error)
}

type fetchResult struct {
	snap domain.Snapshot
	err  error
}

func (f *fakeBackend) GetPaper(ctx context.Context, paperID int64) (domain.Snapshot, error) {
	f.mu.Lock()
	f.gets++
	var res fetchResult
	if len(f.script) > 0 {
		res = f.script[0]
		if len(f.script) > 1 {
			f.script = f.script[1:]
		}
	}
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return res.snap, res.err
}

func (f *fakeBackend) Solve(ctx context.Context, questionID int64) (domain.Solution, error) {
	f.mu.Lock()
	fn := f.solve
	f.mu.Unlock()
	if fn == nil {
		return domain.Solution{Solution: "ok"}, nil
	}
	return fn(ctx, questionID)
}

func (f *fakeBackend) setScript(results ...fetchResult) {
	f.mu.Lock()
	f.script = results
	f.mu.Unlock()
}

func (f *fakeBackend) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type memoryRecorder struct {
	mu       sync.Mutex
	attempts []domain.SolveAttempt
}

func (r *memoryRecorder) Record(_ context.Context, a domain.SolveAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *memoryRecorder) all() []domain.SolveAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SolveAttempt(nil), r.attempts...)
}

func fastPoll() PollConfig {
	return PollConfig{Interval: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond, StallTimeout: time.Minute}
}

func openTestWorkspace(t *testing.T, snap domain.Snapshot, backend *fakeBackend, recorder SolveRecorder, cfg PollConfig) *Workspace {
	t.Helper()
	ws := newWorkspaceWithClock(snap, backend, backend, recorder, cfg, time.Now)
	t.Cleanup(ws.Close)
	return ws
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func paper(id int64, processed bool) domain.Paper {
	return domain.Paper{ID: id, Filename: "paper.png", FilePath: "static/uploads/paper.png", IsProcessed: processed}
}

func unsolved(ids ...int64) []domain.Question {
	out := make([]domain.Question, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.Question{ID: id, PaperID: 1, OCRText: "question", OrderIndex: i + 1})
	}
	return out
}

func solved(ids ...int64) []domain.Question {
	out := unsolved(ids...)
	for i := range out {
		out[i].Answer = "42"
		out[i].Analysis = "because"
		out[i].SolutionText = "because"
	}
	return out
}
