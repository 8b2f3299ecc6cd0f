package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"qsnap-gateway/internal/domain"
)

func TestSolveShowsMarkerThenResult(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{solve: func(ctx context.Context, id int64) (domain.Solution, error) {
		<-release
		return domain.Solution{Solution: "x=5", Answer: "5"}, nil
	}}
	questions := unsolved(41, 42, 43)
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(1, true), Questions: questions}, backend, nil, PollConfig{Interval: time.Hour})

	done := make(chan error, 1)
	go func() {
		_, err := ws.Solve(context.Background(), 42)
		done <- err
	}()

	eventually(t, "marker", func() bool {
		q, _ := ws.store.Lookup(42)
		return q.Solving()
	})
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("solve: %v", err)
	}

	qs := ws.Questions()
	if qs[1].SolutionText != "x=5" || qs[1].Analysis != "x=5" || qs[1].Answer != "5" {
		t.Fatalf("unexpected solved question %+v", qs[1])
	}
	if qs[0] != questions[0] || qs[2] != questions[2] {
		t.Fatalf("other questions mutated: %+v", qs)
	}
}

func TestSolveFailureRestoresPriorSolution(t *testing.T) {
	backend := &fakeBackend{solve: func(context.Context, int64) (domain.Solution, error) {
		return domain.Solution{}, errUnavailable
	}}
	questions := solved(7)
	questions[0].SolutionText = "old derivation"
	recorder := &memoryRecorder{}
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(1, true), Questions: questions}, backend, recorder, fastPoll())

	updates, cancel := ws.Subscribe()
	defer cancel()
	<-updates

	_, err := ws.Solve(context.Background(), 7)
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	if q, _ := ws.store.Lookup(7); q.SolutionText != "old derivation" {
		t.Fatalf("expected prior solution restored, got %q", q.SolutionText)
	}

	var failed *Update
	for failed == nil {
		select {
		case u := <-updates:
			if u.Type == UpdateSolveFailed {
				failed = &u
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected a solveFailed update")
		}
	}
	if failed.QuestionID != 7 || failed.Error == "" {
		t.Fatalf("unexpected failure update %+v", failed)
	}

	attempts := recorder.all()
	if len(attempts) != 1 || attempts[0].Outcome != domain.SolveFailed || attempts[0].Error == "" {
		t.Fatalf("unexpected journal %+v", attempts)
	}
}

func TestSolveFailureKeepsSnapshotThatReplacedMarker(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &fakeBackend{solve: func(context.Context, int64) (domain.Solution, error) {
		close(entered)
		<-release
		return domain.Solution{}, errUnavailable
	}}
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(1, true), Questions: unsolved(3)}, backend, nil, PollConfig{Interval: time.Hour})

	done := make(chan error, 1)
	go func() {
		_, err := ws.Solve(context.Background(), 3)
		done <- err
	}()
	<-entered
	ws.store.ReplaceAll(solved(3))
	close(release)
	if err := <-done; err == nil {
		t.Fatalf("expected failure")
	}
	if q, _ := ws.store.Lookup(3); q.SolutionText != "because" {
		t.Fatalf("rollback clobbered a fresher snapshot: %q", q.SolutionText)
	}
}

func TestSolveUnknownQuestion(t *testing.T) {
	backend := &fakeBackend{}
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(1, true), Questions: solved(1)}, backend, nil, fastPoll())
	if _, err := ws.Solve(context.Background(), 99); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestSolveAfterCloseIsDiscarded(t *testing.T) {
	entered := make(chan struct{})
	backend := &fakeBackend{solve: func(ctx context.Context, id int64) (domain.Solution, error) {
		close(entered)
		<-ctx.Done()
		return domain.Solution{}, ctx.Err()
	}}
	recorder := &memoryRecorder{}
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(1, true), Questions: unsolved(5)}, backend, recorder, PollConfig{Interval: time.Hour})

	done := make(chan error, 1)
	go func() {
		_, err := ws.Solve(context.Background(), 5)
		done <- err
	}()
	<-entered
	before := ws.Questions()
	ws.Close()

	select {
	case err := <-done:
		if !errors.Is(err, domain.ErrWorkspaceClosed) {
			t.Fatalf("expected ErrWorkspaceClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not abort the solve request")
	}
	if after := ws.Questions(); after[0] != before[0] {
		t.Fatalf("late solve result touched the store: %+v", after[0])
	}
	attempts := recorder.all()
	if len(attempts) != 1 || attempts[0].Outcome != domain.SolveDiscarded {
		t.Fatalf("expected a discarded attempt, got %+v", attempts)
	}
	if _, err := ws.Solve(context.Background(), 5); !errors.Is(err, domain.ErrWorkspaceClosed) {
		t.Fatalf("expected ErrWorkspaceClosed for new solves, got %v", err)
	}
}

func TestSolveJournalsSuccess(t *testing.T) {
	backend := &fakeBackend{}
	recorder := &memoryRecorder{}
	ws := openTestWorkspace(t, domain.Snapshot{Paper: paper(9, true), Questions: unsolved(1)}, backend, recorder, PollConfig{Interval: time.Hour})

	if _, err := ws.Solve(context.Background(), 1); err != nil {
		t.Fatalf("solve: %v", err)
	}
	attempts := recorder.all()
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	a := attempts[0]
	if a.WorkspaceID != ws.ID() || a.PaperID != 9 || a.QuestionID != 1 || a.Outcome != domain.SolveSucceeded {
		t.Fatalf("unexpected attempt %+v", a)
	}
}
