package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"qsnap-gateway/internal/domain"
	"qsnap-gateway/internal/metrics"
)

// solveHost is the workspace side of a solve: liveness plus change notifications.
type solveHost interface {
	alive() bool
	changed()
	solveFailed(questionID int64, err error)
	journalKey() (workspaceID string, paperID int64)
}

// SolveOrchestrator drives one question through an explicit solve request with an
// optimistic in-progress marker that is rolled back on failure.
type SolveOrchestrator struct {
	solver   Solver
	store    *QuestionStore
	host     solveHost
	recorder SolveRecorder
	now      func() time.Time
}

func newSolveOrchestrator(solver Solver, store *QuestionStore, host solveHost, recorder SolveRecorder) *SolveOrchestrator {
	return &SolveOrchestrator{
		solver:   solver,
		store:    store,
		host:     host,
		recorder: recorder,
		now:      time.Now,
	}
}

// Solve requests a (re)generated solution for questionID.
func (o *SolveOrchestrator) Solve(ctx context.Context, questionID int64) (domain.Solution, error) {
	if !o.host.alive() {
		return domain.Solution{}, domain.ErrWorkspaceClosed
	}
	prior, ok := o.store.Lookup(questionID)
	if !ok {
		return domain.Solution{}, domain.ErrQuestionNotFound
	}

	o.store.Patch(questionID, QuestionPatch{SolutionText: strPtr(domain.SolvingMarker)})
	o.host.changed()

	start := o.now()
	sol, err := o.solver.Solve(ctx, questionID)
	elapsed := o.now().Sub(start)

	if !o.host.alive() {
		metrics.Solves.WithLabelValues("discarded").Inc()
		o.record(questionID, domain.SolveDiscarded, err, elapsed)
		return domain.Solution{}, domain.ErrWorkspaceClosed
	}

	if err != nil {
		metrics.Solves.WithLabelValues("error").Inc()
		// A snapshot may have replaced the marker meanwhile; only undo our own write.
		o.store.PatchIf(questionID, domain.Question.Solving, QuestionPatch{SolutionText: strPtr(prior.SolutionText)})
		o.host.changed()

		wrapped := fmt.Errorf("solve question %d: %w", questionID, err)
		o.host.solveFailed(questionID, wrapped)
		o.record(questionID, domain.SolveFailed, err, elapsed)
		return domain.Solution{}, wrapped
	}

	patch := QuestionPatch{
		SolutionText: strPtr(sol.Solution),
		Analysis:     strPtr(sol.Solution),
	}
	if sol.Answer != "" {
		patch.Answer = strPtr(sol.Answer)
	}
	o.store.Patch(questionID, patch)
	o.host.changed()

	metrics.Solves.WithLabelValues("ok").Inc()
	o.record(questionID, domain.SolveSucceeded, nil, elapsed)
	return sol, nil
}

func (o *SolveOrchestrator) record(questionID int64, outcome domain.SolveOutcome, err error, elapsed time.Duration) {
	if o.recorder == nil {
		return
	}
	workspaceID, paperID := o.host.journalKey()
	attempt := domain.SolveAttempt{
		WorkspaceID: workspaceID,
		PaperID:     paperID,
		QuestionID:  questionID,
		Outcome:     outcome,
		Duration:    elapsed,
		CreatedAt:   o.now(),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		attempt.Error = err.Error()
	}

	// The workspace context may already be gone; journaling outlives it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.recorder.Record(ctx, attempt); err != nil {
		log.Printf("record solve attempt for question %d: %v", questionID, err)
	}
}
