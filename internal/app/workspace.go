package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"qsnap-gateway/internal/domain"
	"qsnap-gateway/internal/metrics"
)

// UpdateType tags what changed in a workspace update.
type UpdateType string

const (
	UpdateView        UpdateType = "view"
	UpdateSolveFailed UpdateType = "solveFailed"
	UpdateStalled     UpdateType = "stalled"
)

// QuestionView is a question as the presentation layer renders it.
type QuestionView struct {
	domain.Question
	Label   string        `json:"label"`
	Status  domain.Status `json:"status"`
	Body    string        `json:"body"`
	Solving bool          `json:"solving"`
}

// View is the render state of an open paper.
type View struct {
	WorkspaceID string         `json:"workspaceId"`
	Paper       domain.Paper   `json:"paper"`
	Questions   []QuestionView `json:"questions"`
	Counts      domain.Counts  `json:"counts"`
	Processing  bool           `json:"processing"`
	Polling     bool           `json:"polling"`
	Stalled     string         `json:"stalled,omitempty"`
	Revision    uint64         `json:"revision"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Update is pushed to subscribers on every change.
type Update struct {
	Type       UpdateType `json:"type"`
	View       View       `json:"view"`
	QuestionID int64      `json:"questionId,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Workspace is the scope of one open paper: it owns the question store, the poll
// timer and the solve orchestrator, and releases all of them on Close.
type Workspace struct {
	id      string
	paperID int64
	store   *QuestionStore
	sync    *Synchronizer
	solver  *SolveOrchestrator
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time

	mu          sync.RWMutex
	closed      bool
	revision    uint64
	subscribers map[chan Update]struct{}
	onClose     []func()
}

// NewWorkspace opens a workspace over an initial snapshot and starts polling if needed.
func NewWorkspace(snap domain.Snapshot, papers WorkspaceBackend, recorder SolveRecorder, cfg PollConfig) *Workspace {
	return newWorkspaceWithClock(snap, papers, papers, recorder, cfg, time.Now)
}

func newWorkspaceWithClock(snap domain.Snapshot, fetcher SnapshotFetcher, solver Solver, recorder SolveRecorder, cfg PollConfig, now func() time.Time) *Workspace {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		id:          uuid.NewString(),
		paperID:     snap.Paper.ID,
		store:       NewQuestionStore(snap.Questions),
		ctx:         ctx,
		cancel:      cancel,
		now:         now,
		subscribers: make(map[chan Update]struct{}),
	}
	w.sync = newSynchronizer(ctx, fetcher, w.store, snap.Paper, cfg, now)
	w.sync.onSnapshot = w.changed
	w.sync.onStall = w.stalled
	w.solver = newSolveOrchestrator(solver, w.store, w, recorder)
	w.solver.now = now

	metrics.OpenWorkspaces.Inc()
	w.sync.Evaluate()
	return w
}

func (w *Workspace) ID() string { return w.id }

func (w *Workspace) PaperID() int64 { return w.paperID }

// Questions returns the current questions in server order.
func (w *Workspace) Questions() []domain.Question {
	return w.store.Get()
}

// View builds the current render state.
func (w *Workspace) View() View {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.viewLocked()
}

func (w *Workspace) viewLocked() View {
	state := w.sync.State()
	questions := w.store.Get()
	views := make([]QuestionView, 0, len(questions))
	for i, q := range questions {
		views = append(views, QuestionView{
			Question: q,
			Label:    fmt.Sprintf("Q%d", i+1),
			Status:   domain.StatusOf(q),
			Body:     q.Body(),
			Solving:  q.Solving(),
		})
	}
	v := View{
		WorkspaceID: w.id,
		Paper:       state.Paper,
		Questions:   views,
		Counts:      domain.CountStatuses(questions),
		Processing:  state.Processing,
		Polling:     state.Polling,
		Revision:    w.revision,
		UpdatedAt:   w.now(),
	}
	if state.Stalled != nil {
		v.Stalled = state.Stalled.Error()
	}
	return v
}

// Polling reports whether a poll timer or fetch is active.
func (w *Workspace) Polling() bool {
	return w.sync.State().Polling
}

// Solve requests a solution for one question of this paper.
func (w *Workspace) Solve(ctx context.Context, questionID int64) (domain.Solution, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(w.ctx, cancel)
	defer stop()
	return w.solver.Solve(ctx, questionID)
}

// EditOCR applies a user correction of a question's OCR text. Unknown questions are
// ignored; the result reports whether the edit was applied.
func (w *Workspace) EditOCR(questionID int64, text string) bool {
	if !w.sync.EditOCR(questionID, text) {
		return false
	}
	w.changed()
	return true
}

// Resume restarts polling after a stall.
func (w *Workspace) Resume() error {
	if err := w.sync.Resume(); err != nil {
		return err
	}
	w.changed()
	return nil
}

// Subscribe returns a channel of updates, starting with the current view.
// The caller must invoke the returned cancel function to avoid leaks.
func (w *Workspace) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	w.subscribers[ch] = struct{}{}
	// ch is fresh and buffered, so this send cannot block while holding mu.
	ch <- Update{Type: UpdateView, View: w.viewLocked()}
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		if _, ok := w.subscribers[ch]; ok {
			delete(w.subscribers, ch)
			close(ch)
		}
		w.mu.Unlock()
	}
	return ch, cancel
}

// OnClose registers fn to run once when the workspace closes.
func (w *Workspace) OnClose(fn func()) {
	w.mu.Lock()
	if !w.closed {
		w.onClose = append(w.onClose, fn)
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	fn()
}

// Close stops polling, drops subscribers and discards any late results. Safe to call repeatedly.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.sync.Close()
	w.cancel()
	for ch := range w.subscribers {
		delete(w.subscribers, ch)
		close(ch)
	}
	hooks := w.onClose
	w.onClose = nil
	w.mu.Unlock()

	metrics.OpenWorkspaces.Dec()
	for _, fn := range hooks {
		fn()
	}
}

func (w *Workspace) Closed() bool {
	return !w.alive()
}

func (w *Workspace) alive() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.closed
}

// changed re-evaluates polling after a store mutation and publishes the new view.
func (w *Workspace) changed() {
	w.sync.Evaluate()
	w.publish(Update{Type: UpdateView})
}

func (w *Workspace) stalled(err error) {
	w.publish(Update{Type: UpdateStalled, Error: err.Error()})
}

func (w *Workspace) solveFailed(questionID int64, err error) {
	w.publish(Update{Type: UpdateSolveFailed, QuestionID: questionID, Error: err.Error()})
}

func (w *Workspace) journalKey() (string, int64) {
	return w.id, w.paperID
}

func (w *Workspace) publish(u Update) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.revision++
	u.View = w.viewLocked()
	for ch := range w.subscribers {
		select {
		case ch <- u:
		default:
			// Slow subscriber: drop its oldest update, the newest view supersedes it.
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}
