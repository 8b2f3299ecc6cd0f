package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"qsnap-gateway/internal/domain"
	"qsnap-gateway/internal/metrics"
)

// PollConfig controls the polling cadence and when a workspace gives up.
type PollConfig struct {
	// Interval between polls while the paper is still being worked on.
	Interval time.Duration
	// MaxBackoff caps the delay between polls after consecutive failures.
	MaxBackoff time.Duration
	// StallTimeout stops polling when no progress (or only failures) is seen for this long.
	// Zero disables the give-up point.
	StallTimeout time.Duration
	// Jitter randomizes failure backoff delays, as a fraction of the delay.
	Jitter float64
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:     2 * time.Second,
		MaxBackoff:   30 * time.Second,
		StallTimeout: 5 * time.Minute,
		Jitter:       0.2,
	}
}

func (c PollConfig) withDefaults() PollConfig {
	def := DefaultPollConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.MaxBackoff < c.Interval {
		c.MaxBackoff = c.Interval
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = 0
	}
	return c
}

// NeedsPolling reports whether the backend still has work to do for the paper:
// detection is pending, or at least one question is unsolved.
func NeedsPolling(processing bool, questions []domain.Question) bool {
	if processing {
		return true
	}
	for _, q := range questions {
		if domain.StatusOf(q) == domain.StatusUnsolved {
			return true
		}
	}
	return false
}

// Terminal reports whether a fetched snapshot needs no further polling: every
// question is solved or incomplete, or detection finished without finding any.
func Terminal(s domain.Snapshot) bool {
	if len(s.Questions) == 0 {
		return s.Paper.IsProcessed
	}
	for _, q := range s.Questions {
		if !domain.StatusOf(q).Terminal() {
			return false
		}
	}
	return true
}

// SyncState is the synchronizer's view-relevant state.
type SyncState struct {
	Paper      domain.Paper
	Processing bool
	Polling    bool
	Failures   int
	Stalled    error
}

type progress struct {
	processed bool
	questions int
	terminal  int
}

// Synchronizer polls the backend for one paper and merges each snapshot into the store.
// At most one timer is armed and at most one fetch is outstanding.
type Synchronizer struct {
	fetcher SnapshotFetcher
	store   *QuestionStore
	paperID int64
	cfg     PollConfig
	ctx     context.Context
	now     func() time.Time

	onSnapshot func()
	onStall    func(error)

	mu           sync.Mutex
	paper        domain.Paper
	processing   bool
	edits        map[int64]string
	timer        *time.Timer
	gen          uint64
	inFlight     bool
	bo           *backoff.ExponentialBackOff
	failures     int
	seen         progress
	lastProgress time.Time
	stalled      error
	closed       bool
}

func newSynchronizer(ctx context.Context, fetcher SnapshotFetcher, store *QuestionStore, paper domain.Paper, cfg PollConfig, now func() time.Time) *Synchronizer {
	cfg = cfg.withDefaults()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Interval
	bo.MaxInterval = cfg.MaxBackoff
	bo.MaxElapsedTime = cfg.StallTimeout
	bo.RandomizationFactor = cfg.Jitter
	bo.Multiplier = 2
	bo.Reset()

	s := &Synchronizer{
		fetcher:    fetcher,
		store:      store,
		paperID:    paper.ID,
		cfg:        cfg,
		ctx:        ctx,
		now:        now,
		onSnapshot: func() {},
		onStall:    func(error) {},
		paper:      paper,
		processing: !paper.IsProcessed,
		edits:      make(map[int64]string),
		bo:         bo,
	}
	s.seen = s.progressOf(store.Get())
	s.lastProgress = s.now()
	return s
}

// Evaluate arms the poll timer when polling is needed and none is active.
// It reports whether polling is active afterwards.
func (s *Synchronizer) Evaluate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluateLocked()
}

func (s *Synchronizer) evaluateLocked() bool {
	if s.closed {
		return false
	}
	if s.timer != nil || s.inFlight {
		return true
	}
	if s.stalled != nil {
		return false
	}
	if !NeedsPolling(s.processing, s.store.Get()) {
		return false
	}
	s.armLocked(s.cfg.Interval)
	return true
}

func (s *Synchronizer) armLocked(delay time.Duration) {
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(delay, func() { s.tick(gen) })
}

func (s *Synchronizer) tick(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.inFlight = true
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	snap, err := s.fetcher.GetPaper(ctx, s.paperID)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.inFlight = false
	if s.closed {
		s.mu.Unlock()
		metrics.Polls.WithLabelValues("discarded").Inc()
		return
	}

	if err != nil {
		metrics.Polls.WithLabelValues("error").Inc()
		s.failures++
		log.Printf("poll paper %d: %v", s.paperID, err)
		delay := s.bo.NextBackOff()
		if delay == backoff.Stop || s.noProgressLocked() {
			stalled := s.stallLocked(err)
			s.mu.Unlock()
			s.onStall(stalled)
			return
		}
		s.armLocked(delay)
		s.mu.Unlock()
		return
	}

	metrics.Polls.WithLabelValues("ok").Inc()
	s.failures = 0
	s.bo.Reset()
	s.applyLocked(snap)

	var stalled error
	if !Terminal(snap) {
		if s.noProgressLocked() {
			stalled = s.stallLocked(nil)
		} else {
			s.armLocked(s.cfg.Interval)
		}
	}
	s.mu.Unlock()

	s.onSnapshot()
	if stalled != nil {
		s.onStall(stalled)
	}
}

// applyLocked merges a fetched snapshot. The question list is replaced wholesale
// when non-empty; local OCR edits the backend has not seen yet are laid back on top.
func (s *Synchronizer) applyLocked(snap domain.Snapshot) {
	processed := s.paper.IsProcessed || snap.Paper.IsProcessed
	s.paper = snap.Paper
	s.paper.IsProcessed = processed

	if len(snap.Questions) > 0 {
		s.store.ReplaceAll(s.overlayEditsLocked(snap.Questions))
		s.processing = false
	}
	if processed {
		s.processing = false
	}

	if p := s.progressOf(s.store.Get()); p != s.seen {
		s.seen = p
		s.lastProgress = s.now()
	}
}

func (s *Synchronizer) overlayEditsLocked(questions []domain.Question) []domain.Question {
	if len(s.edits) == 0 {
		return questions
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	present := make(map[int64]struct{}, len(out))
	for i := range out {
		id := out[i].ID
		present[id] = struct{}{}
		text, ok := s.edits[id]
		if !ok {
			continue
		}
		if out[i].OCRText == text {
			delete(s.edits, id)
			continue
		}
		out[i].OCRText = text
	}
	for id := range s.edits {
		if _, ok := present[id]; !ok {
			delete(s.edits, id)
		}
	}
	return out
}

// EditOCR patches a question's OCR text and keeps the edit across later snapshots.
func (s *Synchronizer) EditOCR(questionID int64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !s.store.Patch(questionID, QuestionPatch{OCRText: strPtr(text)}) {
		return false
	}
	s.edits[questionID] = text
	return true
}

func (s *Synchronizer) progressOf(questions []domain.Question) progress {
	c := domain.CountStatuses(questions)
	return progress{
		processed: s.paper.IsProcessed,
		questions: c.Total(),
		terminal:  c.Solved + c.Incomplete,
	}
}

func (s *Synchronizer) noProgressLocked() bool {
	return s.cfg.StallTimeout > 0 && s.now().Sub(s.lastProgress) > s.cfg.StallTimeout
}

func (s *Synchronizer) stallLocked(cause error) error {
	if cause != nil {
		s.stalled = fmt.Errorf("%w: paper %d: last poll: %v", domain.ErrProcessingStalled, s.paperID, cause)
	} else {
		s.stalled = fmt.Errorf("%w: paper %d: no progress for %s", domain.ErrProcessingStalled, s.paperID, s.cfg.StallTimeout)
	}
	metrics.Stalls.Inc()
	log.Printf("stop polling paper %d: %v", s.paperID, s.stalled)
	return s.stalled
}

// Resume clears a stall and starts polling again if needed.
func (s *Synchronizer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrWorkspaceClosed
	}
	s.stalled = nil
	s.failures = 0
	s.bo.Reset()
	s.lastProgress = s.now()
	s.evaluateLocked()
	return nil
}

// State returns a copy of the synchronizer state.
func (s *Synchronizer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncState{
		Paper:      s.paper,
		Processing: s.processing,
		Polling:    s.timer != nil || s.inFlight,
		Failures:   s.failures,
		Stalled:    s.stalled,
	}
}

// Close cancels the poll timer. Fetches that complete afterwards are discarded.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
