package memory

import (
	"context"
	"sync"

	"qsnap-gateway/internal/domain"
)

// SolveJournal keeps the most recent solve attempts in memory.
type SolveJournal struct {
	mu       sync.RWMutex
	attempts []domain.SolveAttempt
	capacity int
}

// NewSolveJournal keeps at most capacity attempts; zero or less means unbounded.
func NewSolveJournal(capacity int) *SolveJournal {
	return &SolveJournal{capacity: capacity}
}

func (j *SolveJournal) Record(_ context.Context, attempt domain.SolveAttempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, attempt)
	if j.capacity > 0 && len(j.attempts) > j.capacity {
		j.attempts = append(j.attempts[:0:0], j.attempts[len(j.attempts)-j.capacity:]...)
	}
	return nil
}

// Recent returns up to limit attempts for paperID, newest first. paperID 0 matches every paper.
func (j *SolveJournal) Recent(_ context.Context, paperID int64, limit int) ([]domain.SolveAttempt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []domain.SolveAttempt
	for i := len(j.attempts) - 1; i >= 0; i-- {
		a := j.attempts[i]
		if paperID != 0 && a.PaperID != paperID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
