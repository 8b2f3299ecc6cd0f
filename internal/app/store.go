package app

import (
	"sync"

	"qsnap-gateway/internal/domain"
)

// QuestionPatch holds the fields to overwrite; nil fields are left alone.
type QuestionPatch struct {
	OCRText      *string
	SolutionText *string
	Answer       *string
	Analysis     *string
}

func (p QuestionPatch) apply(q *domain.Question) {
	if p.OCRText != nil {
		q.OCRText = *p.OCRText
	}
	if p.SolutionText != nil {
		q.SolutionText = *p.SolutionText
	}
	if p.Answer != nil {
		q.Answer = *p.Answer
	}
	if p.Analysis != nil {
		q.Analysis = *p.Analysis
	}
}

// QuestionStore holds the ordered questions of one open paper. All mutation goes
// through ReplaceAll and Patch; the later write wins.
type QuestionStore struct {
	mu        sync.RWMutex
	questions []domain.Question
	index     map[int64]int
}

func NewQuestionStore(questions []domain.Question) *QuestionStore {
	s := &QuestionStore{}
	s.ReplaceAll(questions)
	return s
}

// ReplaceAll swaps in a full snapshot, keeping the given (server) order.
func (s *QuestionStore) ReplaceAll(questions []domain.Question) {
	next := make([]domain.Question, len(questions))
	copy(next, questions)
	index := make(map[int64]int, len(next))
	for i, q := range next {
		index[q.ID] = i
	}

	s.mu.Lock()
	s.questions = next
	s.index = index
	s.mu.Unlock()
}

// Patch overwrites fields of one question. Unknown ids are ignored and reported as false.
func (s *QuestionStore) Patch(id int64, patch QuestionPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	patch.apply(&s.questions[i])
	return true
}

// PatchIf applies patch only while cond holds for the current value of the question.
func (s *QuestionStore) PatchIf(id int64, cond func(domain.Question) bool, patch QuestionPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok || !cond(s.questions[i]) {
		return false
	}
	patch.apply(&s.questions[i])
	return true
}

// Get returns a copy of the questions in server order.
func (s *QuestionStore) Get() []domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

func (s *QuestionStore) Lookup(id int64) (domain.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Question{}, false
	}
	return s.questions[i], true
}

func (s *QuestionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

func strPtr(s string) *string { return &s }
