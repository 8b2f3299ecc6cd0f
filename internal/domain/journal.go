package domain

import "time"

// SolveOutcome classifies how a solve request ended.
type SolveOutcome string

const (
	SolveSucceeded SolveOutcome = "succeeded"
	SolveFailed    SolveOutcome = "failed"
	SolveDiscarded SolveOutcome = "discarded"
)

// SolveAttempt is one journaled solve request.
type SolveAttempt struct {
	WorkspaceID string        `json:"workspaceId"`
	PaperID     int64         `json:"paperId"`
	QuestionID  int64         `json:"questionId"`
	Outcome     SolveOutcome  `json:"outcome"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
}
