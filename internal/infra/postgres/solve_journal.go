package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"qsnap-gateway/internal/domain"
)

// SolveJournal stores solve attempts in the solve_attempts table.
type SolveJournal struct {
	pool *pgxpool.Pool
}

func NewSolveJournal(pool *pgxpool.Pool) *SolveJournal {
	return &SolveJournal{pool: pool}
}

func (j *SolveJournal) Record(ctx context.Context, a domain.SolveAttempt) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := j.pool.Exec(ctx,
		`INSERT INTO solve_attempts (workspace_id, paper_id, question_id, outcome, error, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.WorkspaceID, a.PaperID, a.QuestionID, string(a.Outcome), a.Error, a.Duration.Milliseconds(), createdAt,
	)
	if err != nil {
		return fmt.Errorf("record solve attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts for paperID, newest first. paperID 0 matches every paper.
func (j *SolveJournal) Recent(ctx context.Context, paperID int64, limit int) ([]domain.SolveAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.pool.Query(ctx,
		`SELECT workspace_id, paper_id, question_id, outcome, error, duration_ms, created_at
		 FROM solve_attempts
		 WHERE $1::bigint = 0 OR paper_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		paperID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query solve attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.SolveAttempt
	for rows.Next() {
		var (
			a          domain.SolveAttempt
			outcome    string
			durationMS int64
		)
		if err := rows.Scan(&a.WorkspaceID, &a.PaperID, &a.QuestionID, &outcome, &a.Error, &durationMS, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan solve attempt: %w", err)
		}
		a.Outcome = domain.SolveOutcome(outcome)
		a.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read solve attempts: %w", err)
	}
	return out, nil
}
