package memory

import (
	"context"
	"testing"

	"qsnap-gateway/internal/domain"
)

func TestSolveJournalRecentNewestFirst(t *testing.T) {
	journal := NewSolveJournal(0)
	ctx := context.Background()
	for i, paperID := range []int64{1, 2, 1, 1} {
		_ = journal.Record(ctx, domain.SolveAttempt{PaperID: paperID, QuestionID: int64(i + 1), Outcome: domain.SolveSucceeded})
	}

	got, err := journal.Recent(ctx, 1, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].QuestionID != 4 || got[1].QuestionID != 3 {
		t.Fatalf("unexpected attempts %+v", got)
	}

	all, _ := journal.Recent(ctx, 0, 0)
	if len(all) != 4 {
		t.Fatalf("expected every attempt, got %d", len(all))
	}
}

func TestSolveJournalCapacity(t *testing.T) {
	journal := NewSolveJournal(2)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_ = journal.Record(ctx, domain.SolveAttempt{PaperID: 1, QuestionID: int64(i)})
	}
	got, _ := journal.Recent(ctx, 0, 0)
	if len(got) != 2 || got[1].QuestionID != 2 {
		t.Fatalf("expected oldest attempt evicted, got %+v", got)
	}
}
