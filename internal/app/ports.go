package app

import (
	"context"
	"io"

	"qsnap-gateway/internal/domain"
)

// PaperService is the remote processing backend (detection, OCR, solving).
type PaperService interface {
	ListPapers(ctx context.Context) ([]domain.PaperSummary, error)
	Upload(ctx context.Context, filename string, content io.Reader) (domain.UploadResult, error)
	Process(ctx context.Context, paperID int64) error
	GetPaper(ctx context.Context, paperID int64) (domain.Snapshot, error)
	Solve(ctx context.Context, questionID int64) (domain.Solution, error)
	Export(ctx context.Context, paperID int64) (domain.ExportResult, error)
	DeletePaper(ctx context.Context, paperID int64) error
}

// SnapshotFetcher is the part of PaperService the synchronizer needs.
type SnapshotFetcher interface {
	GetPaper(ctx context.Context, paperID int64) (domain.Snapshot, error)
}

// Solver is the part of PaperService the solve orchestrator needs.
type Solver interface {
	Solve(ctx context.Context, questionID int64) (domain.Solution, error)
}

// WorkspaceBackend is what an open workspace needs from the backend.
type WorkspaceBackend interface {
	SnapshotFetcher
	Solver
}

// PaperIndex serves the paper listing (from cache/backing service).
type PaperIndex interface {
	ListPapers(ctx context.Context) ([]domain.PaperSummary, error)
	Invalidate(ctx context.Context)
}

// WorkspaceRegistry tracks open workspaces (in-memory, Redis, etc).
type WorkspaceRegistry interface {
	Add(ws *Workspace)
	Get(id string) (*Workspace, bool)
	Remove(id string)
	All() []*Workspace
}

// SolveRecorder journals solve attempts.
type SolveRecorder interface {
	Record(ctx context.Context, attempt domain.SolveAttempt) error
}

// SolveJournal records solve attempts and serves them back newest first.
type SolveJournal interface {
	SolveRecorder
	Recent(ctx context.Context, paperID int64, limit int) ([]domain.SolveAttempt, error)
}
