package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"qsnap-gateway/internal/domain"
)

// WorkspaceService contains the gateway use cases: listing papers and opening,
// uploading and tearing down paper workspaces.
type WorkspaceService struct {
	papers     PaperService
	index      PaperIndex
	workspaces WorkspaceRegistry
	journal    SolveRecorder
	poll       PollConfig
}

func NewWorkspaceService(papers PaperService, index PaperIndex, workspaces WorkspaceRegistry, journal SolveRecorder, poll PollConfig) *WorkspaceService {
	return &WorkspaceService{
		papers:     papers,
		index:      index,
		workspaces: workspaces,
		journal:    journal,
		poll:       poll,
	}
}

// Open fetches the paper's current snapshot and opens a workspace over it.
func (s *WorkspaceService) Open(ctx context.Context, paperID int64) (*Workspace, error) {
	snap, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	return s.OpenSnapshot(snap), nil
}

// OpenSnapshot opens a workspace over an already fetched snapshot.
func (s *WorkspaceService) OpenSnapshot(snap domain.Snapshot) *Workspace {
	ws := NewWorkspace(snap, s.papers, s.journal, s.poll)
	s.workspaces.Add(ws)
	ws.OnClose(func() { s.workspaces.Remove(ws.ID()) })
	return ws
}

// Upload stores a new paper, triggers detection and opens a workspace for it.
// A failed detection trigger is logged; the workspace polls regardless.
func (s *WorkspaceService) Upload(ctx context.Context, filename string, content io.Reader) (*Workspace, error) {
	uploaded, err := s.papers.Upload(ctx, filename, content)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	s.invalidateIndex(ctx)

	if err := s.papers.Process(ctx, uploaded.ID); err != nil {
		log.Printf("process paper %d: %v", uploaded.ID, err)
	}
	return s.Open(ctx, uploaded.ID)
}

// Workspace looks up an open workspace.
func (s *WorkspaceService) Workspace(id string) (*Workspace, error) {
	ws, ok := s.workspaces.Get(id)
	if !ok {
		return nil, domain.ErrWorkspaceNotFound
	}
	return ws, nil
}

// OpenWorkspaces lists the workspaces currently open on this instance.
func (s *WorkspaceService) OpenWorkspaces() []*Workspace {
	return s.workspaces.All()
}

// ListPapers returns the paper listing, newest first as served by the backend.
func (s *WorkspaceService) ListPapers(ctx context.Context) ([]domain.PaperSummary, error) {
	if s.index != nil {
		return s.index.ListPapers(ctx)
	}
	return s.papers.ListPapers(ctx)
}

// DeletePaper removes the paper remotely and closes every workspace open on it.
func (s *WorkspaceService) DeletePaper(ctx context.Context, paperID int64) error {
	if err := s.papers.DeletePaper(ctx, paperID); err != nil && !errors.Is(err, domain.ErrPaperNotFound) {
		return err
	}
	s.invalidateIndex(ctx)
	for _, ws := range s.workspaces.All() {
		if ws.PaperID() == paperID {
			ws.Close()
		}
	}
	return nil
}

// Export asks the backend for a solutions document.
func (s *WorkspaceService) Export(ctx context.Context, paperID int64) (domain.ExportResult, error) {
	return s.papers.Export(ctx, paperID)
}

// CloseAll closes every open workspace, cancelling their poll timers.
func (s *WorkspaceService) CloseAll() {
	for _, ws := range s.workspaces.All() {
		ws.Close()
	}
}

func (s *WorkspaceService) invalidateIndex(ctx context.Context) {
	if s.index != nil {
		s.index.Invalidate(ctx)
	}
}
