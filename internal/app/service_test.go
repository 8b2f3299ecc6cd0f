package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"qsnap-gateway/internal/app"
	"qsnap-gateway/internal/domain"
	"qsnap-gateway/internal/infra/memory"
	"qsnap-gateway/internal/remote"
	"qsnap-gateway/internal/remote/remotetest"
)

func newService(t *testing.T, backend *remotetest.Backend) (*app.WorkspaceService, *memory.SolveJournal) {
	t.Helper()
	client := remote.New(backend.URL, 5*time.Second)
	journal := memory.NewSolveJournal(0)
	service := app.NewWorkspaceService(
		client,
		memory.NewPaperIndex(client, time.Minute),
		memory.NewWorkspaceRegistry(),
		journal,
		app.PollConfig{Interval: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond, StallTimeout: time.Minute},
	)
	t.Cleanup(service.CloseAll)
	return service, journal
}

func TestUploadDetectsQuestionsAndKeepsPolling(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	service, _ := newService(t, backend)

	detected := make(chan int64, 1)
	backend.OnProcess(func(paperID int64) { detected <- paperID })

	ws, err := service.Upload(context.Background(), "final.jpg", strings.NewReader("jpeg"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if view := ws.View(); !view.Processing || len(view.Questions) != 0 {
		t.Fatalf("expected an empty processing workspace, got %+v", view)
	}

	paperID := <-detected
	backend.SetQuestions(paperID, []domain.Question{
		{ID: 1, PaperID: paperID, OCRText: "a"},
		{ID: 2, PaperID: paperID, OCRText: "b"},
		{ID: 3, PaperID: paperID, OCRText: "c"},
	})

	waitFor(t, "questions", func() bool { return len(ws.Questions()) == 3 })
	view := ws.View()
	if view.Processing || !view.Polling || view.Counts.Unsolved != 3 {
		t.Fatalf("expected three unsolved questions under polling, got %+v", view)
	}

	// Solutions land remotely; polling stops on the terminal snapshot.
	for _, id := range []int64{1, 2, 3} {
		backend.UpdateQuestion(id, func(q *domain.Question) { q.SolutionText = "done" })
	}
	waitFor(t, "settled", func() bool { return !ws.Polling() })
	if ws.View().Counts.Solved != 3 {
		t.Fatalf("expected all solved, got %+v", ws.View().Counts)
	}
}

func TestUploadSurvivesProcessFailure(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	service, _ := newService(t, backend)

	backend.FailProcess(true)
	ws, err := service.Upload(context.Background(), "a.png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ws.PaperID() == 0 || !ws.View().Processing {
		t.Fatalf("expected an open workspace waiting for detection, got %+v", ws.View())
	}
	if backend.Calls("POST /process/{id}") != 1 {
		t.Fatalf("expected one detection trigger")
	}
}

func TestOpenUnknownPaper(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	service, _ := newService(t, backend)

	if _, err := service.Open(context.Background(), 9); !errors.Is(err, domain.ErrPaperNotFound) {
		t.Fatalf("expected ErrPaperNotFound, got %v", err)
	}
	if len(service.OpenWorkspaces()) != 0 {
		t.Fatalf("no workspace should be registered")
	}
}

func TestDeletePaperClosesItsWorkspaces(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.AddPaper(domain.Snapshot{Paper: domain.Paper{ID: 1, IsProcessed: true}, Questions: []domain.Question{{ID: 1, PaperID: 1}}})
	backend.AddPaper(domain.Snapshot{Paper: domain.Paper{ID: 2, IsProcessed: true}, Questions: []domain.Question{{ID: 2, PaperID: 2}}})
	service, _ := newService(t, backend)
	ctx := context.Background()

	first, _ := service.Open(ctx, 1)
	second, _ := service.Open(ctx, 2)
	if papers, _ := service.ListPapers(ctx); len(papers) != 2 {
		t.Fatalf("expected two papers listed, got %d", len(papers))
	}

	if err := service.DeletePaper(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !first.Closed() || second.Closed() {
		t.Fatalf("expected only the deleted paper's workspace closed")
	}
	if _, err := service.Workspace(first.ID()); !errors.Is(err, domain.ErrWorkspaceNotFound) {
		t.Fatalf("expected closed workspace unregistered, got %v", err)
	}
	if papers, _ := service.ListPapers(ctx); len(papers) != 1 {
		t.Fatalf("expected listing refreshed after delete, got %d", len(papers))
	}
	// Deleting again is not an error.
	if err := service.DeletePaper(ctx, 1); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCloseAllStopsPolling(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.AddPaper(domain.Snapshot{Paper: domain.Paper{ID: 1, IsProcessed: true}, Questions: []domain.Question{{ID: 1, PaperID: 1}}})
	service, journal := newService(t, backend)

	ws, err := service.Open(context.Background(), 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := ws.Solve(context.Background(), 1); err != nil {
		t.Fatalf("solve: %v", err)
	}
	if attempts, _ := journal.Recent(context.Background(), 1, 0); len(attempts) != 1 {
		t.Fatalf("expected journaled attempt, got %d", len(attempts))
	}

	service.CloseAll()
	if !ws.Closed() || len(service.OpenWorkspaces()) != 0 {
		t.Fatalf("expected every workspace closed")
	}
	polls := backend.Calls("GET /papers/{id}")
	time.Sleep(30 * time.Millisecond)
	if n := backend.Calls("GET /papers/{id}"); n != polls {
		t.Fatalf("closed workspace kept polling")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
