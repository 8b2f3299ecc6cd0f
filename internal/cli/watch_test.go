package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"qsnap-gateway/internal/domain"
	"qsnap-gateway/internal/remote/remotetest"
)

func TestWatchFollowsPaperUntilSolved(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.AddPaper(domain.Snapshot{
		Paper: domain.Paper{ID: 5, Filename: "exam.png", IsProcessed: true},
		Questions: []domain.Question{
			{ID: 1, PaperID: 5, OCRText: "1 + 1", SolutionText: "2"},
			{ID: 2, PaperID: 5, OCRText: "2 + 2"},
		},
	})
	var calls atomic.Int32
	backend.OnGet(func(int64) {
		if calls.Add(1) == 2 {
			backend.UpdateQuestion(2, func(q *domain.Question) { q.SolutionText = "4" })
		}
	})

	out := runCLI(t, backend, "watch", "5")
	if !strings.Contains(out, "exam.png: 2 solved, 0 unsolved") {
		t.Fatalf("expected final solved summary, got:\n%s", out)
	}
	if !strings.Contains(out, "Q2") {
		t.Fatalf("expected question labels, got:\n%s", out)
	}
}

func TestWatchSolveFlag(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.AddPaper(domain.Snapshot{
		Paper:     domain.Paper{ID: 6, Filename: "hw.png", IsProcessed: true},
		Questions: []domain.Question{{ID: 9, PaperID: 6, OCRText: "x^2 = 4", IsIncomplete: true}},
	})

	out := runCLI(t, backend, "watch", "6", "--solve", "9")
	if !strings.Contains(out, "generating") {
		t.Fatalf("expected the in-progress marker, got:\n%s", out)
	}
	if backend.Calls("POST /solve/{id}") != 1 {
		t.Fatalf("expected one solve request")
	}
}

func TestUploadThenWatch(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.OnProcess(func(paperID int64) {
		backend.SetQuestions(paperID, []domain.Question{
			{ID: 70, PaperID: paperID, OCRText: "Find the", IsIncomplete: true},
		})
	})

	file := filepath.Join(t.TempDir(), "final.jpg")
	if err := os.WriteFile(file, []byte("jpeg"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	out := runCLI(t, backend, "upload", file)
	if !strings.Contains(out, "uploaded final.jpg as paper") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "1 incomplete") {
		t.Fatalf("expected incomplete question, got:\n%s", out)
	}
}

func runCLI(t *testing.T, backend *remotetest.Backend, args ...string) string {
	t.Helper()
	t.Setenv("QSNAP_REMOTE_URL", backend.URL)
	t.Setenv("QSNAP_POLL_INTERVAL", "5ms")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}
