// Package remotetest provides an in-process fake of the processing backend for tests.
package remotetest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"qsnap-gateway/internal/domain"
)

// SolveFunc produces the result of POST /solve/{id}. A non-nil error becomes a 500.
type SolveFunc func(questionID int64) (domain.Solution, error)

// Backend is a programmable fake of the processing backend.
type Backend struct {
	*httptest.Server

	mu        sync.Mutex
	papers    map[int64]*domain.Snapshot
	nextID    int64
	failGets  int
	failProc  bool
	getHook   func(paperID int64)
	solve     SolveFunc
	onProcess func(paperID int64)
	calls     map[string]int
}

func NewBackend() *Backend {
	b := &Backend{
		papers: make(map[int64]*domain.Snapshot),
		nextID: 100,
		calls:  make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /papers", b.listPapers)
	mux.HandleFunc("GET /papers/{id}", b.getPaper)
	mux.HandleFunc("DELETE /papers/{id}", b.deletePaper)
	mux.HandleFunc("POST /upload", b.upload)
	mux.HandleFunc("POST /process/{id}", b.process)
	mux.HandleFunc("POST /solve/{id}", b.solveQuestion)
	mux.HandleFunc("GET /export/{id}", b.export)
	b.Server = httptest.NewServer(mux)
	return b
}

// AddPaper seeds a paper snapshot.
func (b *Backend) AddPaper(snap domain.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := snap
	cp.Questions = append([]domain.Question(nil), snap.Questions...)
	b.papers[snap.Paper.ID] = &cp
}

// SetQuestions replaces a paper's questions and marks it processed.
func (b *Backend) SetQuestions(paperID int64, questions []domain.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.papers[paperID]; ok {
		p.Questions = append([]domain.Question(nil), questions...)
		p.Paper.IsProcessed = true
	}
}

// UpdateQuestion mutates one stored question.
func (b *Backend) UpdateQuestion(questionID int64, fn func(q *domain.Question)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.papers {
		for i := range p.Questions {
			if p.Questions[i].ID == questionID {
				fn(&p.Questions[i])
			}
		}
	}
}

// FailNextGets makes the next n snapshot fetches answer 503.
func (b *Backend) FailNextGets(n int) {
	b.mu.Lock()
	b.failGets = n
	b.mu.Unlock()
}

// FailProcess makes detection triggers answer 500.
func (b *Backend) FailProcess(fail bool) {
	b.mu.Lock()
	b.failProc = fail
	b.mu.Unlock()
}

// OnGet runs fn before every snapshot fetch is answered; it may block.
func (b *Backend) OnGet(fn func(paperID int64)) {
	b.mu.Lock()
	b.getHook = fn
	b.mu.Unlock()
}

// OnProcess runs fn when detection is triggered.
func (b *Backend) OnProcess(fn func(paperID int64)) {
	b.mu.Lock()
	b.onProcess = fn
	b.mu.Unlock()
}

// SetSolve overrides how solve requests are answered.
func (b *Backend) SetSolve(fn SolveFunc) {
	b.mu.Lock()
	b.solve = fn
	b.mu.Unlock()
}

// Calls returns how many requests matched the route pattern, e.g. "GET /papers/{id}".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

func (b *Backend) count(route string) {
	b.mu.Lock()
	b.calls[route]++
	b.mu.Unlock()
}

func (b *Backend) listPapers(w http.ResponseWriter, r *http.Request) {
	b.count("GET /papers")
	b.mu.Lock()
	out := make([]domain.PaperSummary, 0, len(b.papers))
	for _, p := range b.papers {
		out = append(out, domain.PaperSummary{
			ID:          p.Paper.ID,
			Filename:    p.Paper.Filename,
			CreatedAt:   p.Paper.CreatedAt,
			IsProcessed: p.Paper.IsProcessed,
		})
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getPaper(w http.ResponseWriter, r *http.Request) {
	b.count("GET /papers/{id}")
	paperID, ok := pathID(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	hook := b.getHook
	b.mu.Unlock()
	if hook != nil {
		hook(paperID)
	}

	b.mu.Lock()
	if b.failGets > 0 {
		b.failGets--
		b.mu.Unlock()
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	p, found := b.papers[paperID]
	var snap domain.Snapshot
	if found {
		snap = *p
		snap.Questions = append([]domain.Question{}, p.Questions...)
	}
	b.mu.Unlock()

	if !found {
		http.Error(w, `{"detail":"Paper not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (b *Backend) deletePaper(w http.ResponseWriter, r *http.Request) {
	b.count("DELETE /papers/{id}")
	paperID, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	_, found := b.papers[paperID]
	delete(b.papers, paperID)
	b.mu.Unlock()
	if !found {
		http.Error(w, `{"detail":"Paper not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Paper deleted successfully"})
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	b.count("POST /upload")
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	_, _ = io.Copy(io.Discard, file)

	b.mu.Lock()
	b.nextID++
	paperID := b.nextID
	b.papers[paperID] = &domain.Snapshot{
		Paper: domain.Paper{
			ID:        paperID,
			Filename:  header.Filename,
			FilePath:  "static/uploads/" + header.Filename,
			CreatedAt: domain.Timestamp{Time: time.Now().UTC()},
		},
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, domain.UploadResult{ID: paperID, Filename: header.Filename})
}

func (b *Backend) process(w http.ResponseWriter, r *http.Request) {
	b.count("POST /process/{id}")
	paperID, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	_, found := b.papers[paperID]
	hook := b.onProcess
	fail := b.failProc
	b.mu.Unlock()
	if fail {
		http.Error(w, "detector offline", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, `{"detail":"Paper not found"}`, http.StatusNotFound)
		return
	}
	if hook != nil {
		hook(paperID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processing_started"})
}

func (b *Backend) solveQuestion(w http.ResponseWriter, r *http.Request) {
	b.count("POST /solve/{id}")
	questionID, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	fn := b.solve
	var found bool
	for _, p := range b.papers {
		for _, q := range p.Questions {
			if q.ID == questionID {
				found = true
			}
		}
	}
	b.mu.Unlock()
	if !found {
		http.Error(w, `{"detail":"Question not found"}`, http.StatusNotFound)
		return
	}

	sol := domain.Solution{Solution: "solution for " + strconv.FormatInt(questionID, 10)}
	if fn != nil {
		var err error
		sol, err = fn(questionID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	b.UpdateQuestion(questionID, func(q *domain.Question) {
		q.SolutionText = sol.Solution
		q.Analysis = sol.Solution
		q.Answer = sol.Answer
	})
	writeJSON(w, http.StatusOK, sol)
}

func (b *Backend) export(w http.ResponseWriter, r *http.Request) {
	b.count("GET /export/{id}")
	paperID, ok := pathID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domain.ExportResult{
		DownloadURL: "/static/uploads/solutions_" + strconv.FormatInt(paperID, 10) + ".docx",
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrSolveUnavailable is a convenient failure for SetSolve.
var ErrSolveUnavailable = errors.New("llm unavailable")
