package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"qsnap-gateway/internal/domain"
	"qsnap-gateway/internal/remote/remotetest"
)

func TestPapersListingIsCached(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.AddPaper(sampleSnapshot())
	server, _ := newTestServer(t, backend, time.Hour)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(server.URL + "/papers")
		if err != nil {
			t.Fatalf("get papers: %v", err)
		}
		var papers []domain.PaperSummary
		if err := json.NewDecoder(resp.Body).Decode(&papers); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp.Body.Close()
		if len(papers) != 1 || papers[0].Filename != "midterm.png" {
			t.Fatalf("unexpected listing %+v", papers)
		}
	}
	if n := backend.Calls("GET /papers"); n != 1 {
		t.Fatalf("expected one backend listing call, got %d", n)
	}
}

func TestExportReturnsAbsoluteURL(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.AddPaper(sampleSnapshot())
	server, _ := newTestServer(t, backend, time.Hour)

	resp, err := http.Get(server.URL + "/papers/1/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	var res domain.ExportResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(res.DownloadURL, backend.URL) {
		t.Fatalf("expected download url on the backend, got %s", res.DownloadURL)
	}
}

func TestDeletePaperClosesWorkspaces(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	backend.AddPaper(sampleSnapshot())
	server, service := newTestServer(t, backend, time.Hour)

	conn := dial(t, server, "/ws?paperId=1")
	readNext(t, conn, "view")

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/papers/1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if len(service.OpenWorkspaces()) != 0 {
		t.Fatalf("expected workspaces on the deleted paper to close")
	}

	var msg struct {
		Type string `json:"type"`
	}
	for msg.Type != "closed" {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
	}
}

func TestPapersRejectsBadID(t *testing.T) {
	backend := remotetest.NewBackend()
	defer backend.Close()
	server, _ := newTestServer(t, backend, time.Hour)

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/papers/zero", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
