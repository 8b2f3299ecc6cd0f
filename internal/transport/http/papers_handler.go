package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"qsnap-gateway/internal/app"
	"qsnap-gateway/internal/domain"
)

// PapersHandler exposes the paper listing and per-paper actions that do not need a workspace.
type PapersHandler struct {
	service *app.WorkspaceService
}

func NewPapersHandler(service *app.WorkspaceService) *PapersHandler {
	return &PapersHandler{service: service}
}

// Register mounts the handler's routes on mux.
func (h *PapersHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /papers", h.list)
	mux.HandleFunc("DELETE /papers/{id}", h.delete)
	mux.HandleFunc("GET /papers/{id}/export", h.export)
}

func (h *PapersHandler) list(w http.ResponseWriter, r *http.Request) {
	papers, err := h.service.ListPapers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if papers == nil {
		papers = []domain.PaperSummary{}
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *PapersHandler) delete(w http.ResponseWriter, r *http.Request) {
	paperID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePaper(r.Context(), paperID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PapersHandler) export(w http.ResponseWriter, r *http.Request) {
	paperID, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Export(r.Context(), paperID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid paper id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, domain.ErrPaperNotFound) {
		status = http.StatusNotFound
	} else {
		log.Printf("papers request failed: %v", err)
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
