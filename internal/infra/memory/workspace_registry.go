package memory

import (
	"sort"
	"sync"

	"qsnap-gateway/internal/app"
)

// WorkspaceRegistry is an in-memory implementation of app.WorkspaceRegistry.
type WorkspaceRegistry struct {
	mu         sync.RWMutex
	workspaces map[string]*app.Workspace
}

func NewWorkspaceRegistry() *WorkspaceRegistry {
	return &WorkspaceRegistry{
		workspaces: make(map[string]*app.Workspace),
	}
}

func (r *WorkspaceRegistry) Add(ws *app.Workspace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces[ws.ID()] = ws
}

func (r *WorkspaceRegistry) Get(id string) (*app.Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.workspaces[id]
	return ws, ok
}

func (r *WorkspaceRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, id)
}

// All returns the open workspaces ordered by id.
func (r *WorkspaceRegistry) All() []*app.Workspace {
	r.mu.RLock()
	out := make([]*app.Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		out = append(out, ws)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
