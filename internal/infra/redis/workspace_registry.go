package redis

import (
	"context"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"qsnap-gateway/internal/app"
)

// WorkspaceRegistry is a Redis-aware implementation of app.WorkspaceRegistry.
// Workspaces own timers and goroutines, so they stay in a local map; Redis holds a
// liveness key per workspace (value: paper id) that expires unless refreshed.
type WorkspaceRegistry struct {
	client     *redis.Client
	ttl        time.Duration
	mu         sync.RWMutex
	workspaces map[string]*app.Workspace
}

func NewWorkspaceRegistry(client *redis.Client, ttl time.Duration) *WorkspaceRegistry {
	return &WorkspaceRegistry{
		client:     client,
		ttl:        ttl,
		workspaces: make(map[string]*app.Workspace),
	}
}

func (r *WorkspaceRegistry) Add(ws *app.Workspace) {
	r.mu.Lock()
	r.workspaces[ws.ID()] = ws
	r.mu.Unlock()
	// best-effort liveness marker
	if err := r.client.Set(context.Background(), Key(ws.ID()), strconv.FormatInt(ws.PaperID(), 10), r.ttl).Err(); err != nil {
		log.Printf("mark workspace %s live: %v", ws.ID(), err)
	}
}

func (r *WorkspaceRegistry) Get(id string) (*app.Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.workspaces[id]
	return ws, ok
}

func (r *WorkspaceRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.workspaces, id)
	r.mu.Unlock()
	_ = r.client.Del(context.Background(), Key(id)).Err()
}

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

// Refresh extends the liveness keys of every local workspace.
func (r *WorkspaceRegistry) Refresh(ctx context.Context) error {
	workspaces := r.All()
	if len(workspaces) == 0 || r.ttl <= 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, ws := range workspaces {
		pipe.Set(ctx, Key(ws.ID()), strconv.FormatInt(ws.PaperID(), 10), r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Key is the liveness key of a workspace.
func Key(workspaceID string) string {
	return "qsnap:workspace:" + workspaceID
}
