package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"qsnap-gateway/internal/domain"
)

const papersKey = "papers"

// PaperLister fetches the paper listing from the processing backend.
type PaperLister interface {
	ListPapers(ctx context.Context) ([]domain.PaperSummary, error)
}

// PaperIndex caches the paper listing with a TTL so dashboards do not hammer the backend.
type PaperIndex struct {
	lister PaperLister
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	papers    []domain.PaperSummary
	expiresAt time.Time
	cached    bool
	gen       uint64
}

func NewPaperIndex(lister PaperLister, ttl time.Duration) *PaperIndex {
	return &PaperIndex{
		lister: lister,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (x *PaperIndex) ListPapers(ctx context.Context) ([]domain.PaperSummary, error) {
	if papers, ok := x.lookup(x.clock()); ok {
		return papers, nil
	}

	result, err, _ := x.sf.Do(papersKey, func() (interface{}, error) {
		now := x.clock()
		if papers, ok := x.lookup(now); ok {
			return papers, nil
		}
		x.mu.RLock()
		gen := x.gen
		x.mu.RUnlock()

		papers, err := x.lister.ListPapers(ctx)
		if err != nil {
			return nil, err
		}

		x.mu.Lock()
		// An Invalidate during the fetch means papers may already be stale.
		if x.gen == gen {
			x.papers = papers
			x.expiresAt = now.Add(x.ttlWithJitter())
			x.cached = true
		}
		x.mu.Unlock()
		return papers, nil
	})
	if err != nil {
		return nil, err
	}
	return clonePapers(result.([]domain.PaperSummary)), nil
}

// Invalidate drops the cached listing; the next call goes to the backend.
func (x *PaperIndex) Invalidate(context.Context) {
	x.mu.Lock()
	x.papers = nil
	x.cached = false
	x.gen++
	x.mu.Unlock()
	x.sf.Forget(papersKey)
}

func (x *PaperIndex) lookup(now time.Time) ([]domain.PaperSummary, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.cached || !x.expiresAt.After(now) {
		return nil, false
	}
	return clonePapers(x.papers), true
}

func (x *PaperIndex) ttlWithJitter() time.Duration {
	if x.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(x.ttl) / 10
	return x.ttl + time.Duration(x.rnd.Int63n(jitterMax+1))
}

func clonePapers(in []domain.PaperSummary) []domain.PaperSummary {
	return append([]domain.PaperSummary(nil), in...)
}
