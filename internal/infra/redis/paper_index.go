package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"qsnap-gateway/internal/domain"
)

const papersKey = "qsnap:papers"

// PaperLister fetches the paper listing from the processing backend.
type PaperLister interface {
	ListPapers(ctx context.Context) ([]domain.PaperSummary, error)
}

// PaperIndex caches the paper listing in Redis as a JSON document shared by all
// gateway instances, falling back to the lister on a miss.
type PaperIndex struct {
	client *redis.Client
	lister PaperLister
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	gen atomic.Uint64
}

func NewPaperIndex(client *redis.Client, lister PaperLister, ttl time.Duration) *PaperIndex {
	return &PaperIndex{
		client: client,
		lister: lister,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (x *PaperIndex) ListPapers(ctx context.Context) ([]domain.PaperSummary, error) {
	if papers, ok := x.cached(ctx); ok {
		return papers, nil
	}

	result, err, _ := x.sf.Do(papersKey, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if papers, ok := x.cached(ctx); ok {
			return papers, nil
		}
		gen := x.gen.Load()

		papers, err := x.lister.ListPapers(ctx)
		if err != nil {
			return nil, err
		}

		if x.gen.Load() != gen {
			// Invalidated while fetching; serve the result without caching it.
			return papers, nil
		}
		raw, err := json.Marshal(papers)
		if err != nil {
			return nil, err
		}
		if err := x.client.Set(ctx, papersKey, raw, x.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache paper listing: %v", err)
		}
		return papers, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.PaperSummary(nil), result.([]domain.PaperSummary)...), nil
}

// Invalidate deletes the cached listing.
func (x *PaperIndex) Invalidate(ctx context.Context) {
	x.gen.Add(1)
	if err := x.client.Del(ctx, papersKey).Err(); err != nil {
		log.Printf("invalidate paper listing: %v", err)
	}
	x.sf.Forget(papersKey)
}

func (x *PaperIndex) cached(ctx context.Context) ([]domain.PaperSummary, bool) {
	raw, err := x.client.Get(ctx, papersKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read paper listing: %v", err)
		}
		return nil, false
	}
	var papers []domain.PaperSummary
	if err := json.Unmarshal(raw, &papers); err != nil {
		log.Printf("decode paper listing: %v", err)
		return nil, false
	}
	return papers, true
}

func (x *PaperIndex) ttlWithJitter() time.Duration {
	if x.ttl <= 0 {
		return 0
	}
	jitterMax := int64(x.ttl) / 10
	x.rndMu.Lock()
	defer x.rndMu.Unlock()
	return x.ttl + time.Duration(x.rnd.Int63n(jitterMax+1))
}
