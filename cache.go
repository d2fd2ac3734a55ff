package packstack

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/aweris/packstack/internal/logger"
)

// SignatureEntry is one layer of a plan signature.
type SignatureEntry struct {
	Layer  LayerID
	Digest Digest
}

// Signature identifies the inputs of a merge: every planned layer with its
// digest, in plan order.
type Signature []SignatureEntry

// Equal reports whether both signatures describe the same layers and contents.
func (s Signature) Equal(other Signature) bool {
	return slices.Equal(s, other)
}

func (s Signature) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		d := string(e.Digest)
		if d == "" {
			d = "empty"
		}
		parts[i] = string(e.Layer) + "@" + d
	}
	return strings.Join(parts, ",")
}

// Pair names one (version, loader) request.
type Pair struct {
	Version string
	Loader  string
}

func (p Pair) String() string { return p.Version + "/" + p.Loader }

// CacheStats are cumulative cache counters.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Merges  uint64
	Entries int
}

type cacheEntry struct {
	signature Signature
	set       *EffectiveSet
}

// Cache memoises effective sets per (version, loader). An entry is reused
// only while the plan signature is unchanged; any layer change rebuilds the
// whole set. Safe for concurrent use.
type Cache struct {
	planner     *Planner
	merger      *Merger
	entries     *lru.Cache[Pair, *cacheEntry]
	sf          singleflight.Group
	concurrency int
	log         *log.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	merges atomic.Uint64
}

// NewCache returns a cache resolving through planner.
func NewCache(planner *Planner, opts ...Option) (*Cache, error) {
	return newCache(planner, applyOptions(opts))
}

func newCache(planner *Planner, o *Options) (*Cache, error) {
	entries, err := lru.New[Pair, *cacheEntry](o.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{
		planner:     planner,
		merger:      newMerger(o),
		entries:     entries,
		concurrency: o.Concurrency,
		log:         logger.ForComponent(o.Logger, "cache"),
	}, nil
}

// Planner returns the planner the cache resolves through.
func (c *Cache) Planner() *Planner { return c.planner }

// Get returns the effective set of (version, loader), merging only when no
// entry exists or the plan signature changed. Concurrent calls for the same
// pair share one computation.
func (c *Cache) Get(ctx context.Context, version, loader string, opts ...PlanOption) (*EffectiveSet, error) {
	plan, err := c.planner.Plan(version, loader, opts...)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, plan)
}

func (c *Cache) get(ctx context.Context, plan Plan) (*EffectiveSet, error) {
	key := Pair{Version: plan.Version, Loader: plan.Loader}
	v, err, _ := c.sf.Do(key.Version+"\x00"+key.Loader, func() (any, error) {
		sig, err := c.Signature(ctx, plan)
		if err != nil {
			return nil, err
		}

		if entry, ok := c.entries.Get(key); ok && entry.signature.Equal(sig) {
			c.hits.Add(1)
			c.log.Debug("hit", "pair", key)
			return entry.set, nil
		}

		c.misses.Add(1)
		c.log.Debug("miss", "pair", key, "signature", sig)
		set, err := c.merger.Merge(ctx, plan)
		if err != nil {
			return nil, err
		}
		c.merges.Add(1)
		c.entries.Add(key, &cacheEntry{signature: sig, set: set})
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EffectiveSet), nil
}

// Signature digests every layer of plan in parallel.
func (c *Cache) Signature(ctx context.Context, plan Plan) (Signature, error) {
	sig := make(Signature, len(plan.Sources))
	p := pool.New().WithMaxGoroutines(c.concurrency).WithContext(ctx).WithCancelOnError()
	for i, src := range plan.Sources {
		p.Go(func(ctx context.Context) error {
			d, err := src.Store.Digest()
			if err != nil {
				return fmt.Errorf("digest layer %s: %w", src.ID, err)
			}
			sig[i] = SignatureEntry{Layer: src.ID, Digest: d}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return sig, nil
}

// ResolveAll resolves independent pairs in parallel. Results are in the
// order of pairs; the first error aborts the rest.
func (c *Cache) ResolveAll(ctx context.Context, pairs []Pair) ([]*EffectiveSet, error) {
	sets := make([]*EffectiveSet, len(pairs))
	p := pool.New().WithMaxGoroutines(c.concurrency).WithContext(ctx).WithCancelOnError()
	for i, pair := range pairs {
		p.Go(func(ctx context.Context) error {
			set, err := c.Get(ctx, pair.Version, pair.Loader)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", pair, err)
			}
			sets[i] = set
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// Invalidate drops the entry of one pair.
func (c *Cache) Invalidate(version, loader string) {
	c.entries.Remove(Pair{Version: version, Loader: loader})
}

// Purge drops every entry. Counters are kept.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Merges:  c.merges.Load(),
		Entries: c.entries.Len(),
	}
}
