package packstack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/aweris/packstack/internal/logger"
)

// Merger folds a plan's layers into an EffectiveSet. Later layers replace
// earlier ones key by key; contents are never combined.
type Merger struct {
	concurrency int
	hook        MergeHook
	log         *log.Logger
}

// NewMerger returns a merger configured by opts.
func NewMerger(opts ...Option) *Merger {
	return newMerger(applyOptions(opts))
}

func newMerger(o *Options) *Merger {
	return &Merger{
		concurrency: o.Concurrency,
		hook:        o.MergeHook,
		log:         logger.ForComponent(o.Logger, "merge"),
	}
}

// Merge lists every layer, lets the last layer holding a key win, then reads
// the winning contents. The result depends only on the plan and layer contents.
func (m *Merger) Merge(ctx context.Context, plan Plan) (*EffectiveSet, error) {
	start := time.Now()
	if m.hook != nil {
		m.hook(plan)
	}

	listings := make([][]ResourceKey, len(plan.Sources))
	p := pool.New().WithMaxGoroutines(m.concurrency).WithContext(ctx).WithCancelOnError()
	for i, src := range plan.Sources {
		p.Go(func(ctx context.Context) error {
			keys, err := src.Store.ListKeys()
			if err != nil {
				return fmt.Errorf("list layer %s: %w", src.ID, err)
			}
			listings[i] = keys
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	winners := make(map[ResourceKey]int)
	for i, keys := range listings {
		for _, key := range keys {
			winners[key] = i
		}
	}

	type slot struct {
		key     ResourceKey
		layer   int
		content []byte
	}
	slots := make([]slot, 0, len(winners))
	for key, layer := range winners {
		slots = append(slots, slot{key: key, layer: layer})
	}

	p = pool.New().WithMaxGoroutines(m.concurrency).WithContext(ctx).WithCancelOnError()
	for i := range slots {
		p.Go(func(ctx context.Context) error {
			src := plan.Sources[slots[i].layer]
			data, err := src.Store.Read(slots[i].key)
			if err != nil {
				return fmt.Errorf("read %s from %s: %w", slots[i].key, src.ID, err)
			}
			slots[i].content = data
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	entries := make(map[ResourceKey]Resource, len(slots))
	for _, s := range slots {
		entries[s.key] = Resource{
			Key:     s.key,
			Content: s.content,
			Origin:  plan.Sources[s.layer].ID,
		}
	}

	m.log.Debug("merged", "version", plan.Version, "loader", plan.Loader,
		"layers", len(plan.Sources), "resources", len(entries), "took", time.Since(start))
	return newEffectiveSet(plan.Version, plan.Loader, entries), nil
}

// ResolveOne looks key up from the highest-precedence layer down and stops at
// the first hit. A missing key returns ok == false and a nil error.
func ResolveOne(plan Plan, key ResourceKey) (Resource, bool, error) {
	for i := len(plan.Sources) - 1; i >= 0; i-- {
		src := plan.Sources[i]
		data, err := src.Store.Read(key)
		if errors.Is(err, ErrResourceMissing) {
			continue
		}
		if err != nil {
			return Resource{}, false, fmt.Errorf("resolve %s in %s: %w", key, src.ID, err)
		}
		return Resource{Key: key, Content: data, Origin: src.ID}, true, nil
	}
	return Resource{}, false, nil
}
