package packstack

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *atomic.Int32, func(map[string]string)) {
	t.Helper()
	var merges atomic.Int32
	opts = append([]Option{
		WithContentDigest(true),
		WithMergeHook(func(Plan) { merges.Add(1) }),
	}, opts...)
	p, fsys := scenario(t, opts...)
	c, err := NewCache(p, opts...)
	require.NoError(t, err)
	return c, &merges, func(files map[string]string) { writeFiles(t, fsys, files) }
}

func TestCacheReusesUnchangedResult(t *testing.T) {
	c, merges, _ := newTestCache(t)
	ctx := context.Background()

	first, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	second, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), merges.Load())
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Merges: 1, Entries: 1}, c.Stats())
}

func TestCacheRebuildsWhenLayerChanges(t *testing.T) {
	c, merges, write := newTestCache(t)
	ctx := context.Background()

	set, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	assert.Equal(t, "b.json", content(t, set, k1))

	write(map[string]string{"versions/v9/assets/mod/k1.json": "b2.json"})
	set, err = c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	assert.Equal(t, "b2.json", content(t, set, k1))
	assert.Equal(t, int32(2), merges.Load())
}

func TestCacheRebuildsWhenOverrideAppears(t *testing.T) {
	c, _, write := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)

	write(map[string]string{"versions/v9/fab/assets/mod/k1.json": "c.json"})
	set, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	assert.Equal(t, "c.json", content(t, set, k1))
}

func TestCacheKeepsPairsIndependent(t *testing.T) {
	c, merges, write := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	_, err = c.Get(ctx, "v9", "neo")
	require.NoError(t, err)
	assert.Equal(t, int32(2), merges.Load())

	write(map[string]string{"versions/v9/neo/assets/mod/k1.json": "n.json"})
	_, err = c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	assert.Equal(t, int32(2), merges.Load(), "fab does not see the neo layer")

	set, err := c.Get(ctx, "v9", "neo")
	require.NoError(t, err)
	assert.Equal(t, "n.json", content(t, set, k1))
	assert.Equal(t, int32(3), merges.Load())
}

func TestCacheDeduplicatesConcurrentRequests(t *testing.T) {
	c, merges, _ := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	sets := make([]*EffectiveSet, 16)
	for i := range sets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := c.Get(ctx, "v9", "fab")
			assert.NoError(t, err)
			sets[i] = set
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), merges.Load())
	for _, s := range sets {
		assert.Same(t, sets[0], s)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, merges, _ := newTestCache(t, WithCacheSize(1))
	ctx := context.Background()

	_, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	_, err = c.Get(ctx, "v9", "neo")
	require.NoError(t, err)
	_, err = c.Get(ctx, "v9", "fab")
	require.NoError(t, err)

	assert.Equal(t, int32(3), merges.Load())
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestCacheInvalidateAndPurge(t *testing.T) {
	c, merges, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	c.Invalidate("v9", "fab")
	_, err = c.Get(ctx, "v9", "fab")
	require.NoError(t, err)
	assert.Equal(t, int32(2), merges.Load())

	c.Purge()
	assert.Equal(t, 0, c.Stats().Entries)
	assert.Equal(t, uint64(2), c.Stats().Merges)
}

func TestCachePropagatesPlanErrors(t *testing.T) {
	c, merges, _ := newTestCache(t)

	_, err := c.Get(context.Background(), "v9", "quilt")
	assert.ErrorIs(t, err, ErrLoaderNotEnabled)
	_, err = c.Get(context.Background(), "v1", "fab")
	assert.ErrorIs(t, err, ErrUnknownVersion)
	assert.Zero(t, merges.Load())
}

func TestResolveAllKeepsRequestOrder(t *testing.T) {
	c, _, write := newTestCache(t)
	write(map[string]string{
		"versions/v9/fab/assets/mod/k1.json": "fab",
		"versions/v9/neo/assets/mod/k1.json": "neo",
	})

	sets, err := c.ResolveAll(context.Background(), []Pair{
		{Version: "v9", Loader: "neo"},
		{Version: "v9", Loader: "fab"},
	})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "neo", content(t, sets[0], k1))
	assert.Equal(t, "fab", content(t, sets[1], k1))

	_, err = c.ResolveAll(context.Background(), []Pair{{Version: "v9", Loader: "quilt"}})
	assert.ErrorIs(t, err, ErrLoaderNotEnabled)
}

func TestSignatureTracksLayerOrderAndDigests(t *testing.T) {
	c, _, write := newTestCache(t)
	ctx := context.Background()
	plan := mustPlan(t, c.Planner(), "v9", "fab")

	sig, err := c.Signature(ctx, plan)
	require.NoError(t, err)
	require.Len(t, sig, 3)
	assert.Equal(t, LayerID("pack:base"), sig[0].Layer)
	assert.Equal(t, LayerID("version:v9"), sig[2].Layer)

	again, err := c.Signature(ctx, plan)
	require.NoError(t, err)
	assert.True(t, sig.Equal(again))

	write(map[string]string{"versions/shared/base/assets/mod/k1.json": "a2.json"})
	changed, err := c.Signature(ctx, plan)
	require.NoError(t, err)
	assert.False(t, sig.Equal(changed))
	assert.NotEqual(t, sig[0].Digest, changed[0].Digest)
	assert.Equal(t, sig[1], changed[1])
}

func TestCacheOnDiskMetadataDigest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "versions", "shared", "base", "assets", "mod", "k1.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	graph, err := BuildGraph([]PackDescriptor{{ID: "base"}})
	require.NoError(t, err)
	p, err := NewPlanner(graph, []VersionDescriptor{{Version: "1.21.1", BasePack: "base", Loaders: []string{"fabric"}}}, osfs.New(dir))
	require.NoError(t, err)
	c, err := NewCache(p)
	require.NoError(t, err)
	ctx := context.Background()

	set, err := c.Get(ctx, "1.21.1", "fabric")
	require.NoError(t, err)
	assert.Equal(t, "a", content(t, set, k1))

	require.NoError(t, os.WriteFile(file, []byte("longer"), 0o644))
	set, err = c.Get(ctx, "1.21.1", "fabric")
	require.NoError(t, err)
	assert.Equal(t, "longer", content(t, set, k1))
	assert.Equal(t, uint64(2), c.Stats().Merges)
}
