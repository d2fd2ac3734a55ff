package packstack

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

const k1 ResourceKey = "assets/mod/k1.json"

func writeFiles(t *testing.T, fsys billy.Filesystem, files map[string]string) {
	t.Helper()
	for name, data := range files {
		require.NoError(t, util.WriteFile(fsys, name, []byte(data), 0o644))
	}
}

func newFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	writeFiles(t, fsys, files)
	return fsys
}

// scenario builds base <- derived, with version v9 bound to derived and
// loader fab enabled. base defines k1 as "a.json"; the v9 override defines
// it as "b.json"; there is no (v9, fab) override.
func scenario(t *testing.T, opts ...Option) (*Planner, billy.Filesystem) {
	t.Helper()
	fsys := newFS(t, map[string]string{
		"versions/shared/base/assets/mod/k1.json":    "a.json",
		"versions/shared/base/assets/mod/only.json":  "base-only",
		"versions/shared/derived/data/mod/tags.json": "derived",
		"versions/v9/assets/mod/k1.json":             "b.json",
	})
	graph, err := BuildGraph([]PackDescriptor{
		{ID: "base"},
		{ID: "derived", Parent: "base"},
	})
	require.NoError(t, err)

	planner, err := NewPlanner(graph, []VersionDescriptor{
		{Version: "v9", BasePack: "derived", Loaders: []string{"fab", "neo"}},
	}, fsys, opts...)
	require.NoError(t, err)
	return planner, fsys
}

func mustPlan(t *testing.T, p *Planner, version, loader string) Plan {
	t.Helper()
	plan, err := p.Plan(version, loader)
	require.NoError(t, err)
	return plan
}

func mustMerge(t *testing.T, plan Plan, opts ...Option) *EffectiveSet {
	t.Helper()
	set, err := NewMerger(opts...).Merge(context.Background(), plan)
	require.NoError(t, err)
	return set
}

func content(t *testing.T, set *EffectiveSet, key ResourceKey) string {
	t.Helper()
	r, ok := set.Get(key)
	require.True(t, ok, "missing %s", key)
	return string(r.Content)
}
