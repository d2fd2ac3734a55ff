package packstack

import (
	"cmp"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"

	"github.com/aweris/packstack/internal/layerstore"
)

// VersionDescriptor binds a target version to its base pack and enabled loaders.
type VersionDescriptor struct {
	Version     string
	BasePack    string
	Loaders     []string
	JavaVersion int
	// Root is the version override root relative to the project filesystem.
	// Loader overrides live directly below it. Empty means Layout.VersionRoot.
	Root string
}

// LoaderEnabled reports whether loader is enabled for this version.
func (v VersionDescriptor) LoaderEnabled(loader string) bool {
	return slices.Contains(v.Loaders, loader)
}

// Layout maps layer identities to roots inside the project filesystem.
type Layout interface {
	PackRoot(pack string) string
	VersionRoot(version string) string
	LoaderRoot(version, loader string) string
}

// ProjectLayout is the on-disk layout of a generated mod project:
//
//	versions/shared/<pack>/       shared packs
//	versions/<1_21_1>/            version overrides
//	versions/<1_21_1>/<loader>/   loader overrides
type ProjectLayout struct{}

const (
	versionsDir = "versions"
	sharedDir   = "shared"
)

func (ProjectLayout) PackRoot(pack string) string {
	return path.Join(versionsDir, sharedDir, pack)
}

func (ProjectLayout) VersionRoot(version string) string {
	return path.Join(versionsDir, VersionDir(version))
}

func (ProjectLayout) LoaderRoot(version, loader string) string {
	return path.Join(versionsDir, VersionDir(version), loader)
}

// VersionDir returns the directory name of a version ("1.21.1" -> "1_21_1").
func VersionDir(version string) string {
	return strings.ReplaceAll(version, ".", "_")
}

// Planner maps (version, loader) requests to ordered layer lists. It owns the
// pack graph for its lifetime and never mutates it.
type Planner struct {
	graph    *PackGraph
	versions map[string]VersionDescriptor
	fsys     billy.Filesystem
	opts     *Options
}

func versionRoot(l Layout, v VersionDescriptor) string {
	if v.Root != "" {
		return v.Root
	}
	return l.VersionRoot(v.Version)
}

func loaderRoot(l Layout, v VersionDescriptor, loader string) string {
	if v.Root != "" {
		return path.Join(v.Root, loader)
	}
	return l.LoaderRoot(v.Version, loader)
}

// NewPlanner validates version bindings against graph. It fails with
// DuplicateVersionError or UnknownBasePackError.
func NewPlanner(graph *PackGraph, versions []VersionDescriptor, fsys billy.Filesystem, opts ...Option) (*Planner, error) {
	return newPlanner(graph, versions, fsys, applyOptions(opts))
}

func newPlanner(graph *PackGraph, versions []VersionDescriptor, fsys billy.Filesystem, options *Options) (*Planner, error) {
	if graph == nil {
		return nil, fmt.Errorf("new planner: graph is nil")
	}
	p := &Planner{
		graph:    graph,
		versions: make(map[string]VersionDescriptor, len(versions)),
		fsys:     fsys,
		opts:     options,
	}
	for _, v := range versions {
		if v.Version == "" {
			return nil, fmt.Errorf("new planner: version id is empty")
		}
		if _, exists := p.versions[v.Version]; exists {
			return nil, &DuplicateVersionError{Version: v.Version}
		}
		if _, ok := graph.Pack(v.BasePack); !ok {
			return nil, &UnknownBasePackError{Version: v.Version, Pack: v.BasePack}
		}
		v.Loaders = slices.Clone(v.Loaders)
		p.versions[v.Version] = v
	}
	return p, nil
}

// Graph returns the pack graph the planner resolves against.
func (p *Planner) Graph() *PackGraph { return p.graph }

// Binding returns the descriptor registered for version.
func (p *Planner) Binding(version string) (VersionDescriptor, bool) {
	v, ok := p.versions[version]
	return v, ok
}

// Versions returns the registered versions, oldest first. Ids that are not
// semantic versions sort after the rest, lexically.
func (p *Planner) Versions() []VersionDescriptor {
	ids := slices.Collect(maps.Keys(p.versions))
	SortVersions(ids)
	out := make([]VersionDescriptor, len(ids))
	for i, id := range ids {
		out[i] = p.versions[id]
	}
	return out
}

// SortVersions orders version ids semantically, falling back to lexical order.
func SortVersions(ids []string) {
	parsed := make(map[string]*semver.Version, len(ids))
	for _, id := range ids {
		if v, err := semver.NewVersion(id); err == nil {
			parsed[id] = v
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		va, vb := parsed[a], parsed[b]
		switch {
		case va != nil && vb != nil:
			if c := va.Compare(vb); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		case va != nil:
			return -1
		case vb != nil:
			return 1
		default:
			return cmp.Compare(a, b)
		}
	})
}

// PlanOption adjusts a single Plan call.
type PlanOption func(*planConfig)

type planConfig struct {
	allowDisabledLoader bool
}

// AllowDisabledLoader skips the enabled-loader check. Diagnostic tooling uses
// it to inspect loaders a version does not ship.
func AllowDisabledLoader() PlanOption {
	return func(c *planConfig) { c.allowDisabledLoader = true }
}

// Plan returns the layers for (version, loader), lowest precedence first:
// the base pack's ancestry chain (root-most first), then the version override
// and the loader override when their roots exist. An empty loader plans the
// version without a loader layer and requires AllowDisabledLoader.
func (p *Planner) Plan(version, loader string, opts ...PlanOption) (Plan, error) {
	var cfg planConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	binding, ok := p.versions[version]
	if !ok {
		return Plan{}, &UnknownVersionError{Version: version}
	}
	if !cfg.allowDisabledLoader && !binding.LoaderEnabled(loader) {
		enabled := slices.Clone(binding.Loaders)
		slices.Sort(enabled)
		return Plan{}, &LoaderNotEnabledError{Version: version, Loader: loader, Enabled: enabled}
	}

	chain, err := p.graph.AncestryChain(binding.BasePack)
	if err != nil {
		return Plan{}, fmt.Errorf("plan %s/%s: %w", version, loader, err)
	}

	plan := Plan{Version: version, Loader: loader}
	for _, id := range chain {
		root := p.graph.packs[id].Root
		if root == "" {
			root = p.opts.Layout.PackRoot(id)
		}
		plan.Sources = append(plan.Sources, LayerSource{
			ID:    packLayerID(id),
			Kind:  PackLayer,
			Store: p.store(root),
		})
	}

	overrides := []LayerSource{{
		ID:    versionLayerID(version),
		Kind:  VersionLayer,
		Store: p.store(versionRoot(p.opts.Layout, binding)),
	}}
	if loader != "" {
		overrides = append(overrides, LayerSource{
			ID:    loaderLayerID(version, loader),
			Kind:  LoaderLayer,
			Store: p.store(loaderRoot(p.opts.Layout, binding, loader)),
		})
	}
	for _, src := range overrides {
		present, err := src.Store.Exists()
		if err != nil {
			return Plan{}, fmt.Errorf("plan %s/%s: %w", version, loader, err)
		}
		if present {
			plan.Sources = append(plan.Sources, src)
		}
	}
	return plan, nil
}

func (p *Planner) store(root string) *LayerStore {
	return layerstore.New(p.fsys, root,
		layerstore.WithIgnore(p.opts.Ignore...),
		layerstore.WithContentDigest(p.opts.ContentDigest),
	)
}
