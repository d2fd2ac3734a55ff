package packstack

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/aweris/packstack/internal/logger"
)

// Project is an opened mod project: its pack graph, planner and resolution
// cache, built once from the descriptors on disk.
type Project struct {
	fsys billy.Filesystem
	opts *Options
	log  *log.Logger

	mu      sync.RWMutex
	planner *Planner
	cache   *Cache
}

// Open opens the project rooted at dir on the local filesystem.
func Open(dir string, opts ...Option) (*Project, error) {
	return OpenFS(osfs.New(dir), opts...)
}

// OpenFS opens the project rooted at fsys. Graph and binding errors abort
// the open; no partial project is returned.
func OpenFS(fsys billy.Filesystem, opts ...Option) (*Project, error) {
	o := applyOptions(opts)
	p := &Project{
		fsys: fsys,
		opts: o,
		log:  logger.ForComponent(o.Logger, "project"),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads all descriptors and replaces graph, planner and cache.
// On error the previous state is kept.
func (p *Project) Reload() error {
	packs, versions, err := LoadDescriptors(p.fsys)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	planner, cache, err := p.build(packs, versions)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}

	p.mu.Lock()
	p.planner, p.cache = planner, cache
	p.mu.Unlock()

	p.log.Debug("loaded", "root", p.fsys.Root(), "packs", len(packs), "versions", len(versions))
	return nil
}

func (p *Project) build(packs []PackDescriptor, versions []VersionDescriptor) (*Planner, *Cache, error) {
	graph, err := BuildGraph(packs)
	if err != nil {
		return nil, nil, err
	}
	planner, err := newPlanner(graph, versions, p.fsys, p.opts)
	if err != nil {
		return nil, nil, err
	}
	cache, err := newCache(planner, p.opts)
	if err != nil {
		return nil, nil, err
	}
	return planner, cache, nil
}

func (p *Project) state() (*Planner, *Cache) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.planner, p.cache
}

// FS returns the project filesystem.
func (p *Project) FS() billy.Filesystem { return p.fsys }

// Graph returns the current pack graph.
func (p *Project) Graph() *PackGraph {
	planner, _ := p.state()
	return planner.Graph()
}

// Planner returns the current planner.
func (p *Project) Planner() *Planner {
	planner, _ := p.state()
	return planner
}

// Cache returns the current resolution cache.
func (p *Project) Cache() *Cache {
	_, cache := p.state()
	return cache
}

// Versions returns the registered versions, oldest first.
func (p *Project) Versions() []VersionDescriptor {
	return p.Planner().Versions()
}

// Pairs returns every enabled (version, loader) pair, versions oldest first
// and loaders sorted.
func (p *Project) Pairs() []Pair {
	var pairs []Pair
	for _, v := range p.Versions() {
		loaders := slices.Clone(v.Loaders)
		slices.Sort(loaders)
		for _, l := range loaders {
			pairs = append(pairs, Pair{Version: v.Version, Loader: l})
		}
	}
	return pairs
}

// Plan returns the layer plan of (version, loader).
func (p *Project) Plan(version, loader string, opts ...PlanOption) (Plan, error) {
	return p.Planner().Plan(version, loader, opts...)
}

// Resolve returns the effective set of (version, loader) through the cache.
func (p *Project) Resolve(ctx context.Context, version, loader string, opts ...PlanOption) (*EffectiveSet, error) {
	return p.Cache().Get(ctx, version, loader, opts...)
}

// ResolveAll resolves pairs in parallel.
func (p *Project) ResolveAll(ctx context.Context, pairs []Pair) ([]*EffectiveSet, error) {
	return p.Cache().ResolveAll(ctx, pairs)
}

// Which returns the resource that wins for key under (version, loader)
// without merging the whole plan.
func (p *Project) Which(version, loader string, key ResourceKey, opts ...PlanOption) (Resource, bool, error) {
	plan, err := p.Plan(version, loader, opts...)
	if err != nil {
		return Resource{}, false, err
	}
	return ResolveOne(plan, key)
}

// AddPack registers a new pack. The extended descriptor set is validated
// before anything is written; on success the descriptor and empty resource
// roots are created and the project is reloaded. The pack root must sit
// directly below versions/shared, where descriptors are discovered.
func (p *Project) AddPack(d PackDescriptor) error {
	planner, _ := p.state()
	if _, exists := planner.Graph().Pack(d.ID); exists {
		return &DuplicatePackError{Pack: d.ID}
	}
	if d.Root == "" {
		d.Root = p.opts.Layout.PackRoot(d.ID)
	}
	if !packDiscoverable(d.Root) {
		return fmt.Errorf("add pack %s: %w: %s", d.ID, ErrUndiscoverable, d.Root)
	}
	graph, err := planner.Graph().With(d)
	if err != nil {
		return fmt.Errorf("add pack %s: %w", d.ID, err)
	}
	if _, err := newPlanner(graph, planner.Versions(), p.fsys, p.opts); err != nil {
		return fmt.Errorf("add pack %s: %w", d.ID, err)
	}

	if err := WritePackDescriptor(p.fsys, d.Root, d); err != nil {
		return fmt.Errorf("add pack %s: %w", d.ID, err)
	}
	p.log.Debug("added pack", "pack", d.ID, "parent", d.Parent, "root", d.Root)
	return p.Reload()
}

// AddVersion registers a version, or re-registers an existing one. A new
// version gets an override root with a directory per enabled loader.
// Re-registering rebinds the version: zero fields (Loaders, JavaVersion,
// Root) keep their current values and the descriptor is rewritten in place.
func (p *Project) AddVersion(d VersionDescriptor) error {
	planner, _ := p.state()
	versions := planner.Versions()

	i := slices.IndexFunc(versions, func(v VersionDescriptor) bool { return v.Version == d.Version })
	if i >= 0 {
		current := versions[i]
		if d.Loaders == nil {
			d.Loaders = current.Loaders
		}
		if d.JavaVersion == 0 {
			d.JavaVersion = current.JavaVersion
		}
		if d.Root == "" {
			d.Root = current.Root
		}
	}
	if d.JavaVersion == 0 {
		d.JavaVersion = DefaultJavaVersion(d.Version)
	}
	root := versionRoot(p.opts.Layout, d)
	if !versionDiscoverable(root) {
		return fmt.Errorf("add version %s: %w: %s", d.Version, ErrUndiscoverable, root)
	}
	d.Root = root

	if i >= 0 {
		versions[i] = d
	} else {
		versions = append(versions, d)
	}
	if _, err := newPlanner(planner.Graph(), versions, p.fsys, p.opts); err != nil {
		return fmt.Errorf("add version %s: %w", d.Version, err)
	}

	if err := WriteVersionDescriptor(p.fsys, root, d); err != nil {
		return fmt.Errorf("add version %s: %w", d.Version, err)
	}
	for _, l := range d.Loaders {
		dir := loaderRoot(p.opts.Layout, d, l)
		for _, r := range []string{"assets", "data"} {
			if err := p.fsys.MkdirAll(path.Join(dir, r), 0o755); err != nil {
				return fmt.Errorf("add version %s: %w", d.Version, err)
			}
		}
	}
	p.log.Debug("added version", "version", d.Version, "pack", d.BasePack, "loaders", d.Loaders, "rebind", i >= 0)
	return p.Reload()
}

// AddResource writes data under key into the layer named by id. The layer
// root is created when absent. The cache notices the change through the
// layer digest, so no reload is needed.
func (p *Project) AddResource(id LayerID, key ResourceKey, data []byte) error {
	root, err := p.layerRoot(id)
	if err != nil {
		return fmt.Errorf("add resource %s: %w", key, err)
	}
	if err := p.store(root).Write(key, data); err != nil {
		return fmt.Errorf("add resource %s: %w", key, err)
	}
	p.log.Debug("added resource", "layer", id, "key", key, "bytes", len(data))
	return nil
}

func (p *Project) layerRoot(id LayerID) (string, error) {
	planner, _ := p.state()
	_, name, _ := strings.Cut(string(id), ":")

	switch id.Kind() {
	case PackLayer:
		d, ok := planner.Graph().Pack(name)
		if !ok {
			return "", &UnknownPackError{Pack: name}
		}
		if d.Root != "" {
			return d.Root, nil
		}
		return p.opts.Layout.PackRoot(name), nil
	case VersionLayer:
		v, ok := planner.Binding(name)
		if !ok {
			return "", &UnknownVersionError{Version: name}
		}
		return versionRoot(p.opts.Layout, v), nil
	case LoaderLayer:
		i := strings.LastIndex(name, "/")
		if i <= 0 || i == len(name)-1 {
			return "", fmt.Errorf("invalid layer id %q", id)
		}
		version, loader := name[:i], name[i+1:]
		v, ok := planner.Binding(version)
		if !ok {
			return "", &UnknownVersionError{Version: version}
		}
		if !v.LoaderEnabled(loader) {
			return "", &LoaderNotEnabledError{Version: version, Loader: loader, Enabled: v.Loaders}
		}
		return loaderRoot(p.opts.Layout, v, loader), nil
	default:
		return "", fmt.Errorf("invalid layer id %q", id)
	}
}
