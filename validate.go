package packstack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// Severity ranks validation issues.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Issue is one validation finding. Subject names the pack, version or
// resource the finding is about.
type Issue struct {
	Severity Severity
	Subject  string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Subject, i.Message)
}

// KnownLoaders are the loader ids the build tooling understands.
var KnownLoaders = []string{"fabric", "forge", "neoforge"}

// Validate reports problems that do not stop resolution: unknown loader ids,
// unused packs, versions missing from their pack's version list, override
// directories of disabled loaders, and resource files with invalid paths or
// malformed JSON. Graph errors never reach here; they fail Open.
func (p *Project) Validate(ctx context.Context) ([]Issue, error) {
	planner := p.Planner()
	graph := planner.Graph()
	var issues []Issue

	used := make(map[string]bool)
	for _, v := range planner.Versions() {
		chain, err := graph.AncestryChain(v.BasePack)
		if err != nil {
			return nil, err
		}
		for _, id := range chain {
			used[id] = true
		}

		subject := "version " + v.Version
		if len(v.Loaders) == 0 {
			issues = append(issues, Issue{SeverityWarning, subject, "no loaders enabled"})
		}
		for _, l := range v.Loaders {
			if !slices.Contains(KnownLoaders, l) {
				issues = append(issues, Issue{SeverityWarning, subject,
					fmt.Sprintf("unknown loader %q (known: %s)", l, strings.Join(KnownLoaders, ", "))})
			}
		}
		if pack, _ := graph.Pack(v.BasePack); len(pack.Versions) > 0 && !slices.Contains(pack.Versions, v.Version) {
			issues = append(issues, Issue{SeverityWarning, subject,
				fmt.Sprintf("pack %q does not list this version", v.BasePack)})
		}

		disabled, err := p.disabledLoaderDirs(v)
		if err != nil {
			return nil, err
		}
		for _, dir := range disabled {
			issues = append(issues, Issue{SeverityWarning, subject,
				fmt.Sprintf("override directory %s belongs to a loader that is not enabled", dir)})
		}
	}

	for _, pack := range graph.Packs() {
		if !used[pack.ID] {
			issues = append(issues, Issue{SeverityWarning, "pack " + pack.ID, "not used by any version"})
		}
	}

	layerIssues, err := p.validateLayers(ctx, planner)
	if err != nil {
		return nil, err
	}
	return append(issues, layerIssues...), nil
}

// disabledLoaderDirs lists subdirectories of a version root that hold
// resources but are not an enabled loader.
func (p *Project) disabledLoaderDirs(v VersionDescriptor) ([]string, error) {
	root := versionRoot(p.opts.Layout, v)
	entries, err := p.fsys.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &LayerUnreadableError{Root: root, Err: err}
	}
	var dirs []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == "assets" || name == "data" || v.LoaderEnabled(name) {
			continue
		}
		keys, err := p.store(loaderRoot(p.opts.Layout, v, name)).ListKeys()
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			dirs = append(dirs, path.Join(root, name))
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}

func (p *Project) validateLayers(ctx context.Context, planner *Planner) ([]Issue, error) {
	var layers []LayerSource
	seen := make(map[LayerID]bool)
	add := func(src LayerSource) {
		if !seen[src.ID] {
			seen[src.ID] = true
			layers = append(layers, src)
		}
	}
	for _, v := range planner.Versions() {
		plan, err := planner.Plan(v.Version, "", AllowDisabledLoader())
		if err != nil {
			return nil, err
		}
		for _, src := range plan.Sources {
			add(src)
		}
		for _, l := range v.Loaders {
			add(LayerSource{
				ID:    loaderLayerID(v.Version, l),
				Kind:  LoaderLayer,
				Store: p.store(loaderRoot(p.opts.Layout, v, l)),
			})
		}
	}

	results := make([][]Issue, len(layers))
	pl := pool.New().WithMaxGoroutines(p.opts.Concurrency).WithContext(ctx).WithCancelOnError()
	for i, src := range layers {
		pl.Go(func(ctx context.Context) error {
			found, err := validateLayer(src)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := pl.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}

func validateLayer(src LayerSource) ([]Issue, error) {
	keys, err := src.Store.ListKeys()
	if err != nil {
		return nil, err
	}
	var issues []Issue
	for _, key := range keys {
		subject := string(src.ID) + " " + string(key)
		if key.Namespace() == "" {
			issues = append(issues, Issue{SeverityError, subject, "resource is not inside a namespace"})
			continue
		}
		if !validResourcePath(string(key)) {
			issues = append(issues, Issue{SeverityError, subject,
				"resource paths may only contain [a-z0-9/._-]"})
		}
		if path.Ext(string(key)) == ".json" || path.Ext(string(key)) == ".mcmeta" {
			data, err := src.Store.Read(key)
			if err != nil {
				return nil, err
			}
			if !json.Valid(data) {
				issues = append(issues, Issue{SeverityError, subject, "malformed JSON"})
			}
		}
	}
	return issues, nil
}

func validResourcePath(key string) bool {
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '/', r == '.', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func (p *Project) store(root string) *LayerStore {
	return p.Planner().store(root)
}
