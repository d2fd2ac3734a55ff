package packstack

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/aweris/packstack/internal/layerstore"
)

// ResourceKey is a namespaced resource path (e.g., "assets/mymod/models/item/ruby.json").
type ResourceKey = layerstore.Key

// Digest is a layer fingerprint (e.g., "sha256:abc123..."); empty for empty layers.
type Digest = layerstore.Digest

// LayerKind tells which tier of the resolution plan a layer belongs to.
type LayerKind int

const (
	// PackLayer is a shared resource pack from the inheritance chain.
	PackLayer LayerKind = iota
	// VersionLayer is the override layer of one target version.
	VersionLayer
	// LoaderLayer is the override layer of one (version, loader) pair.
	LoaderLayer
)

func (k LayerKind) String() string {
	switch k {
	case PackLayer:
		return "pack"
	case VersionLayer:
		return "version"
	case LoaderLayer:
		return "loader"
	default:
		return "unknown"
	}
}

// LayerID identifies a layer: "pack:v1", "version:1.21.1" or "loader:1.21.1/fabric".
type LayerID string

func packLayerID(pack string) LayerID { return LayerID("pack:" + pack) }
func versionLayerID(version string) LayerID { return LayerID("version:" + version) }
func loaderLayerID(version, loader string) LayerID { return LayerID("loader:" + version + "/" + loader) }

// Kind derives the layer kind from the id prefix.
func (id LayerID) Kind() LayerKind {
	prefix, _, _ := strings.Cut(string(id), ":")
	switch prefix {
	case "pack":
		return PackLayer
	case "version":
		return VersionLayer
	case "loader":
		return LoaderLayer
	default:
		return -1
	}
}

// LayerSource is one entry of a resolution plan.
type LayerSource struct {
	ID    LayerID
	Kind  LayerKind
	Store *LayerStore
}

// Plan is the ordered list of layers for one (version, loader) request,
// lowest precedence first.
type Plan struct {
	Version string
	Loader  string
	Sources []LayerSource
}

// LayerIDs returns the plan's layer ids in precedence order.
func (p Plan) LayerIDs() []LayerID {
	ids := make([]LayerID, len(p.Sources))
	for i, src := range p.Sources {
		ids[i] = src.ID
	}
	return ids
}

// Resource is the winning content of one key.
type Resource struct {
	Key     ResourceKey
	Content []byte
	Origin  LayerID
}

// EffectiveSet is the merged view of a plan. It is immutable once built and
// iterates in sorted key order.
type EffectiveSet struct {
	Version string
	Loader  string

	entries map[ResourceKey]Resource
}

func newEffectiveSet(version, loader string, entries map[ResourceKey]Resource) *EffectiveSet {
	return &EffectiveSet{Version: version, Loader: loader, entries: entries}
}

// Get returns the resource stored under key.
func (s *EffectiveSet) Get(key ResourceKey) (Resource, bool) {
	r, ok := s.entries[key]
	return r, ok
}

// Len returns the number of resources.
func (s *EffectiveSet) Len() int { return len(s.entries) }

// Keys returns all keys in sorted order.
func (s *EffectiveSet) Keys() []ResourceKey {
	return slices.Sorted(maps.Keys(s.entries))
}

// All iterates resources in sorted key order.
func (s *EffectiveSet) All() iter.Seq2[ResourceKey, Resource] {
	return func(yield func(ResourceKey, Resource) bool) {
		for _, key := range s.Keys() {
			if !yield(key, s.entries[key]) {
				return
			}
		}
	}
}

// List iterates resources whose key starts with prefix, in sorted order.
func (s *EffectiveSet) List(prefix string) iter.Seq2[ResourceKey, Resource] {
	return func(yield func(ResourceKey, Resource) bool) {
		for key, r := range s.All() {
			if !strings.HasPrefix(string(key), prefix) {
				continue
			}
			if !yield(key, r) {
				return
			}
		}
	}
}

// Origins counts resources per originating layer.
func (s *EffectiveSet) Origins() map[LayerID]int {
	counts := make(map[LayerID]int)
	for _, r := range s.entries {
		counts[r.Origin]++
	}
	return counts
}
