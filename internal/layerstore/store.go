// Package layerstore implements read access to a single resource layer.
//
// A layer is a directory inside a project filesystem. Resources live under a
// fixed set of resource roots and are addressed by their slash-separated path
// relative to the layer root:
//
//	versions/shared/v1/
//	  config.yml                             (descriptor, not a resource)
//	  assets/mymod/models/item/ruby.json  -> "assets/mymod/models/item/ruby.json"
//	  data/mymod/recipe/ruby.json         -> "data/mymod/recipe/ruby.json"
//
// A Store knows nothing about inheritance or precedence:
// - ListKeys/Read/Has for resource access
// - Digest for change detection (metadata by default, content on request)
// - an absent root is an empty layer, an unreadable one is an error
package layerstore

import (
	"errors"
	"fmt"
	"strings"
)

// Key is a namespaced resource path such as "assets/mymod/textures/item/ruby.png".
type Key string

// Kind returns the resource root of the key ("assets" or "data").
func (k Key) Kind() string {
	kind, _, _ := strings.Cut(string(k), "/")
	return kind
}

// Namespace returns the namespace segment that follows the resource root.
func (k Key) Namespace() string {
	parts := strings.SplitN(string(k), "/", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

func (k Key) String() string { return string(k) }

// Digest is a layer fingerprint (e.g., "sha256:abc123..."). The empty digest
// describes an empty or absent layer.
type Digest string

const digestPrefix = "sha256:"

// DefaultResourceRoots are the top-level directories of a layer that hold resources.
var DefaultResourceRoots = []string{"assets", "data"}

// DefaultIgnore lists editor and OS droppings that never count as resources.
var DefaultIgnore = []string{
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/*.tmp",
	"**/*~",
}

var (
	ErrResourceMissing = errors.New("layerstore: resource missing")
	ErrUnreadable      = errors.New("layerstore: layer unreadable")
	ErrInvalidKey      = errors.New("layerstore: invalid resource key")
)

// UnreadableError reports a layer that exists but cannot be traversed or read.
type UnreadableError struct {
	Root string
	Path string
	Err  error
}

func (e *UnreadableError) Error() string {
	if e.Path == "" || e.Path == e.Root {
		return fmt.Sprintf("layer %q unreadable: %v", e.Root, e.Err)
	}
	return fmt.Sprintf("layer %q unreadable at %q: %v", e.Root, e.Path, e.Err)
}

func (e *UnreadableError) Unwrap() []error { return []error{ErrUnreadable, e.Err} }
