package packstack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aweris/packstack/internal/layerstore"
)

var (
	ErrUnknownParentPack = errors.New("packstack: unknown parent pack")
	ErrCyclicInheritance = errors.New("packstack: cyclic pack inheritance")
	ErrUnknownPack       = errors.New("packstack: unknown pack")
	ErrDuplicatePack     = errors.New("packstack: duplicate pack")
	ErrUnknownVersion    = errors.New("packstack: unknown version")
	ErrDuplicateVersion  = errors.New("packstack: duplicate version")
	ErrLoaderNotEnabled  = errors.New("packstack: loader not enabled")
	ErrNoProject         = errors.New("packstack: not a project directory")
	ErrUndiscoverable    = errors.New("packstack: descriptor root is not discovered on load")

	ErrLayerUnreadable = layerstore.ErrUnreadable
	ErrResourceMissing = layerstore.ErrResourceMissing
	ErrInvalidKey      = layerstore.ErrInvalidKey
)

// UnknownParentPackError means a pack declares a parent that does not exist.
type UnknownParentPackError struct {
	Pack   string
	Parent string
}

func (e *UnknownParentPackError) Error() string {
	return fmt.Sprintf("pack %q inherits unknown pack %q", e.Pack, e.Parent)
}

func (e *UnknownParentPackError) Unwrap() error { return ErrUnknownParentPack }

// CycleError means following parent links revisits a pack. Cycle lists the
// packs on the cycle in walk order.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "pack inheritance cycle detected"
	}
	path := append(append([]string(nil), e.Cycle...), e.Cycle[0])
	return "pack inheritance cycle detected: " + strings.Join(path, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCyclicInheritance }

// UnknownPackError means a pack id was requested that is not in the graph.
type UnknownPackError struct {
	Pack string
}

func (e *UnknownPackError) Error() string {
	return fmt.Sprintf("pack %q not found", e.Pack)
}

func (e *UnknownPackError) Unwrap() error { return ErrUnknownPack }

// DuplicatePackError means the same pack id was declared twice.
type DuplicatePackError struct {
	Pack string
}

func (e *DuplicatePackError) Error() string {
	return fmt.Sprintf("pack %q declared more than once", e.Pack)
}

func (e *DuplicatePackError) Unwrap() error { return ErrDuplicatePack }

// UnknownBasePackError means a version is bound to a pack that does not exist.
type UnknownBasePackError struct {
	Version string
	Pack    string
}

func (e *UnknownBasePackError) Error() string {
	return fmt.Sprintf("version %q uses unknown asset pack %q", e.Version, e.Pack)
}

func (e *UnknownBasePackError) Unwrap() error { return ErrUnknownPack }

// DuplicateVersionError means the same version id was registered twice.
type DuplicateVersionError struct {
	Version string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("version %q declared more than once", e.Version)
}

func (e *DuplicateVersionError) Unwrap() error { return ErrDuplicateVersion }

// UnknownVersionError means a request names a version with no binding.
type UnknownVersionError struct {
	Version string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("version %q is not registered", e.Version)
}

func (e *UnknownVersionError) Unwrap() error { return ErrUnknownVersion }

// LoaderNotEnabledError means a request names a loader the version does not enable.
type LoaderNotEnabledError struct {
	Version string
	Loader  string
	Enabled []string
}

func (e *LoaderNotEnabledError) Error() string {
	return fmt.Sprintf("loader %q is not enabled for version %q (enabled: %s)",
		e.Loader, e.Version, strings.Join(e.Enabled, ", "))
}

func (e *LoaderNotEnabledError) Unwrap() error { return ErrLoaderNotEnabled }
