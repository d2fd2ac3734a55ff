package packstack

import (
	"github.com/aweris/packstack/internal/layerstore"
)

// LayerStore reads one layer root.
// Re-exported from internal/layerstore for convenience.
type LayerStore = layerstore.Store

// LayerUnreadableError reports a layer root that exists but cannot be traversed.
// Re-exported from internal/layerstore for convenience.
type LayerUnreadableError = layerstore.UnreadableError
