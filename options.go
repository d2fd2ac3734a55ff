package packstack

import (
	"slices"

	"github.com/charmbracelet/log"

	"github.com/aweris/packstack/internal/layerstore"
	"github.com/aweris/packstack/internal/logger"
)

// Default tuning values.
const (
	DefaultConcurrency = 4
	DefaultCacheSize   = 64
)

// MergeHook is called once for every merge the engine actually performs.
type MergeHook func(plan Plan)

// Options configures a Project, Planner, Merger or Cache.
type Options struct {
	Concurrency   int
	CacheSize     int
	Ignore        []string
	ContentDigest bool
	Logger        *log.Logger
	MergeHook     MergeHook
	Layout        Layout
}

// Option is a functional option for configuring packstack components.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Concurrency: DefaultConcurrency,
		CacheSize:   DefaultCacheSize,
		Ignore:      slices.Clone(layerstore.DefaultIgnore),
		Logger:      logger.Discard(),
		Layout:      ProjectLayout{},
	}
}

func applyOptions(opts []Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithConcurrency sets the number of parallel layer reads per merge.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithCacheSize sets how many (version, loader) entries the cache keeps.
func WithCacheSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.CacheSize = n
		}
	}
}

// WithIgnore replaces the doublestar patterns of files that are never resources.
func WithIgnore(patterns ...string) Option {
	return func(o *Options) { o.Ignore = slices.Clone(patterns) }
}

// WithContentDigest makes layer digests hash file contents instead of
// size and modification time.
func WithContentDigest(enabled bool) Option {
	return func(o *Options) { o.ContentDigest = enabled }
}

// WithLogger sets the logger. Library code logs at debug level only.
func WithLogger(l *log.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMergeHook registers a callback invoked once per performed merge.
func WithMergeHook(h MergeHook) Option {
	return func(o *Options) { o.MergeHook = h }
}

// WithLayout overrides where pack and override layers live.
func WithLayout(l Layout) Option {
	return func(o *Options) {
		if l != nil {
			o.Layout = l
		}
	}
}
