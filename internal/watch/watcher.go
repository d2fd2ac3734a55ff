// Package watch re-runs a callback when files under a directory change.
//
// Events are debounced: a burst of writes (an editor saving through a temp
// file, a git checkout) produces one callback carrying every changed path.
// The callback runs on the event loop, so callbacks never overlap.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/aweris/packstack/internal/logger"
)

const DefaultDebounce = 300 * time.Millisecond

// defaultIgnore is always applied on top of Config.Ignore.
var defaultIgnore = []string{
	"**/.git/**",
	"**/.gradle/**",
	"**/build/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

// Config holds watcher settings.
type Config struct {
	// Root is the directory to watch recursively.
	Root string
	// Ignore lists extra doublestar patterns, relative to Root, that never
	// trigger the callback. Matching directories are not watched at all.
	Ignore []string
	// Debounce is the quiet period before the callback fires.
	Debounce time.Duration
	// OnChange receives the sorted, slash-separated paths that changed.
	OnChange func(ctx context.Context, changed []string) error
	Logger   *log.Logger
}

// Watcher watches Config.Root.
type Watcher struct {
	cfg      Config
	root     string
	ignore   []string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	log      *log.Logger
}

// New validates cfg and registers every non-ignored directory under Root.
func New(cfg Config) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	ignore := slices.Concat(defaultIgnore, cfg.Ignore)
	for _, pat := range ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", pat)
		}
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		root:     root,
		ignore:   ignore,
		debounce: debounce,
		fsw:      fsw,
		log:      logger.ForComponent(cfg.Logger, "watch"),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error if the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			rel, ok := w.relative(evt.Name)
			if !ok || w.ignored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						w.log.Warn("watch new directory", "path", rel, "err", err)
					}
				}
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.log.Debug("change", "paths", len(changed))
			if w.cfg.OnChange != nil {
				if err := w.cfg.OnChange(ctx, changed); err != nil {
					w.log.Error("callback failed", "err", err)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("events dropped", "err", err)
				continue
			}
			return fmt.Errorf("watch: %w", err)
		}
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("skip unreadable path", "path", p, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(p); ok && rel != "." && w.ignored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) ignored(rel string) bool {
	for _, pat := range w.ignore {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
