package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/aweris/packstack"
	"github.com/aweris/packstack/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-resolve every pair when project files change",
	Long:  "Watch the project directory. Descriptor changes reload the project; any change re-resolves every enabled (version, loader) pair through the cache, so only pairs whose layers changed are merged again. With --out every pair is exported as a directory after each change that caused a merge.",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before re-resolving")
	watchCmd.Flags().StringP("out", "o", "", "export resolved pairs into this directory")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	out, _ := cmd.Flags().GetString("out")
	log := newLogger()

	p, err := openProject()
	if err != nil {
		return err
	}

	resolve := func(ctx context.Context) error {
		before := p.Cache().Stats().Merges
		start := time.Now()
		sets, err := p.ResolveAll(ctx, p.Pairs())
		if err != nil {
			return err
		}
		merged := p.Cache().Stats().Merges - before
		log.Info("resolved", "pairs", len(sets), "merged", merged, "took", time.Since(start).Round(time.Millisecond))
		if out == "" || merged == 0 {
			return nil
		}
		return exportSets(ctx, sets, out)
	}
	if err := resolve(cmd.Context()); err != nil {
		return err
	}

	root := p.FS().Root()
	var ignore []string
	if out != "" {
		if rel, ok := insideDir(root, out); ok {
			ignore = append(ignore, path.Join(rel, "**"))
		}
	}

	w, err := watch.New(watch.Config{
		Root:     root,
		Ignore:   ignore,
		Debounce: debounce,
		Logger:   log,
		OnChange: func(ctx context.Context, changed []string) error {
			if descriptorChanged(changed) {
				// Keep serving the previous state until the descriptors are fixed.
				if err := p.Reload(); err != nil {
					return err
				}
			}
			return resolve(ctx)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Watching %s...\n", root)
	return w.Run(cmd.Context())
}

func descriptorChanged(paths []string) bool {
	for _, p := range paths {
		if path.Base(p) == packstack.DescriptorFile {
			return true
		}
	}
	return false
}

func exportSets(ctx context.Context, sets []*packstack.EffectiveSet, out string) error {
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	target := osfs.New(out)
	for _, set := range sets {
		name := set.Version + "-" + set.Loader
		if err := util.RemoveAll(target, name); err != nil {
			return err
		}
		if _, err := packstack.Export(ctx, set, target, name, packstack.ExportOptions{Format: packstack.ExportDir}); err != nil {
			return err
		}
	}
	return nil
}

// insideDir reports the slash path of target relative to root when target
// lies below root.
func insideDir(root, target string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
