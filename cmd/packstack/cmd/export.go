package cmd

import (
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/aweris/packstack"
	"github.com/aweris/packstack/internal/archive"
)

var exportCmd = &cobra.Command{
	Use:   "export [version] [loader]",
	Short: "Write effective resources to a directory or archive",
	Long:  "Materialise the effective resources of (version, loader) with a generated pack.mcmeta. With --all every enabled pair is exported.",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("out", "o", "build", "output directory")
	exportCmd.Flags().String("name", "resources", "name prefix of exported packs")
	exportCmd.Flags().StringP("format", "f", string(packstack.ExportDir), "output format (dir, zip, tar.zst)")
	exportCmd.Flags().StringSlice("kinds", nil, "resource roots to include (assets, data)")
	exportCmd.Flags().String("description", "", "pack.mcmeta description")
	exportCmd.Flags().Int("pack-format", 0, "pack.mcmeta pack_format (default: derived from the version)")
	exportCmd.Flags().Int("level", 2, "tar.zst compression level (1-3)")
	exportCmd.Flags().Bool("all", false, "export every enabled (version, loader) pair")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	prefix, _ := cmd.Flags().GetString("name")
	formatName, _ := cmd.Flags().GetString("format")
	all, _ := cmd.Flags().GetBool("all")

	format, err := archive.ParseFormat(formatName)
	if err != nil {
		return err
	}
	opts := packstack.ExportOptions{Format: format}
	opts.Kinds, _ = cmd.Flags().GetStringSlice("kinds")
	opts.Description, _ = cmd.Flags().GetString("description")
	opts.PackFormat, _ = cmd.Flags().GetInt("pack-format")
	opts.Level, _ = cmd.Flags().GetInt("level")

	p, err := openProject()
	if err != nil {
		return err
	}

	var pairs []packstack.Pair
	switch {
	case all:
		pairs = p.Pairs()
	case len(args) == 2:
		pairs = []packstack.Pair{{Version: args[0], Loader: args[1]}}
	default:
		return fmt.Errorf("export: need <version> <loader> or --all")
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	target := osfs.New(out)

	sets, err := p.ResolveAll(cmd.Context(), pairs)
	if err != nil {
		return err
	}
	for _, set := range sets {
		name := fmt.Sprintf("%s-%s-%s%s", prefix, set.Version, set.Loader, format.Ext())
		res, err := packstack.Export(cmd.Context(), set, target, name, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s: %d resources, pack_format %d\n", res.Path, res.Resources, res.PackFormat)
	}
	return nil
}
