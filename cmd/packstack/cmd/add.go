package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/packstack"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Scaffold a pack or version",
}

var addPackCmd = &cobra.Command{
	Use:   "pack <id>",
	Short: "Add an asset pack",
	Long:  "Create versions/shared/<id> with a descriptor and empty assets and data roots. The extended pack graph is validated before anything is written.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddPack,
}

var addVersionCmd = &cobra.Command{
	Use:   "version <version>",
	Short: "Add a game version or rebind an existing one",
	Long:  "Create the version directory with a descriptor bound to --pack, plus an override root for every loader. For a registered version the descriptor is rewritten with the new base pack.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddVersion,
}

var addResourceCmd = &cobra.Command{
	Use:   "resource <layer> <key> [file]",
	Short: "Write a resource into one layer",
	Long:  "Write file (or stdin) under key into the layer named pack:<id>, version:<v> or loader:<v>/<l>. The layer root is created when absent.",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runAddResource,
}

func init() {
	addPackCmd.Flags().String("inherits", "", "parent pack")
	addPackCmd.Flags().StringSlice("versions", nil, "game versions the pack targets")
	addPackCmd.Flags().String("description", "", "pack description")

	addVersionCmd.Flags().String("pack", "", "asset pack the version binds to")
	addVersionCmd.Flags().StringSlice("loaders", []string{"fabric", "neoforge"}, "enabled loaders")
	addVersionCmd.Flags().Int("java", 0, "java version (default: derived from the version)")
	addVersionCmd.MarkFlagRequired("pack")

	addCmd.AddCommand(addPackCmd, addVersionCmd, addResourceCmd)
	rootCmd.AddCommand(addCmd)
}

func runAddPack(cmd *cobra.Command, args []string) error {
	d := packstack.PackDescriptor{ID: args[0]}
	d.Parent, _ = cmd.Flags().GetString("inherits")
	d.Versions, _ = cmd.Flags().GetStringSlice("versions")
	d.Description, _ = cmd.Flags().GetString("description")

	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.AddPack(d); err != nil {
		return fmt.Errorf("add pack: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Added pack %s\n", d.ID)
	return nil
}

func runAddVersion(cmd *cobra.Command, args []string) error {
	d := packstack.VersionDescriptor{Version: args[0]}
	d.BasePack, _ = cmd.Flags().GetString("pack")
	d.JavaVersion, _ = cmd.Flags().GetInt("java")

	p, err := openProject()
	if err != nil {
		return err
	}
	// A rebind keeps the current loaders unless --loaders is given.
	if _, exists := p.Planner().Binding(d.Version); !exists || cmd.Flags().Changed("loaders") {
		d.Loaders, _ = cmd.Flags().GetStringSlice("loaders")
	}
	if err := p.AddVersion(d); err != nil {
		return fmt.Errorf("add version: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Bound version %s to pack %s\n", d.Version, d.BasePack)
	return nil
}

func runAddResource(cmd *cobra.Command, args []string) error {
	layer, key := packstack.LayerID(args[0]), packstack.ResourceKey(args[1])

	var (
		data []byte
		err  error
	)
	if len(args) > 2 {
		data, err = os.ReadFile(args[2])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.AddResource(layer, key, data); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Wrote %s to %s\n", key, layer)
	return nil
}
