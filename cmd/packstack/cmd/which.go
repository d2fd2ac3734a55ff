package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/packstack"
)

var whichCmd = &cobra.Command{
	Use:   "which <version> <loader> <key>",
	Short: "Show which layer supplies a resource",
	Long:  "Print the layer whose copy of key wins for (version, loader). With --content the winning bytes are written to stdout.",
	Args:  cobra.ExactArgs(3),
	RunE:  runWhich,
}

func init() {
	whichCmd.Flags().Bool("content", false, "print the winning content")
	rootCmd.AddCommand(whichCmd)
}

func runWhich(cmd *cobra.Command, args []string) error {
	version, loader, key := args[0], args[1], packstack.ResourceKey(args[2])

	p, err := openProject()
	if err != nil {
		return err
	}
	r, ok, err := p.Which(version, loader, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: not present for %s/%s", key, version, loader)
	}

	if content, _ := cmd.Flags().GetBool("content"); content {
		_, err := os.Stdout.Write(r.Content)
		return err
	}
	fmt.Printf("%s\t%s\n", key, r.Origin)
	return nil
}
