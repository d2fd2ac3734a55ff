package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/packstack"
)

var planCmd = &cobra.Command{
	Use:   "plan <version> [loader]",
	Short: "Show the layer plan of a version",
	Long:  "Print the ordered layers merged for (version, loader), lowest precedence first. Without a loader only pack and version layers are shown.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().Bool("any-loader", false, "allow loaders that are not enabled for the version")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	version, loader := args[0], ""
	if len(args) > 1 {
		loader = args[1]
	}
	var opts []packstack.PlanOption
	if anyLoader, _ := cmd.Flags().GetBool("any-loader"); anyLoader {
		opts = append(opts, packstack.AllowDisabledLoader())
	}

	p, err := openProject()
	if err != nil {
		return err
	}
	plan, err := p.Plan(version, loader, opts...)
	if err != nil {
		return err
	}

	for i, src := range plan.Sources {
		fmt.Printf("%d\t%s\t%s\n", i, src.ID, src.Store.Root())
	}
	return nil
}
