package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [version] [loader] [prefix]",
	Short: "List versions or effective resources",
	Long:  "Without arguments, list every version with its pack and loaders. With a version and loader, list the effective resources and the layer each one comes from, optionally filtered by key prefix.",
	Args:  cobra.MaximumNArgs(3),
	RunE:  runList,
}

func init() {
	listCmd.Flags().Bool("origins", false, "summarise resources per layer instead of listing them")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}

	switch len(args) {
	case 0:
		for _, v := range p.Versions() {
			fmt.Printf("%s\t%s\t%s\n", v.Version, v.BasePack, strings.Join(v.Loaders, ","))
		}
		return nil
	case 1:
		return fmt.Errorf("list %s: loader required", args[0])
	}

	prefix := ""
	if len(args) > 2 {
		prefix = args[2]
	}
	set, err := p.Resolve(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if origins, _ := cmd.Flags().GetBool("origins"); origins {
		plan, err := p.Plan(args[0], args[1])
		if err != nil {
			return err
		}
		counts := set.Origins()
		for _, id := range plan.LayerIDs() {
			fmt.Printf("%s\t%d\n", id, counts[id])
		}
		return nil
	}

	count := 0
	for key, r := range set.List(prefix) {
		fmt.Printf("%s\t%s\n", key, r.Origin)
		count++
	}
	if count == 0 {
		fmt.Println("(no resources)")
	}
	return nil
}
