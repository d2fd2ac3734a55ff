package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the pack inheritance graph",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().String("format", "dot", "output format (dot, mermaid)")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	p, err := openProject()
	if err != nil {
		return err
	}

	switch format {
	case "dot":
		fmt.Print(p.Graph().DOT())
	case "mermaid":
		fmt.Print(p.Graph().Mermaid())
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
	return nil
}
