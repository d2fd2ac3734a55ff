package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/packstack"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check descriptors and layer contents",
	Long:  "Report unknown loaders, unused packs, stray override directories and malformed resources. Exits non-zero when any error is found.",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	issues, err := p.Validate(cmd.Context())
	if err != nil {
		return err
	}

	errs := 0
	for _, issue := range issues {
		fmt.Println(issue)
		if issue.Severity == packstack.SeverityError {
			errs++
		}
	}
	if errs > 0 {
		return fmt.Errorf("%d of %d issues are errors", errs, len(issues))
	}
	if len(issues) == 0 {
		fmt.Println("ok")
	}
	return nil
}
