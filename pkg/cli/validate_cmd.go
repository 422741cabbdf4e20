package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var in projectInputs

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a dbt project offline",
		Long:  "Translates the project the same way compile does and reports the first error without printing explores.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := in.translate(cmd.Context())
			if err != nil {
				return fmt.Errorf("project is invalid: %w", err)
			}

			var metrics int
			for _, t := range c.result.Tables {
				metrics += len(t.Metrics)
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"valid":    true,
					"adapter":  c.adapter,
					"tables":   len(c.result.Tables),
					"explores": len(c.result.Explores),
					"metrics":  metrics,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Project is valid: %d tables, %d explores, %d metrics (%s).\n",
				len(c.result.Tables), len(c.result.Explores), metrics, c.adapter)
			return nil
		},
	}
	in.addFlags(cmd)
	return cmd
}
