package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/sqlcompile"
)

func newSQLCmd() *cobra.Command {
	var (
		in         projectInputs
		explore    string
		dimensions []string
		metrics    []string
		sorts      []string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the SQL of a metric query",
		Long: "Compiles the project and renders the warehouse SQL for a query over one explore. " +
			"Fields are referenced by id (<table>_<field>); prefix a sort with '-' for descending order.",
		Example: "  lightdash sql --explore orders --metric orders_total_revenue --dimension orders_order_date_month --sort -orders_order_date_month",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := in.translate(cmd.Context())
			if err != nil {
				return err
			}
			e, err := c.explore(explore)
			if err != nil {
				return err
			}

			q := domain.MetricQuery{
				ExploreName: explore,
				Dimensions:  dimensions,
				Metrics:     metrics,
				Limit:       limit,
			}
			for _, s := range sorts {
				field, desc := strings.CutPrefix(s, "-")
				q.Sorts = append(q.Sorts, domain.SortField{FieldID: field, Descending: desc})
			}

			out, err := sqlcompile.NewCompiler(c.adapter).Compile(e, q)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{"sql": out.SQL, "adapter": c.adapter})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out.SQL)
			return nil
		},
	}
	in.addFlags(cmd)
	cmd.Flags().StringVar(&explore, "explore", "", "Explore to query")
	cmd.Flags().StringSliceVar(&dimensions, "dimension", nil, "Dimension field id (repeatable)")
	cmd.Flags().StringSliceVar(&metrics, "metric", nil, "Metric field id (repeatable)")
	cmd.Flags().StringSliceVar(&sorts, "sort", nil, "Sort field id, '-' prefix for descending (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 500, "Row limit")
	_ = cmd.MarkFlagRequired("explore")
	return cmd
}
