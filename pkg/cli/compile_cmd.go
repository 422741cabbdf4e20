package cli

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/lightdash/internal/domain"
)

func newCompileCmd() *cobra.Command {
	var in projectInputs

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a dbt project into explores",
		Long: "Reads manifest.json (and optionally catalog.json or a DuckDB warehouse for column types), " +
			"translates every enabled model and prints the resulting explores.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := in.translate(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), c.result.Explores)
			}
			printTable(cmd.OutOrStdout(), []string{"explore", "base table", "joins", "dimensions", "metrics"}, exploreRows(c.result.Explores))
			return nil
		},
	}
	in.addFlags(cmd)
	return cmd
}

func exploreRows(explores []domain.Explore) [][]string {
	rows := make([][]string, 0, len(explores))
	for _, e := range explores {
		joins := make([]string, 0, len(e.Joins))
		for _, j := range e.Joins {
			joins = append(joins, j.Table)
		}
		var dims, metrics int
		for _, t := range e.Tables {
			dims += len(t.Dimensions)
			metrics += len(t.Metrics)
		}
		joined := strings.Join(joins, ",")
		if joined == "" {
			joined = "-"
		}
		rows = append(rows, []string{e.Name, e.BaseTable, joined, strconv.Itoa(dims), strconv.Itoa(metrics)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return rows
}
