package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/excelytics/internal/chart"
	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/KaramelBytes/excelytics/internal/utils"
	"github.com/spf13/cobra"
)

var (
	chartSheet   string
	chartType    string
	chartX       string
	chartY       string
	chartZ       string
	chartAgg     string
	chartTitle   string
	chartFilters []string
	chartJSON    bool
)

var chartCmd = &cobra.Command{
	Use:   "chart <file>",
	Short: "Compute chart data from two or three columns of a sheet",
	Example: `  excelytics chart sales.xlsx --sheet Q1 --x Region --y Revenue --agg average
  excelytics chart sales.csv --sheet Sheet1 --type scatter --x Cost --y Revenue --json
  excelytics chart sales.csv --sheet Sheet1 --x Region --y Revenue --filter Revenue:greater:100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := parseFilters(chartFilters)
		if err != nil {
			return err
		}
		wb, err := sheet.Parse(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sheetName := chartSheet
		if sheetName == "" && len(wb.Sheets) > 0 {
			sheetName = wb.Sheets[0].Name
		}
		res, err := chart.Generate(wb, chart.Specification{
			Sheet:       sheetName,
			ChartType:   chartType,
			XAxis:       chartX,
			YAxis:       chartY,
			ZAxis:       chartZ,
			Aggregation: chart.Aggregation(chartAgg),
			Filters:     filters,
			Title:       chartTitle,
		})
		if err != nil {
			return err
		}
		if chartJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		return printChart(cmd, res)
	},
}

// parseFilters reads column:operator:value triples. The value is typed the
// same way spreadsheet cells are.
func parseFilters(raw []string) ([]chart.Filter, error) {
	out := make([]chart.Filter, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 3)
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --filter %q (want column:operator:value)", r)
		}
		out = append(out, chart.Filter{
			Column:   parts[0],
			Operator: chart.Operator(parts[1]),
			Value:    sheet.InferCell(parts[2]),
		})
	}
	return out, nil
}

func printChart(cmd *cobra.Command, res *chart.Result) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", res.Title, res.Type)
	tw := newTabWriter(cmd)
	switch d := res.Data.(type) {
	case chart.Categorical:
		fmt.Fprintf(tw, "%s\t%s\n", strings.ToUpper(res.Config.XAxis), strings.ToUpper(res.Config.YAxis))
		for i, l := range d.Labels {
			fmt.Fprintf(tw, "%s\t%g\n", l, d.Values[i])
		}
	case chart.Scatter:
		fmt.Fprintln(tw, "X\tY")
		for _, p := range d {
			fmt.Fprintf(tw, "%g\t%g\n", p.X, p.Y)
		}
	case chart.Space:
		fmt.Fprintln(tw, "X\tY\tZ")
		for i := range d.X {
			fmt.Fprintf(tw, "%g\t%g\t%g\n", d.X[i], d.Y[i], d.Z[i])
		}
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(chartCmd)
	f := chartCmd.Flags()
	f.StringVar(&chartSheet, "sheet", "", "sheet name (default: first sheet)")
	f.StringVar(&chartType, "type", "bar", "chart type: bar|line|pie|scatter|3d")
	f.StringVar(&chartX, "x", "", "x axis column")
	f.StringVar(&chartY, "y", "", "y axis column")
	f.StringVar(&chartZ, "z", "", "z axis column (3d only)")
	f.StringVar(&chartAgg, "agg", "sum", "aggregation for bar/line/pie: sum|average|count")
	f.StringVar(&chartTitle, "title", "", "chart title")
	f.StringArrayVar(&chartFilters, "filter", nil, "row filter column:operator:value (repeatable; operators equals|contains|greater|less)")
	f.BoolVar(&chartJSON, "json", false, "print the chart result as JSON")
	_ = chartCmd.MarkFlagRequired("x")
	_ = chartCmd.MarkFlagRequired("y")
}
