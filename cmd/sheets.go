package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/KaramelBytes/excelytics/internal/utils"
	"github.com/spf13/cobra"
)

var sheetsJSON bool

var sheetsCmd = &cobra.Command{
	Use:   "sheets <file>",
	Short: "List the sheets of a spreadsheet with their columns",
	Example: `  excelytics sheets sales.xlsx
  excelytics sheets export.csv --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wb, err := sheet.Parse(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sums := wb.Summaries()
		if sheetsJSON {
			b, err := utils.PrettyJSON(sums)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d sheets)\n", wb.Name, wb.Format, len(sums))
		tw := newTabWriter(cmd)
		fmt.Fprintln(tw, "SHEET\tROWS\tCOLUMNS")
		for _, s := range sums {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Name, s.RowCount, strings.Join(s.Columns, ", "))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
	sheetsCmd.Flags().BoolVar(&sheetsJSON, "json", false, "print sheet summaries as JSON")
}
