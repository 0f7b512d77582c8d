package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/excelytics/internal/ai"
	cfgpkg "github.com/KaramelBytes/excelytics/internal/config"
	"github.com/KaramelBytes/excelytics/internal/insights"
	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/KaramelBytes/excelytics/internal/utils"
	"github.com/spf13/cobra"
)

var (
	insSheet     string
	insChartType string
	insX         string
	insY         string
	insDryRun    bool
	insNoProfile bool
	insJSON      bool
	insModel     string
	insProvider  string
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Ask the configured AI provider for insights about a sheet",
	Example: `  excelytics insights sales.xlsx --sheet Q1 --dry-run
  excelytics insights sales.xlsx --sheet Q1 --chart-type bar --x Region --y Revenue
  excelytics insights sales.csv --provider ollama --model llama3.1 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		wb, err := sheet.Parse(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		name := insSheet
		if name == "" && len(wb.Sheets) > 0 {
			name = wb.Sheets[0].Name
		}
		s, ok := wb.Sheet(name)
		if !ok {
			return fmt.Errorf("sheet %q: %w (available: %s)", name, sheet.ErrSheetNotFound, strings.Join(wb.SheetNames(), ", "))
		}
		summary := insights.SummaryFromSheet(s, !insNoProfile)
		var chartCtx *insights.ChartContext
		if insChartType != "" || insX != "" || insY != "" {
			chartCtx = &insights.ChartContext{Type: insChartType, XAxis: insX, YAxis: insY}
		}

		if insDryRun {
			req, err := insights.BuildRequest(summary, chartCtx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "--- system ---")
			fmt.Fprintln(out, req.System)
			fmt.Fprintln(out, "--- prompt ---")
			fmt.Fprintln(out, req.Prompt)
			fmt.Fprintf(out, "--- ~%d prompt tokens, temperature %.1f ---\n", req.PromptTokens, req.Temperature)
			return nil
		}

		provider, model := c.Provider, c.Model
		if insProvider != "" {
			provider = insProvider
		}
		if insModel != "" {
			model = insModel
		}
		rt, err := newRuntime(c, provider)
		if err != nil {
			return err
		}
		res, err := insights.NewService(rt, model, c.MaxTokens).Generate(cmd.Context(), summary, chartCtx)
		if err != nil {
			return err
		}
		if insJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		printInsights(cmd, res)
		return nil
	},
}

func newRuntime(c *cfgpkg.Global, provider string) (ai.Runtime, error) {
	return ai.NewRuntime(provider, ai.RuntimeConfig{
		HTTPTimeout: c.HTTPTimeout(),
		Retry: ai.RetryPolicy{
			MaxAttempts: c.RetryMaxAttempts,
			BaseDelay:   c.RetryBaseDelay(),
			MaxDelay:    c.RetryMaxDelay(),
		},
		APIKey: c.APIKey,
		Host:   c.OllamaHost,
	})
}

func printInsights(cmd *cobra.Command, in *insights.Insights) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, in.Summary)
	sections := []struct {
		title string
		items []string
	}{
		{"Key stats", in.KeyStats},
		{"Trends", in.Trends},
		{"Anomalies", in.Anomalies},
		{"Recommendations", in.Recommendations},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s:\n  - %s\n", s.title, strings.Join(s.items, "\n  - "))
	}
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	f := insightsCmd.Flags()
	f.StringVar(&insSheet, "sheet", "", "sheet name (default: first sheet)")
	f.StringVar(&insChartType, "chart-type", "", "chart type the insights should focus on")
	f.StringVar(&insX, "x", "", "chart x axis column")
	f.StringVar(&insY, "y", "", "chart y axis column")
	f.BoolVar(&insDryRun, "dry-run", false, "print the request without calling the provider")
	f.BoolVar(&insNoProfile, "no-profile", false, "omit per-column profiles from the summary")
	f.BoolVar(&insJSON, "json", false, "print insights as JSON")
	f.StringVar(&insModel, "model", "", "model override")
	f.StringVar(&insProvider, "provider", "", "provider override: "+strings.Join(ai.Providers(), "|"))
}
