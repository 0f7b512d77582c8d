package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/excelytics/internal/analysis"
	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/KaramelBytes/excelytics/internal/utils"
)

// Temperature is the sampling temperature for insight requests.
const Temperature = 0.2

const systemPersona = "You are a data analyst. You read spreadsheet summaries and " +
	"report concise, factual insights. Always answer with a single JSON object and nothing else."

const responseShape = `{
  "summary": "one paragraph overview",
  "keyStats": ["notable statistic", "..."],
  "trends": ["observed trend", "..."],
  "anomalies": ["unusual value or pattern", "..."],
  "recommendations": ["suggested next step", "..."]
}`

// DataSummary describes one sheet. A nil Columns means the caller sent no
// columns at all and is rejected; an empty slice is accepted.
type DataSummary struct {
	SheetName      string                   `json:"sheetName"`
	Columns        []string                 `json:"columns"`
	RowCount       int                      `json:"rowCount"`
	PreviewRows    [][]sheet.CellValue      `json:"previewRows,omitempty"`
	ColumnProfiles []analysis.ColumnProfile `json:"columnProfiles,omitempty"`
}

// ChartContext is the optional chart the user is looking at.
type ChartContext struct {
	Type  string `json:"type"`
	XAxis string `json:"xAxis"`
	YAxis string `json:"yAxis"`
}

// SummaryFromSheet builds a DataSummary from a parsed sheet. Profiles are
// attached when withProfiles is set.
func SummaryFromSheet(s *sheet.Sheet, withProfiles bool) DataSummary {
	sum := s.Summary()
	ds := DataSummary{
		SheetName:   sum.Name,
		Columns:     sum.Columns,
		RowCount:    sum.RowCount,
		PreviewRows: sum.PreviewRows,
	}
	if withProfiles {
		ds.ColumnProfiles = analysis.Profile(s, analysis.DefaultOptions())
	}
	return ds
}

// Request is a provider-neutral generation request.
type Request struct {
	System       string  `json:"system"`
	Prompt       string  `json:"prompt"`
	Temperature  float64 `json:"temperature"`
	JSONOutput   bool    `json:"jsonOutput"`
	PromptTokens int     `json:"promptTokens"`
}

// BuildRequest embeds summary and the optional chart context verbatim in a
// prompt that asks for the fixed insights shape.
func BuildRequest(summary DataSummary, chart *ChartContext) (*Request, error) {
	if summary.Columns == nil {
		return nil, &InvalidInputError{Field: "dataSummary.columns", Reason: "is required"}
	}
	sumJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode data summary: %w", err)
	}
	var b strings.Builder
	b.WriteString("Analyze the following spreadsheet data and provide insights.\n\n")
	b.WriteString("Data summary:\n")
	b.Write(sumJSON)
	b.WriteString("\n\n")
	if chart != nil {
		chartJSON, err := json.MarshalIndent(chart, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode chart context: %w", err)
		}
		b.WriteString("Chart context:\n")
		b.Write(chartJSON)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a JSON object of exactly this shape:\n")
	b.WriteString(responseShape)
	b.WriteString("\n")

	prompt := b.String()
	return &Request{
		System:       systemPersona,
		Prompt:       prompt,
		Temperature:  Temperature,
		JSONOutput:   true,
		PromptTokens: utils.CountTokens(systemPersona) + utils.CountTokens(prompt),
	}, nil
}
