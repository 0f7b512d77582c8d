package insights

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/excelytics/internal/ai"
)

// Service runs insight requests against an ai.Runtime. It does not retry;
// the runtime's own retry policy applies.
type Service struct {
	Runtime   ai.Runtime
	Model     string
	MaxTokens int
}

// NewService returns a Service for rt.
func NewService(rt ai.Runtime, model string, maxTokens int) *Service {
	return &Service{Runtime: rt, Model: model, MaxTokens: maxTokens}
}

// GenerateRequest converts req into the runtime's wire request.
func (s *Service) GenerateRequest(req *Request) ai.GenerateRequest {
	gr := ai.GenerateRequest{
		Model: s.Model,
		Messages: []ai.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONOutput {
		gr.ResponseFormat = ai.JSONObject
	}
	return gr
}

// Generate builds the request, calls the runtime and parses its answer.
func (s *Service) Generate(ctx context.Context, summary DataSummary, chart *ChartContext) (*Insights, error) {
	req, err := BuildRequest(summary, chart)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "insights request", "sheet", summary.SheetName, "prompt_tokens", req.PromptTokens, "model", s.Model)
	resp, err := s.Runtime.Generate(ctx, s.GenerateRequest(req))
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	out, err := ParseResponse(resp.Content())
	if err != nil {
		slog.WarnContext(ctx, "insights response rejected", "error", err, "request_id", resp.RequestID)
		return nil, err
	}
	return out, nil
}
