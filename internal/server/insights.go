package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KaramelBytes/excelytics/internal/insights"
	"github.com/KaramelBytes/excelytics/internal/sheet"
)

// insightsRequest carries either an explicit data summary or a stored file
// and sheet to summarize server side.
type insightsRequest struct {
	DataSummary  *insights.DataSummary  `json:"dataSummary"`
	ChartContext *insights.ChartContext `json:"chartContext"`
	FileID       string                 `json:"fileId"`
	Sheet        string                 `json:"sheet"`
}

type insightsResponse struct {
	Success  bool               `json:"success"`
	Insights *insights.Insights `json:"insights"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		writeError(w, r, errUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req insightsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.summaryFor(r, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.insights.Generate(r.Context(), summary, req.ChartContext)
	if err != nil {
		var iie *insights.InvalidInputError
		if !errors.As(err, &iie) {
			err = &upstreamError{err: err}
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insightsResponse{Success: true, Insights: out})
}

func (s *Server) summaryFor(r *http.Request, req insightsRequest) (insights.DataSummary, error) {
	if req.DataSummary != nil {
		return *req.DataSummary, nil
	}
	if req.FileID == "" {
		return insights.DataSummary{}, &insights.InvalidInputError{Field: "dataSummary", Reason: "is required"}
	}
	_, wb, err := s.loadWorkbook(r, req.FileID)
	if err != nil {
		return insights.DataSummary{}, err
	}
	sh, ok := wb.Sheet(req.Sheet)
	if !ok {
		return insights.DataSummary{}, &badRequest{msg: fmt.Sprintf("sheet %q: %v (available: %s)", req.Sheet, sheet.ErrSheetNotFound, strings.Join(wb.SheetNames(), ", "))}
	}
	return insights.SummaryFromSheet(sh, true), nil
}
