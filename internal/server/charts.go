package server

import (
	"log/slog"
	"net/http"

	"github.com/KaramelBytes/excelytics/internal/chart"
	"github.com/KaramelBytes/excelytics/internal/store"
	"github.com/gorilla/mux"
)

type chartRequest struct {
	chart.Specification
	Save bool `json:"save"`
}

type chartResponse struct {
	Success bool          `json:"success"`
	Chart   *chart.Result `json:"chart"`
	ChartID string        `json:"chartId,omitempty"`
}

// handleCreateChart transforms the stored spreadsheet and, when asked,
// saves the specification. Chart data itself is never stored.
func (s *Server) handleCreateChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID := mux.Vars(r)["id"]
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var req chartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	_, wb, err := s.loadWorkbook(r, fileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := chart.Generate(wb, req.Specification)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := chartResponse{Success: true, Chart: res}
	if req.Save {
		rec := store.NewChartRecord(res)
		if err := s.store.AppendChart(ctx, ownerFrom(ctx), fileID, &rec); err != nil {
			writeError(w, r, err)
			return
		}
		out.ChartID = rec.ID
		slog.InfoContext(ctx, "chart saved", "file_id", fileID, "chart_id", rec.ID, "type", rec.Type)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	if err := s.store.DeleteChart(ctx, ownerFrom(ctx), vars["id"], vars["chartId"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": vars["chartId"]})
}
