package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/KaramelBytes/excelytics/internal/chart"
	"github.com/KaramelBytes/excelytics/internal/insights"
	"github.com/KaramelBytes/excelytics/internal/sheet"
	"github.com/KaramelBytes/excelytics/internal/store"
	"github.com/KaramelBytes/excelytics/internal/upload"
)

// Error kinds reported in the "error" field of failure responses.
const (
	kindInvalidInput = "invalid_input"
	kindNotFound     = "not_found"
	kindParse        = "parse_error"
	kindTooLarge     = "payload_too_large"
	kindUpstream     = "ai_error"
	kindExtraction   = "ai_extraction"
	kindMalformed    = "ai_malformed"
	kindUnavailable  = "unavailable"
	kindMethod       = "method_not_allowed"
	kindInternal     = "internal_error"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// badRequest reports malformed requests caught by the handlers themselves.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// upstreamError marks failures of the insights generator.
type upstreamError struct{ err error }

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

var (
	errRoute       = errors.New("route not found")
	errMethod      = errors.New("method not allowed")
	errUnavailable = errors.New("insights are not configured")
)

// classify maps an error to its HTTP status and kind.
func classify(err error) (int, string) {
	var (
		br  *badRequest
		iie *insights.InvalidInputError
		te  *chart.TransformError
		pe  *sheet.ParseError
		mbe *http.MaxBytesError
		ue  *upstreamError
		ee  *insights.ExtractionError
		me  *insights.MalformedResponseError
	)
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, kindTooLarge
	case errors.As(err, &br), errors.As(err, &iie), errors.As(err, &te):
		return http.StatusBadRequest, kindInvalidInput
	case errors.Is(err, store.ErrNotFound), errors.Is(err, upload.ErrExpired), errors.Is(err, errRoute):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, errMethod):
		return http.StatusMethodNotAllowed, kindMethod
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity, kindParse
	case errors.As(err, &ee):
		return http.StatusBadGateway, kindExtraction
	case errors.As(err, &me):
		return http.StatusBadGateway, kindMalformed
	case errors.As(err, &ue):
		return http.StatusBadGateway, kindUpstream
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable, kindUnavailable
	}
	return http.StatusInternalServerError, kindInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Success: false, Error: kind, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return &badRequest{msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}
