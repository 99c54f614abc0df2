package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/history"
	"github.com/ethpandaops/regressoor/pkg/normalizer"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestRequest is the body of POST /suites/{suite}/runs.
type ingestRequest struct {
	Meta         benchmark.RunMeta           `json:"meta"`
	Measurements []normalizer.RawMeasurement `json:"measurements"`
}

// handleIngest appends a run report to a suite's history and returns
// the regression report.
func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	suiteName := chi.URLParam(r, "suite")

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body: " + err.Error()})

		return
	}

	report, err := s.tracker.Ingest(
		r.Context(), suiteName, req.Meta, req.Measurements,
	)
	if err != nil {
		status := http.StatusInternalServerError

		var (
			dup  *benchmark.DuplicateCommitError
			verr *benchmark.ValidationError
		)

		switch {
		case errors.As(err, &dup):
			status = http.StatusConflict
		case errors.As(err, &verr),
			errors.Is(err, history.ErrTimestampOrder):
			status = http.StatusUnprocessableEntity
		}

		writeJSON(w, status, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// handleListSuites returns all known suite names.
func (s *server) handleListSuites(w http.ResponseWriter, r *http.Request) {
	suites, err := s.tracker.Suites(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"suites": suites})
}

// handleLatestRun returns the most recent run of a suite.
func (s *server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	suiteName := chi.URLParam(r, "suite")

	run, err := s.tracker.Latest(r.Context(), suiteName)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{err.Error()})

		return
	}

	if run == nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"suite has no runs"})

		return
	}

	writeJSON(w, http.StatusOK, run)
}

// seriesResponse is the body of GET /suites/{suite}/series/{name}.
type seriesResponse struct {
	Suite  string                  `json:"suite"`
	Name   string                  `json:"name"`
	Points []benchmark.SeriesPoint `json:"points"`
}

// handleSeries returns the history series of one canonical benchmark
// name. Unknown suites or names yield an empty series.
func (s *server) handleSeries(w http.ResponseWriter, r *http.Request) {
	suiteName := chi.URLParam(r, "suite")
	name := chi.URLParam(r, "name")

	points, err := s.tracker.Query(r.Context(), suiteName, name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, seriesResponse{
		Suite:  suiteName,
		Name:   name,
		Points: points,
	})
}

// handleExport returns the full history document.
func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.tracker.Export(r.Context(), s.cfg.Global.SourceRef)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, doc)
}
