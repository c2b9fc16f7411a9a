package server

import (
	"errors"
	"net/http"
	"time"

	"tripreport/internal/core"
	"tripreport/internal/session"
	"tripreport/internal/store"
)

type generateRequest struct {
	Language string `json:"language"`
	Mode     string `json:"mode"`
}

type loadRequest struct {
	Confirm bool `json:"confirm"`
}

// LoadResponse is the working state after a published report was loaded.
type LoadResponse struct {
	Entries []core.TripEntry `json:"entries"`
	Draft   core.ReportDraft `json:"draft"`
}

// handleGenerate handles POST /api/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	lang, ok := s.parseLanguage(w, req.Language)
	if !ok {
		return
	}
	mode, err := core.ParseGenerationMode(req.Mode)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.session.Generate(r.Context(), s.generator, lang, mode)
	if err != nil {
		s.respondFailure(w, err, "Failed to generate report.")
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleGetCurrentReport handles GET /api/report
func (s *Server) handleGetCurrentReport(w http.ResponseWriter, r *http.Request) {
	out := s.session.Report()
	if out == nil {
		s.respondError(w, http.StatusNotFound, "No report generated yet")
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleUpdateCurrentReport handles PUT /api/report with manual edits.
func (s *Server) handleUpdateCurrentReport(w http.ResponseWriter, r *http.Request) {
	var edited core.GeneratedReport
	if err := decodeJSON(w, r, &edited); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid report")
		return
	}
	s.session.SetReport(edited)
	s.respondJSON(w, http.StatusOK, s.session.Report())
}

// handlePublish handles POST /api/publish
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	pub, err := s.session.Publish(time.Now())
	if err != nil {
		if errors.Is(err, session.ErrNoReport) {
			s.respondError(w, http.StatusConflict, "Generate a report before publishing")
			return
		}
		s.log.Error("Failed to publish report", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to publish report.")
		return
	}

	if err := s.store.Create(r.Context(), *pub); err != nil {
		if errors.Is(err, store.ErrExists) {
			s.respondError(w, http.StatusConflict, "A report was just published, try again")
			return
		}
		s.log.Error("Failed to save published report", "error", err, "id", pub.ID)
		s.respondError(w, http.StatusInternalServerError, "Failed to publish report.")
		return
	}
	s.respondJSON(w, http.StatusCreated, pub)
}

// handleLoadReport handles POST /api/reports/{id}/load. Loading replaces the
// working entries and draft, so the body must carry {"confirm": true}.
func (s *Server) handleLoadReport(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	pub, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	if err := s.session.LoadPublished(*pub, req.Confirm); err != nil {
		if errors.Is(err, session.ErrConfirmationRequired) {
			s.respondError(w, http.StatusConflict, "Loading replaces the current entries and draft. Send confirm=true to continue.")
			return
		}
		s.log.Error("Failed to load report", "error", err, "id", pub.ID)
		s.respondError(w, http.StatusInternalServerError, "Failed to load report.")
		return
	}

	s.respondJSON(w, http.StatusOK, LoadResponse{
		Entries: s.session.Entries(),
		Draft:   s.session.Draft(),
	})
}

// handleExportReportData handles GET /api/report-data/export
func (s *Server) handleExportReportData(w http.ResponseWriter, r *http.Request) {
	data, err := s.session.ExportReportData()
	if err != nil {
		s.log.Error("Failed to export report data", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to export report data")
		return
	}
	writeAttachment(w, "report-data.json", data)
}

// handleImportReportData handles POST /api/report-data/import
func (s *Server) handleImportReportData(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid report data file")
		return
	}
	if err := s.session.ImportReportData(body); err != nil {
		if errors.Is(err, session.ErrUnknownBundle) {
			s.respondError(w, http.StatusBadRequest, "The file has no reportData section")
			return
		}
		s.respondError(w, http.StatusBadRequest, "Invalid report data file")
		return
	}
	if err := s.store.SaveSettings(r.Context(), s.session.Settings()); err != nil {
		s.log.Warn("Failed to persist imported settings", "error", err.Error())
	}

	s.respondJSON(w, http.StatusOK, LoadResponse{
		Entries: s.session.Entries(),
		Draft:   s.session.Draft(),
	})
}
