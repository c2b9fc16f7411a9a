package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tripreport/internal/core"
	"tripreport/internal/report"
	"tripreport/internal/session"
	"tripreport/internal/store"
)

// maxBodyBytes bounds request bodies. Entries carry photos as data URLs.
const maxBodyBytes = 64 << 20

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ReportSummary is one gallery card.
type ReportSummary struct {
	ID          string             `json:"id"`
	Title       core.BilingualText `json:"title"`
	Subtitle    core.BilingualText `json:"subtitle"`
	CoverImage  string             `json:"coverImage,omitempty"`
	PublishDate int64              `json:"publishDate"`
	AuthorName  string             `json:"authorName,omitempty"`
}

// ReportListResponse is returned by GET /api/reports
type ReportListResponse struct {
	Reports []ReportSummary `json:"reports"`
	Total   int             `json:"total"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// handleListReports handles GET /api/reports
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.LoadAll(r.Context())
	if err != nil {
		s.log.Error("Failed to list reports", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve reports")
		return
	}

	summaries := make([]ReportSummary, len(reports))
	for i, p := range reports {
		summaries[i] = ReportSummary{
			ID:          p.ID,
			Title:       p.Title,
			Subtitle:    p.Subtitle,
			CoverImage:  p.CoverImage,
			PublishDate: p.PublishDate,
			AuthorName:  p.AuthorName,
		}
	}

	s.respondJSON(w, http.StatusOK, ReportListResponse{
		Reports: summaries,
		Total:   len(summaries),
	})
}

// handleGetReport handles GET /api/reports/{id}
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

// handleDeleteReport handles DELETE /api/reports/{id}
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Report not found")
			return
		}
		s.log.Error("Failed to delete report", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete report")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*core.PublishedReport, bool) {
	id := chi.URLParam(r, "id")

	p, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Report not found")
			return nil, false
		}
		s.log.Error("Failed to load report", "error", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve report")
		return nil, false
	}
	return p, true
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": message,
		},
	})
}

// respondFailure maps an operation error to a status and one generic message.
// Details only go to the log.
func (s *Server) respondFailure(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, report.ErrNoInput):
		s.respondError(w, http.StatusBadRequest, "Add a note, a photo or an event context first.")
	case errors.Is(err, session.ErrEntryNotFound):
		s.respondError(w, http.StatusNotFound, "Entry not found")
	default:
		s.log.Error(message, "error", err)
		s.respondError(w, http.StatusBadGateway, message)
	}
}

// readBody reads a bounded request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// decodeJSON decodes a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := readBody(w, r)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// languageRequest is the body of every operation that writes in one language.
type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) parseLanguage(w http.ResponseWriter, raw string) (core.Language, bool) {
	lang, err := core.ParseLanguage(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return lang, true
}
