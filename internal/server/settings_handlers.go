package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tripreport/internal/compose"
	"tripreport/internal/core"
	"tripreport/internal/prompts"
	"tripreport/internal/session"
)

type analyzeRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"`
}

// AnalyzeResponse carries the extraction and the settings it was merged into.
type AnalyzeResponse struct {
	Analysis compose.URLAnalysis  `json:"analysis"`
	Settings core.ContextSettings `json:"settings"`
}

type sectionRequest struct {
	Section  string `json:"section"`
	Language string `json:"language"`
}

type replaceRequest struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// commitSettings persists settings and then makes them current.
func (s *Server) commitSettings(ctx context.Context, settings core.ContextSettings) error {
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	s.session.SetSettings(settings)
	return nil
}

// handleGetSettings handles GET /api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.Settings())
}

// handleUpdateSettings handles PUT /api/settings. Members absent from the
// body keep their current value.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil || !json.Valid(body) {
		s.respondError(w, http.StatusBadRequest, "Invalid settings")
		return
	}
	merged, err := session.MergeSettings(s.session.Settings(), body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid settings")
		return
	}
	if err := s.commitSettings(r.Context(), merged); err != nil {
		s.log.Error("Failed to save settings", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	s.respondJSON(w, http.StatusOK, merged)
}

// handleExportSettings handles GET /api/settings/export
func (s *Server) handleExportSettings(w http.ResponseWriter, r *http.Request) {
	data, err := s.session.ExportAIContext()
	if err != nil {
		s.log.Error("Failed to export settings", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to export settings")
		return
	}
	writeAttachment(w, "ai-context.json", data)
}

// handleImportSettings handles POST /api/settings/import
func (s *Server) handleImportSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid settings file")
		return
	}
	settings, err := s.session.ImportSettings(body)
	if err != nil {
		if errors.Is(err, session.ErrUnknownBundle) {
			s.respondError(w, http.StatusBadRequest, "The file has no aiContext section")
			return
		}
		s.respondError(w, http.StatusBadRequest, "Invalid settings file")
		return
	}
	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		s.log.Error("Failed to save imported settings", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

// handleAnalyzeURL handles POST /api/settings/analyze
func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.URL) == "" {
		s.respondError(w, http.StatusBadRequest, "A URL is required")
		return
	}
	lang, ok := s.parseLanguage(w, req.Language)
	if !ok {
		return
	}

	analysis, err := s.composer.AnalyzeURL(r.Context(), req.URL, lang)
	if err != nil {
		s.respondFailure(w, err, "Failed to analyze URL.")
		return
	}

	merged := compose.MergeURLAnalysis(s.session.Settings(), strings.TrimSpace(req.URL), analysis)
	if err := s.commitSettings(r.Context(), merged); err != nil {
		s.log.Error("Failed to save settings", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	s.respondJSON(w, http.StatusOK, AnalyzeResponse{Analysis: analysis, Settings: merged})
}

// handleRefineContexts handles POST /api/settings/refine-contexts
func (s *Server) handleRefineContexts(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	lang, ok := s.parseLanguage(w, req.Language)
	if !ok {
		return
	}

	settings := s.session.Settings()
	refined, err := s.composer.RefineContexts(r.Context(), settings, lang)
	if err != nil {
		s.respondFailure(w, err, "Failed to refine contexts.")
		return
	}
	if len(refined) > 0 {
		settings.EventContexts = refined
		if err := s.commitSettings(r.Context(), settings); err != nil {
			s.log.Error("Failed to save settings", "error", err)
			s.respondError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, settings)
}

// handleRefineThemes handles POST /api/settings/refine-themes
func (s *Server) handleRefineThemes(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	lang, ok := s.parseLanguage(w, req.Language)
	if !ok {
		return
	}

	settings := s.session.Settings()
	themes, err := s.composer.RefineThemes(r.Context(), settings, lang)
	if err != nil {
		s.respondFailure(w, err, "Failed to refine themes.")
		return
	}
	if themes != "" {
		settings.KeyThemes = themes
		if err := s.commitSettings(r.Context(), settings); err != nil {
			s.log.Error("Failed to save settings", "error", err)
			s.respondError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, settings)
}

// handleGetDraft handles GET /api/draft
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.Draft())
}

// handleUpdateDraft handles PUT /api/draft
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var draft core.ReportDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid draft")
		return
	}
	s.session.SetDraft(draft)
	s.respondJSON(w, http.StatusOK, s.session.Draft())
}

// handleDraftSection handles POST /api/draft/section
func (s *Server) handleDraftSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	section, err := prompts.ParseSection(req.Section)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lang, ok := s.parseLanguage(w, req.Language)
	if !ok {
		return
	}

	text, err := s.composer.Section(r.Context(), section, s.session.Entries(), lang, s.session.Settings())
	if err != nil {
		s.respondFailure(w, err, "Failed to draft section.")
		return
	}

	draft := compose.ApplySection(s.session.Draft(), section, text, lang)
	s.session.SetDraft(draft)
	s.respondJSON(w, http.StatusOK, draft)
}

// handleImportThemes handles POST /api/draft/import-themes
func (s *Server) handleImportThemes(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.ImportThemesToDraft())
}

// handleReplace handles POST /api/replace. The pattern is a regular
// expression applied to settings, entries and draft; the new settings are
// persisted afterwards.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	res, err := s.session.Replace(req.Find, req.Replace)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveSettings(r.Context(), res.Settings); err != nil {
		s.log.Error("Failed to save settings after replace", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func writeAttachment(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
