package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tripreport/internal/compose"
	"tripreport/internal/core"
	"tripreport/internal/report"
)

// EntryStatus lists the assistant operations running for an entry.
type EntryStatus struct {
	ID     string         `json:"id"`
	Active []compose.Task `json:"active"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type imageRequest struct {
	Description string `json:"description"`
}

// handleListEntries handles GET /api/entries
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.Entries())
}

// handleGetEntry handles GET /api/entries/{id}
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.session.Entry(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

// handleCreateEntry handles POST /api/entries
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var entry core.TripEntry
	if err := decodeJSON(w, r, &entry); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid entry")
		return
	}
	s.respondJSON(w, http.StatusCreated, s.session.AddEntry(entry))
}

// handleUpdateEntry handles PUT /api/entries/{id}
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var entry core.TripEntry
	if err := decodeJSON(w, r, &entry); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid entry")
		return
	}
	entry.ID = chi.URLParam(r, "id")

	updated, err := s.session.UpdateEntry(entry)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

// handleDeleteEntry handles DELETE /api/entries/{id}
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveEntry(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReorderEntries handles POST /api/entries/reorder
func (s *Server) handleReorderEntries(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid reorder request")
		return
	}
	if err := s.session.ReorderEntries(req.IDs); err != nil {
		s.respondError(w, http.StatusBadRequest, "The new order must list every entry exactly once")
		return
	}
	s.respondJSON(w, http.StatusOK, s.session.Entries())
}

// handleEntryStatus handles GET /api/entries/{id}/status
func (s *Server) handleEntryStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.session.Entry(id); err != nil {
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return
	}
	active := s.composer.Tracker().Active(id)
	if active == nil {
		active = []compose.Task{}
	}
	s.respondJSON(w, http.StatusOK, EntryStatus{ID: id, Active: active})
}

// entryTask produces the change to apply to an entry once the model answers.
type entryTask func(ctx context.Context, entry core.TripEntry, settings core.ContextSettings) (func(*core.TripEntry), error)

// runEntryTask runs one tracked assistant operation for the entry in the URL
// and stores its result. The entry is read before the call and the result is
// applied to whatever the entry looks like afterwards.
func (s *Server) runEntryTask(w http.ResponseWriter, r *http.Request, task compose.Task, failure string, fn entryTask) {
	id := chi.URLParam(r, "id")
	entry, err := s.session.Entry(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return
	}
	settings := s.session.Settings()

	var apply func(*core.TripEntry)
	err = s.composer.Tracker().Do(id, task, func() error {
		var err error
		apply, err = fn(r.Context(), entry, settings)
		return err
	})
	if err != nil {
		s.respondFailure(w, err, failure)
		return
	}

	updated, err := s.session.UpdateEntryFunc(id, apply)
	if err != nil {
		// Removed while the model was working.
		s.respondError(w, http.StatusNotFound, "Entry not found")
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) entryLanguage(w http.ResponseWriter, r *http.Request) (core.Language, bool) {
	var req languageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return "", false
	}
	return s.parseLanguage(w, req.Language)
}

// handleEntryCaption handles POST /api/entries/{id}/caption
func (s *Server) handleEntryCaption(w http.ResponseWriter, r *http.Request) {
	lang, ok := s.entryLanguage(w, r)
	if !ok {
		return
	}
	s.runEntryTask(w, r, compose.TaskCaption, "Failed to analyze images.",
		func(ctx context.Context, entry core.TripEntry, settings core.ContextSettings) (func(*core.TripEntry), error) {
			caption, err := s.composer.Caption(ctx, entry.Images, lang, settings)
			if err != nil {
				return nil, err
			}
			return func(e *core.TripEntry) { e.AICaption = caption }, nil
		})
}

// handleEntryCopy handles POST /api/entries/{id}/copy
func (s *Server) handleEntryCopy(w http.ResponseWriter, r *http.Request) {
	lang, ok := s.entryLanguage(w, r)
	if !ok {
		return
	}
	s.runEntryTask(w, r, compose.TaskCopy, "Failed to generate copy.",
		func(ctx context.Context, entry core.TripEntry, settings core.ContextSettings) (func(*core.TripEntry), error) {
			text, err := s.composer.PRCopy(ctx, entry.Note, entry.AICaption, entry.AITitle, lang, settings)
			if err != nil {
				return nil, err
			}
			return func(e *core.TripEntry) { e.AICopy = text }, nil
		})
}

// handleEntryTitle handles POST /api/entries/{id}/title
func (s *Server) handleEntryTitle(w http.ResponseWriter, r *http.Request) {
	lang, ok := s.entryLanguage(w, r)
	if !ok {
		return
	}
	s.runEntryTask(w, r, compose.TaskTitle, "Failed to generate title.",
		func(ctx context.Context, entry core.TripEntry, settings core.ContextSettings) (func(*core.TripEntry), error) {
			title, err := s.composer.EntryTitle(ctx, entry, lang, settings)
			if err != nil {
				return nil, err
			}
			return func(e *core.TripEntry) { e.AITitle = title }, nil
		})
}

// handleEntryImage handles POST /api/entries/{id}/image. The description
// defaults to the entry's PR copy, then its note, then its caption.
func (s *Server) handleEntryImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.runEntryTask(w, r, compose.TaskImage, "Failed to generate image.",
		func(ctx context.Context, entry core.TripEntry, settings core.ContextSettings) (func(*core.TripEntry), error) {
			description := strings.TrimSpace(req.Description)
			for _, fallback := range []string{entry.AICopy, entry.Note, entry.AICaption} {
				if description != "" {
					break
				}
				description = strings.TrimSpace(fallback)
			}
			if description == "" {
				return nil, report.ErrNoInput
			}
			img, err := s.composer.GenerateImage(ctx, description, settings)
			if err != nil {
				return nil, err
			}
			return func(e *core.TripEntry) { e.Images = append(e.Images, img) }, nil
		})
}

// handleCaptionAll handles POST /api/entries/caption-all
func (s *Server) handleCaptionAll(w http.ResponseWriter, r *http.Request) {
	lang, ok := s.entryLanguage(w, r)
	if !ok {
		return
	}

	captions, err := s.composer.CaptionAll(r.Context(), s.session.Entries(), lang, s.session.Settings())
	for id, caption := range captions {
		// Entries removed in the meantime are skipped.
		_, _ = s.session.UpdateEntryFunc(id, func(e *core.TripEntry) { e.AICaption = caption })
	}

	resp := map[string]any{
		"captioned": len(captions),
		"entries":   s.session.Entries(),
	}
	if err != nil {
		s.log.Error("Some captions failed", "error", err)
		resp["failed"] = true
	}
	s.respondJSON(w, http.StatusOK, resp)
}
