// Package session holds the working state of one report: entries, context
// settings, the editable draft and the last generated report.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripreport/internal/core"
	"tripreport/internal/logger"
	"tripreport/internal/metrics"
	"tripreport/internal/report"
)

var (
	// ErrEntryNotFound is returned for an unknown entry id.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNoReport is returned when publishing before anything was generated.
	ErrNoReport = errors.New("no generated report to publish")
	// ErrConfirmationRequired guards the destructive load of a published report.
	ErrConfirmationRequired = errors.New("loading a report replaces the current entries and draft; confirmation required")
)

// Generator produces reports; *report.Synthesizer implements it.
type Generator interface {
	Generate(ctx context.Context, req report.Request) (*core.GeneratedReport, error)
}

// Session is safe for concurrent use. Every mutation replaces whole values
// under the lock and getters return copies, so callers never share slices
// with the session.
type Session struct {
	mu       sync.RWMutex
	entries  []core.TripEntry
	settings core.ContextSettings
	draft    core.ReportDraft
	report   *core.GeneratedReport

	lastPublishID int64
}

// New creates a session seeded with settings.
func New(settings core.ContextSettings) *Session {
	return &Session{settings: settings.Clone()}
}

// Entries returns a copy of the entry list.
func (s *Session) Entries() []core.TripEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

// Entry returns a copy of one entry.
func (s *Session) Entry(id string) (core.TripEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.TripEntry{}, ErrEntryNotFound
	}
	return s.entries[i].Clone(), nil
}

// Settings returns a copy of the context settings.
func (s *Session) Settings() core.ContextSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// SetSettings replaces the context settings.
func (s *Session) SetSettings(settings core.ContextSettings) {
	s.mu.Lock()
	s.settings = settings.Clone()
	s.mu.Unlock()
}

// Draft returns a copy of the working draft.
func (s *Session) Draft() core.ReportDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Clone()
}

// SetDraft replaces the working draft.
func (s *Session) SetDraft(d core.ReportDraft) {
	s.mu.Lock()
	s.draft = d.Clone()
	s.mu.Unlock()
}

// SetReport replaces the current report, e.g. after manual edits.
func (s *Session) SetReport(r core.GeneratedReport) {
	r = r.Clone()
	s.mu.Lock()
	s.report = &r
	s.mu.Unlock()
}

// Report returns a copy of the last generated report, or nil.
func (s *Session) Report() *core.GeneratedReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		return nil
	}
	r := s.report.Clone()
	return &r
}

func (s *Session) indexOf(id string) int {
	return slices.IndexFunc(s.entries, func(e core.TripEntry) bool { return e.ID == id })
}

func cloneEntries(entries []core.TripEntry) []core.TripEntry {
	out := make([]core.TripEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

func normalizeEntry(e core.TripEntry) core.TripEntry {
	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if len(e.Images) == 1 {
		e.HeroImageIndices = []int{0}
	}
	return e
}

// AddEntry appends an entry, assigning an id and timestamp when missing.
func (s *Session) AddEntry(e core.TripEntry) core.TripEntry {
	e = normalizeEntry(e)
	s.mu.Lock()
	s.entries = append(cloneEntries(s.entries), e)
	s.mu.Unlock()
	return e.Clone()
}

// UpdateEntry replaces the entry with the same id.
func (s *Session) UpdateEntry(e core.TripEntry) (core.TripEntry, error) {
	return s.UpdateEntryFunc(e.ID, func(cur *core.TripEntry) {
		*cur = e.Clone()
	})
}

// UpdateEntryFunc applies fn to a copy of the entry and stores the result.
// Concurrent updates of the same entry are applied in lock order.
func (s *Session) UpdateEntryFunc(id string, fn func(*core.TripEntry)) (core.TripEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.TripEntry{}, ErrEntryNotFound
	}
	updated := s.entries[i].Clone()
	fn(&updated)
	updated.ID = id
	if len(updated.Images) == 1 {
		updated.HeroImageIndices = []int{0}
	}

	entries := cloneEntries(s.entries)
	entries[i] = updated
	s.entries = entries
	return updated.Clone(), nil
}

// RemoveEntry deletes an entry.
func (s *Session) RemoveEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrEntryNotFound
	}
	s.entries = slices.Delete(cloneEntries(s.entries), i, i+1)
	return nil
}

// ReorderEntries sets the entry order. ids must name every entry exactly once.
func (s *Session) ReorderEntries(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) != len(s.entries) {
		return fmt.Errorf("reorder needs %d ids, got %d", len(s.entries), len(ids))
	}
	byID := make(map[string]core.TripEntry, len(s.entries))
	for _, e := range s.entries {
		byID[e.ID] = e
	}
	out := make([]core.TripEntry, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		delete(byID, id)
		out = append(out, e.Clone())
	}
	s.entries = out
	return nil
}

// SetEntries replaces the entry list.
func (s *Session) SetEntries(entries []core.TripEntry) {
	out := make([]core.TripEntry, len(entries))
	for i, e := range entries {
		out[i] = normalizeEntry(e)
	}
	s.mu.Lock()
	s.entries = out
	s.mu.Unlock()
}

// Generate synthesizes a report from the current state. On success the
// report's draft fields replace the working draft as a whole; on failure the
// session is left untouched.
func (s *Session) Generate(ctx context.Context, gen Generator, lang core.Language, mode core.GenerationMode) (*core.GeneratedReport, error) {
	s.mu.RLock()
	draft := s.draft.Clone()
	req := report.Request{
		Entries:  cloneEntries(s.entries),
		Language: lang,
		Settings: s.settings.Clone(),
		Draft:    &draft,
		Mode:     mode,
	}
	s.mu.RUnlock()

	out, err := gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	r := out.Clone()
	s.report = &r
	s.draft = out.Draft()
	s.mu.Unlock()
	return out, nil
}

// Publish snapshots the current report for the gallery. The id is the publish
// time in unix millis, moved forward when this session already used it. The
// cover image is the first image of the first entry that has one; each
// highlight embeds the images of its related entry. The caller persists the
// result.
func (s *Session) Publish(now time.Time) (*core.PublishedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return nil, ErrNoReport
	}

	id := max(now.UnixMilli(), s.lastPublishID+1)
	s.lastPublishID = id

	pub := &core.PublishedReport{
		GeneratedReport: s.report.Clone(),
		ID:              strconv.FormatInt(id, 10),
		PublishDate:     now.UnixMilli(),
		AuthorName:      s.settings.AuthorName,
		AuthorRole:      s.settings.AuthorRole,
	}
	for _, e := range s.entries {
		if len(e.Images) > 0 {
			pub.CoverImage = e.Images[0]
			break
		}
	}

	for i, h := range pub.Highlights {
		if j := s.indexOf(h.RelatedEntryID); j >= 0 && len(s.entries[j].Images) > 0 {
			pub.Highlights[i].EmbeddedImages = append([]string(nil), s.entries[j].Images...)
		}
	}

	metrics.Publications.Inc()
	logger.Info("Report published", "id", pub.ID, "highlights", len(pub.Highlights))
	return pub, nil
}

// LoadPublished replaces the working state with a published report. The
// entries are rebuilt from the highlights and the result is lossy: notes and
// captions are always empty. Without confirmed nothing changes.
func (s *Session) LoadPublished(pub core.PublishedReport, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	r := pub.GeneratedReport.Clone()
	var entries []core.TripEntry
	if len(r.Highlights) > 0 {
		entries = make([]core.TripEntry, 0, len(r.Highlights))
		for i, h := range r.Highlights {
			id := h.RelatedEntryID
			if id == "" {
				id = strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.Itoa(i)
			}
			entries = append(entries, normalizeEntry(core.TripEntry{
				ID:        id,
				Images:    h.EmbeddedImages,
				AITitle:   h.Title.Either(),
				AICopy:    h.Description.Either(),
				Timestamp: pub.PublishDate,
			}))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = r.Draft()
	s.report = &r
	if entries != nil {
		s.entries = entries
	}
	logger.Info("Published report loaded into session", "id", pub.ID, "entries", len(entries))
	return nil
}
