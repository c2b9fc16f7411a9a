package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"tripreport/internal/core"
)

// ErrUnknownBundle is returned for documents without a recognized top-level key.
var ErrUnknownBundle = errors.New("file has no aiContext, settings or reportData section")

// AIContext is the brand and author part of the settings exchanged as a file.
type AIContext struct {
	Persona       string `json:"persona"`
	Tone          string `json:"tone"`
	BrandLogo     string `json:"brandLogo"`
	BrandName     string `json:"brandName"`
	BrandLocation string `json:"brandLocation"`
	AuthorName    string `json:"authorName"`
	AuthorRole    string `json:"authorRole"`
	WebsiteURL    string `json:"websiteUrl"`
	TwitterURL    string `json:"twitterUrl"`
	TelegramURL   string `json:"telegramUrl"`
}

// ReportSettings is the event part of the settings carried in a report bundle.
type ReportSettings struct {
	EventContexts    []string `json:"eventContexts"`
	KeyThemes        string   `json:"keyThemes"`
	ReferenceURLs    []string `json:"referenceUrls"`
	ReferenceContent string   `json:"referenceContent"`
	ReferenceStyle   string   `json:"referenceStyle"`
}

// ReportData is the entries, event settings and draft of a report in progress.
type ReportData struct {
	Entries  []core.TripEntry `json:"entries"`
	Settings ReportSettings   `json:"settings"`
	Draft    core.ReportDraft `json:"draft"`
}

type aiContextFile struct {
	AIContext AIContext `json:"aiContext"`
}

type reportDataFile struct {
	ReportData ReportData `json:"reportData"`
}

// ExportAIContext encodes the brand and author settings as {"aiContext": ...}.
func (s *Session) ExportAIContext() ([]byte, error) {
	st := s.Settings()
	return json.MarshalIndent(aiContextFile{AIContext: AIContext{
		Persona:       st.Persona,
		Tone:          st.Tone,
		BrandLogo:     st.BrandLogo,
		BrandName:     st.BrandName,
		BrandLocation: st.BrandLocation,
		AuthorName:    st.AuthorName,
		AuthorRole:    st.AuthorRole,
		WebsiteURL:    st.WebsiteURL,
		TwitterURL:    st.TwitterURL,
		TelegramURL:   st.TelegramURL,
	}}, "", "  ")
}

// MergeSettings decodes a settings document over current. Only the members
// present in raw change; everything else keeps its current value.
func MergeSettings(current core.ContextSettings, raw json.RawMessage) (core.ContextSettings, error) {
	merged := current.Clone()
	if err := json.Unmarshal(raw, &merged); err != nil {
		return current, fmt.Errorf("failed to parse settings: %w", err)
	}
	return merged, nil
}

// ImportSettings merges an {"aiContext": ...} document, or the older
// {"settings": ...} form, over the current settings.
func (s *Session) ImportSettings(data []byte) (core.ContextSettings, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.ContextSettings{}, fmt.Errorf("failed to parse settings file: %w", err)
	}

	raw, ok := doc["aiContext"]
	if !ok || isNull(raw) {
		raw, ok = doc["settings"]
	}
	if !ok || isNull(raw) {
		return core.ContextSettings{}, ErrUnknownBundle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := MergeSettings(s.settings, raw)
	if err != nil {
		return core.ContextSettings{}, err
	}
	s.settings = merged
	return merged.Clone(), nil
}

// ExportReportData encodes entries, event settings and draft as {"reportData": ...}.
func (s *Session) ExportReportData() ([]byte, error) {
	s.mu.RLock()
	data := ReportData{
		Entries: cloneEntries(s.entries),
		Settings: ReportSettings{
			EventContexts:    append([]string(nil), s.settings.EventContexts...),
			KeyThemes:        s.settings.KeyThemes,
			ReferenceURLs:    append([]string(nil), s.settings.ReferenceURLs...),
			ReferenceContent: s.settings.ReferenceContent,
			ReferenceStyle:   s.settings.ReferenceStyle,
		},
		Draft: s.draft.Clone(),
	}
	s.mu.RUnlock()
	return json.MarshalIndent(reportDataFile{ReportData: data}, "", "  ")
}

// ImportReportData applies a {"reportData": ...} document. Entries and draft
// are replaced when present; settings members are merged.
func (s *Session) ImportReportData(data []byte) error {
	var doc struct {
		ReportData *struct {
			Entries  json.RawMessage `json:"entries"`
			Settings json.RawMessage `json:"settings"`
			Draft    json.RawMessage `json:"draft"`
		} `json:"reportData"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse report data file: %w", err)
	}
	if doc.ReportData == nil {
		return ErrUnknownBundle
	}
	rd := doc.ReportData

	var (
		entries []core.TripEntry
		draft   core.ReportDraft
	)
	if !isNull(rd.Entries) {
		if err := json.Unmarshal(rd.Entries, &entries); err != nil {
			return fmt.Errorf("failed to parse entries: %w", err)
		}
	}
	if !isNull(rd.Draft) {
		if err := json.Unmarshal(rd.Draft, &draft); err != nil {
			return fmt.Errorf("failed to parse draft: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !isNull(rd.Settings) {
		merged, err := MergeSettings(s.settings, rd.Settings)
		if err != nil {
			return err
		}
		s.settings = merged
	}
	if !isNull(rd.Entries) {
		out := make([]core.TripEntry, len(entries))
		for i, e := range entries {
			out[i] = normalizeEntry(e)
		}
		s.entries = out
	}
	if !isNull(rd.Draft) {
		s.draft = draft
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
