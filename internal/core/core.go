package core

import "fmt"

// Language is the output language selected for an operation.
type Language string

const (
	English Language = "en"
	Chinese Language = "zh"
	Both    Language = "both" // Bilingual preview; Chinese is treated as primary
)

// ParseLanguage validates a user supplied language code.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case English, Chinese, Both:
		return Language(s), nil
	case "":
		return Chinese, nil
	}
	return "", fmt.Errorf("unknown language %q (want en, zh or both)", s)
}

// Primary returns the single language content is authored in.
func (l Language) Primary() Language {
	if l == English {
		return English
	}
	return Chinese
}

// Secondary returns the mandated translation counterpart of Primary.
func (l Language) Secondary() Language {
	if l.Primary() == English {
		return Chinese
	}
	return English
}

// DisplayName is the name used when instructing the model.
func (l Language) DisplayName() string {
	if l.Primary() == English {
		return "English"
	}
	return "Chinese (Simplified)"
}

// GenerationMode selects how a report is synthesized.
type GenerationMode string

const (
	ModeCreative GenerationMode = "creative"
	ModeZhToEn   GenerationMode = "zh_to_en"
	ModeEnToZh   GenerationMode = "en_to_zh"
)

// ParseGenerationMode validates a user supplied mode; empty means creative.
func ParseGenerationMode(s string) (GenerationMode, error) {
	switch GenerationMode(s) {
	case "":
		return ModeCreative, nil
	case ModeCreative, ModeZhToEn, ModeEnToZh:
		return GenerationMode(s), nil
	}
	return "", fmt.Errorf("unknown generation mode %q (want creative, zh_to_en or en_to_zh)", s)
}

// IsTranslation reports whether the mode only translates existing content.
func (m GenerationMode) IsTranslation() bool {
	return m == ModeZhToEn || m == ModeEnToZh
}

// Languages returns the fixed source and target language of a translation mode.
func (m GenerationMode) Languages() (source, target Language) {
	if m == ModeEnToZh {
		return English, Chinese
	}
	return Chinese, English
}

// TripEntry is one user submitted note with its photos.
type TripEntry struct {
	ID               string   `json:"id"`                         // Creation-order token
	Images           []string `json:"images"`                     // Data URLs, insertion order is meaningful
	HeroImageIndices []int    `json:"heroImageIndices,omitempty"` // Featured images; implicitly {0} for a single image
	AITitle          string   `json:"aiTitle,omitempty"`          // Model generated short title
	Note             string   `json:"note"`                       // User's own notes and instructions
	AICaption        string   `json:"aiCaption,omitempty"`        // Model generated visual description
	AICopy           string   `json:"aiCopy,omitempty"`           // Model generated PR prose
	Timestamp        int64    `json:"timestamp"`                  // Unix millis
}

// HeroIndices returns the featured image indices, applying the single image rule.
func (e TripEntry) HeroIndices() []int {
	if len(e.Images) == 1 {
		return []int{0}
	}
	out := make([]int, 0, len(e.HeroImageIndices))
	for _, i := range e.HeroImageIndices {
		if i >= 0 && i < len(e.Images) {
			out = append(out, i)
		}
	}
	return out
}

// Clone returns a deep copy of the entry.
func (e TripEntry) Clone() TripEntry {
	e.Images = append([]string(nil), e.Images...)
	e.HeroImageIndices = append([]int(nil), e.HeroImageIndices...)
	return e
}

// ContextSettings is the process wide brand and event configuration fed into every prompt.
type ContextSettings struct {
	Persona       string   `json:"persona"`
	EventContexts []string `json:"eventContexts"`
	KeyThemes     string   `json:"keyThemes"`
	Tone          string   `json:"tone"`

	ReferenceURLs    []string `json:"referenceUrls"`
	ReferenceContent string   `json:"referenceContent,omitempty"` // Aggregated content from URL analysis
	ReferenceStyle   string   `json:"referenceStyle,omitempty"`   // Aggregated style notes

	BrandLogo     string `json:"brandLogo,omitempty"`
	BrandName     string `json:"brandName,omitempty"`
	BrandLocation string `json:"brandLocation,omitempty"`

	AuthorName  string `json:"authorName,omitempty"`
	AuthorRole  string `json:"authorRole,omitempty"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
	TwitterURL  string `json:"twitterUrl,omitempty"`
	TelegramURL string `json:"telegramUrl,omitempty"`
}

// Clone returns a copy that shares no slices with s.
func (s ContextSettings) Clone() ContextSettings {
	s.EventContexts = append([]string(nil), s.EventContexts...)
	s.ReferenceURLs = append([]string(nil), s.ReferenceURLs...)
	return s
}

// ReportDraft is the editable bilingual skeleton of a report.
type ReportDraft struct {
	Title            BilingualText   `json:"title"`
	Subtitle         BilingualText   `json:"subtitle"`
	ExecutiveSummary BilingualText   `json:"executiveSummary"`
	KeyTakeaways     []BilingualText `json:"keyTakeaways"`
	Conclusion       BilingualText   `json:"conclusion"`
}

// Clone returns a copy that shares no slices with d.
func (d ReportDraft) Clone() ReportDraft {
	d.KeyTakeaways = append([]BilingualText(nil), d.KeyTakeaways...)
	return d
}

// Highlight is the report side rendering of one entry.
type Highlight struct {
	Title          BilingualText `json:"title"`
	Description    BilingualText `json:"description"`
	Location       BilingualText `json:"location"`
	RelatedEntryID string        `json:"relatedEntryId,omitempty"`
	EmbeddedImages []string      `json:"embeddedImages,omitempty"`
}

// GeneratedReport is a draft plus one highlight per entry.
type GeneratedReport struct {
	ReportDraft
	Highlights []Highlight `json:"highlights"`
}

// Draft returns the draft portion of the report.
func (r GeneratedReport) Draft() ReportDraft {
	return r.ReportDraft.Clone()
}

// Clone returns a deep copy of the report.
func (r GeneratedReport) Clone() GeneratedReport {
	out := GeneratedReport{ReportDraft: r.ReportDraft.Clone()}
	out.Highlights = make([]Highlight, len(r.Highlights))
	for i, h := range r.Highlights {
		h.EmbeddedImages = append([]string(nil), h.EmbeddedImages...)
		out.Highlights[i] = h
	}
	return out
}

// PublishedReport is an immutable, persisted snapshot of a generated report.
type PublishedReport struct {
	GeneratedReport
	ID          string `json:"id"`
	PublishDate int64  `json:"publishDate"` // Unix millis
	CoverImage  string `json:"coverImage,omitempty"`
	AuthorName  string `json:"authorName,omitempty"`
	AuthorRole  string `json:"authorRole,omitempty"`
}
