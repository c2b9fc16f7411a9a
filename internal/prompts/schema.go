package prompts

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// The shape types below only describe responses to the model. Decoding is done
// by the callers, which must tolerate models that ignore the shape.

type bilingualShape struct {
	En string `json:"en" jsonschema:"description=English text"`
	Zh string `json:"zh" jsonschema:"description=Simplified Chinese text"`
}

type highlightShape struct {
	Title          bilingualShape `json:"title"`
	Description    bilingualShape `json:"description"`
	Location       bilingualShape `json:"location"`
	RelatedEntryID string         `json:"relatedEntryId" jsonschema:"description=The ID of the entry this highlight covers"`
}

type reportShape struct {
	Title            bilingualShape   `json:"title"`
	Subtitle         bilingualShape   `json:"subtitle"`
	ExecutiveSummary bilingualShape   `json:"executiveSummary"`
	KeyTakeaways     []bilingualShape `json:"keyTakeaways"`
	Highlights       []highlightShape `json:"highlights" jsonschema:"description=Exactly one highlight per entry in input order"`
	Conclusion       bilingualShape   `json:"conclusion"`
}

// URLAnalysisResult is the structured extraction requested by URLAnalysis.
type URLAnalysisResult struct {
	Content           string   `json:"content" jsonschema:"description=Key facts and narrative extracted from the page"`
	Style             string   `json:"style" jsonschema:"description=Writing style and tone of the page"`
	SuggestedContexts []string `json:"suggestedContexts" jsonschema:"description=Short event context lines worth adding"`
	SuggestedThemes   string   `json:"suggestedThemes" jsonschema:"description=Strategic themes as a single line"`
}

var schemaCache sync.Map // reflect.Type -> string

// SchemaFor renders the JSON schema of T as indented text for prompt embedding.
func SchemaFor[T any]() string {
	t := reflect.TypeFor[T]()
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(string)
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	var v T
	schema := reflector.Reflect(&v)
	schema.Version = ""
	schema.ID = ""

	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(err)
	}
	text := string(b)
	schemaCache.Store(t, text)
	return text
}

func bilingualSchema(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: description,
		Properties: map[string]*genai.Schema{
			"en": {Type: genai.TypeString},
			"zh": {Type: genai.TypeString},
		},
		Required: []string{"en", "zh"},
	}
}

// ReportSchema returns the Gemini response_schema for a bilingual report.
func ReportSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":            bilingualSchema("Report title"),
			"subtitle":         bilingualSchema("One line subtitle"),
			"executiveSummary": bilingualSchema("Two to four sentence summary of the event"),
			"keyTakeaways": {
				Type:        genai.TypeArray,
				Description: "Key takeaways, most important first",
				Items:       bilingualSchema(""),
			},
			"highlights": {
				Type:        genai.TypeArray,
				Description: "Exactly one highlight per entry in input order",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":          bilingualSchema("Highlight headline"),
						"description":    bilingualSchema("Highlight body copy"),
						"location":       bilingualSchema("Where it happened"),
						"relatedEntryId": {Type: genai.TypeString},
					},
					Required: []string{"title", "description", "relatedEntryId"},
				},
			},
			"conclusion": bilingualSchema("Closing paragraph"),
		},
		Required:         []string{"title", "subtitle", "executiveSummary", "keyTakeaways", "highlights", "conclusion"},
		PropertyOrdering: []string{"title", "subtitle", "executiveSummary", "keyTakeaways", "highlights", "conclusion"},
	}
}

// URLAnalysisSchema returns the Gemini response_schema for URLAnalysisResult.
func URLAnalysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"content":           {Type: genai.TypeString},
			"style":             {Type: genai.TypeString},
			"suggestedContexts": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"suggestedThemes":   {Type: genai.TypeString},
		},
		Required: []string{"content", "style", "suggestedContexts", "suggestedThemes"},
	}
}

// StringListSchema returns the Gemini response_schema for a JSON array of strings.
func StringListSchema() *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
}
