package chat

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
)

// DefaultIntro opens every prompt.
const DefaultIntro = "You are a helpful chatbot assisting users of a dental clinic in the Hashemite Kingdom of Jordan. " +
	"Your goal is to provide clear, concise, and accurate answers based on the available data. " +
	"Ensure that your answers are precise, relevant, and easy to understand."

// responseMarker separates the model's echo of the prompt from its answer.
const responseMarker = "Response:"

var sectionTitles = map[string]string{
	"services":     "Available services at our clinic",
	"branches":     "Our branches",
	"social_media": "Social media platforms to contact us",
}

var promptTemplate = template.Must(template.New("prompt").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`{{.Intro}}
{{range $i, $s := .Sections}}
{{inc $i}}. **{{$s.Title}}:**
{{- if $s.Lines}}{{range $s.Lines}}
- {{.}}{{end}}{{else}}
(no matching records){{end}}
{{end}}
- Respond to the user's query based on the information provided above.
- If the query asks about a specific service, branch, or social media platform, provide relevant details.
- If the query is general or unclear, politely clarify and offer to help further.
- Do not invent services, branches, prices or contacts that are not listed above.

Question: {{.Query}}
Note: The answer is in the same language as the question.

### Response:
`))

type section struct {
	Title string
	Lines []string
}

// RenderPrompt builds the generation prompt: one numbered section per category of set,
// in set order, followed by the user's query.
func RenderPrompt(intro, query string, set result.Set) (string, error) {
	if intro == "" {
		intro = DefaultIntro
	}
	categories := set.Categories()
	sections := make([]section, 0, len(categories))
	for _, name := range categories {
		res, _ := set.Get(name)
		sections = append(sections, section{Title: sectionTitle(name), Lines: res.Texts()})
	}

	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		Intro    string
		Query    string
		Sections []section
	}{Intro: intro, Query: query, Sections: sections})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

func sectionTitle(category string) string {
	if t, ok := sectionTitles[category]; ok {
		return t
	}
	return strings.ReplaceAll(category, "_", " ")
}

// ExtractResponse keeps only what follows the last "Response:" marker, trimmed.
// Completions that never repeat the marker are returned whole.
func ExtractResponse(raw string) string {
	if i := strings.LastIndex(raw, responseMarker); i >= 0 {
		raw = raw[i+len(responseMarker):]
	}
	return strings.TrimSpace(raw)
}
