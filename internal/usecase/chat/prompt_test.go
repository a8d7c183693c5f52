package chat

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/clinicrag/internal/domain/search/result"
)

func TestRenderPrompt_Sections(t *testing.T) {
	p, err := RenderPrompt("", "How much is cleaning?", clinicSet())
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}

	for _, want := range []string{
		DefaultIntro,
		"1. **Available services at our clinic:**\n- Teeth Cleaning 40\n- Root Canal 120",
		"2. **Our branches:**\n- Main Branch Amman",
		"3. **Social media platforms to contact us:**\n(no matching records)",
		"Question: How much is cleaning?",
		"same language as the question",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
	if !strings.HasSuffix(p, "### Response:\n") {
		t.Errorf("prompt must end with the response marker:\n%s", p)
	}
}

func TestRenderPrompt_UnknownCategoryTitle(t *testing.T) {
	set := result.NewSet([]string{"opening_hours"})
	p, err := RenderPrompt("Custom intro.", "q", set)
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	if !strings.HasPrefix(p, "Custom intro.") {
		t.Errorf("intro not used:\n%s", p)
	}
	if !strings.Contains(p, "1. **opening hours:**") {
		t.Errorf("unexpected section title:\n%s", p)
	}
}

func TestExtractResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "  The cleaning costs 40 JOD.  ", "The cleaning costs 40 JOD."},
		{"echoed prompt", "prompt...\n### Response:\n تكلفة التنظيف 40 دينار", "تكلفة التنظيف 40 دينار"},
		{"last marker wins", "Response: a\nResponse: b", "b"},
		{"marker only", "### Response:   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractResponse(tt.raw); got != tt.want {
				t.Errorf("ExtractResponse = %q, want %q", got, tt.want)
			}
		})
	}
}
