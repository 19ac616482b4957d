package export

import (
	"strings"
	"testing"
)

func TestRenderSessionHTML(t *testing.T) {
	html, err := RenderSessionHTML(SessionNote{
		ClientName:      "Ana Lima",
		TherapistName:   "Rita Nunes",
		SessionDate:     "2026-02-10",
		SessionTime:     "14:00",
		DurationMinutes: 50,
		Status:          "completed",
		Summary:         "Worked on grounding techniques.",
		Interventions:   []string{"CBT", "Breathing exercise"},
		RiskAssessment:  "Low risk, no changes.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Ana Lima",
		"Rita Nunes",
		"2026-02-10",
		"Worked on grounding techniques.",
		"<li>CBT</li>",
		"Risk Assessment",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderSessionHTMLSkipsEmptySections(t *testing.T) {
	html, err := RenderSessionHTML(SessionNote{
		ClientName:      "Ana Lima",
		SessionDate:     "2026-02-10",
		DurationMinutes: 50,
		Status:          "completed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, absent := range []string{"Summary", "Interventions", "Risk Assessment"} {
		if strings.Contains(html, absent) {
			t.Fatalf("empty section %q should be omitted", absent)
		}
	}
}

func TestRenderSessionHTMLEscapesContent(t *testing.T) {
	html, err := RenderSessionHTML(SessionNote{
		ClientName:      "Ana",
		SessionDate:     "2026-02-10",
		DurationMinutes: 50,
		Status:          "completed",
		Notes:           `<script>alert("x")</script>`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("note content should be HTML-escaped")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Ana Lima 2026-02-10": "Ana-Lima-2026-02-10",
		"///":                 "session",
		"":                    "session",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
