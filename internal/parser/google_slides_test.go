package parser

import (
	"context"
	"testing"

	"PitchAdvisor/internal/config"
	"PitchAdvisor/internal/models"
)

func TestGoogleSlidesPlaceholderWithoutCredentials(t *testing.T) {
	p := NewGoogleSlidesParser(context.Background(), &config.GoogleSlidesConfig{}, testLogger())

	result, err := p.Parse(context.Background(), ParseInput{
		DeckID:  "deck-1",
		FileKey: "https://docs.google.com/presentation/d/abc123/edit",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Slides) != 1 {
		t.Fatalf("got %d slides, want 1 placeholder slide", len(result.Slides))
	}

	slide := result.Slides[0]
	if slide.SlideNumber != 1 {
		t.Errorf("slide number = %d, want 1", slide.SlideNumber)
	}
	if slide.Title != "Google Slides Import" {
		t.Errorf("title = %q, want %q", slide.Title, "Google Slides Import")
	}
	if slide.Content == "" {
		t.Error("placeholder content must state that parsing is unavailable")
	}

	extras, ok := slide.Extras.(GoogleSlidesExtras)
	if !ok {
		t.Fatalf("extras have type %T", slide.Extras)
	}
	if extras.Source != "google_slides" {
		t.Errorf("source = %q, want google_slides", extras.Source)
	}

	if result.Metadata.TotalSlides != 1 {
		t.Errorf("total_slides = %d, want 1", result.Metadata.TotalSlides)
	}
	if result.Metadata.SourceFormat != models.FormatGoogleSlides {
		t.Errorf("source_format = %s, want google_slides", result.Metadata.SourceFormat)
	}
}

func TestExtractPresentationID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://docs.google.com/presentation/d/1AbC-def_123/edit#slide=id.p", "1AbC-def_123"},
		{"https://docs.google.com/presentation/d/xyz789/", "xyz789"},
		{"raw-presentation-id", "raw-presentation-id"},
	}
	for _, tc := range cases {
		if got := extractPresentationID(tc.in); got != tc.want {
			t.Errorf("extractPresentationID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
