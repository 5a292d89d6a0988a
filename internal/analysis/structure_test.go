package analysis

import (
	"reflect"
	"testing"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

func newTestDetector() *StructureDetector {
	return NewStructureDetector(logger.New("test", "", ""))
}

func slide(id, title, content string) models.Slide {
	return models.Slide{ID: id, DeckID: "deck-1", Title: title, Content: content}
}

func fundraisingDeck() []models.Slide {
	return []models.Slide{
		slide("s1", "The Problem", "Current state is broken"),
		slide("s2", "Our Solution", "A platform and technology innovation"),
		slide("s3", "Market Opportunity", "TAM is huge"),
		slide("s4", "Team", "Our founder has experience and expertise"),
		slide("s5", "The Ask", "We are raising capital"),
		slide("s6", "Agenda", "Welcome"),
	}
}

func TestDetectSlideRoles(t *testing.T) {
	d := newTestDetector()
	result := d.Analyze("deck-1", fundraisingDeck())

	want := map[string]models.Role{
		"s1": models.RoleProblem,
		"s2": models.RoleSolution,
		"s3": models.RoleMarket,
		"s4": models.RoleTeam,
		"s5": models.RoleAsk,
		"s6": models.RoleUnknown,
	}
	for id, role := range want {
		got, ok := result.SlideRoles[id]
		if !ok {
			t.Fatalf("missing role for slide %s", id)
		}
		if got.Role != role {
			t.Errorf("slide %s: got role %s, want %s (keywords: %v)", id, got.Role, role, got.Keywords)
		}
	}
}

func TestConfidenceBounds(t *testing.T) {
	d := newTestDetector()
	result := d.Analyze("deck-1", fundraisingDeck())

	for id, sr := range result.SlideRoles {
		if sr.Confidence < 0 || sr.Confidence > 1 {
			t.Errorf("slide %s: confidence %f out of [0,1]", id, sr.Confidence)
		}
		if sr.Role == models.RoleUnknown && sr.Confidence != 0 {
			t.Errorf("slide %s: unknown role must have zero confidence, got %f", id, sr.Confidence)
		}
	}
}

func TestUnknownSlideHasNoKeywords(t *testing.T) {
	d := newTestDetector()
	result := d.Analyze("deck-1", []models.Slide{slide("s1", "Agenda", "Welcome everyone")})

	sr := result.SlideRoles["s1"]
	if sr.Role != models.RoleUnknown {
		t.Fatalf("got role %s, want unknown", sr.Role)
	}
	if len(sr.Keywords) != 0 {
		t.Errorf("unknown role should carry no keywords, got %v", sr.Keywords)
	}
}

func TestDeckStructureCounts(t *testing.T) {
	d := newTestDetector()
	result := d.Analyze("deck-1", fundraisingDeck())
	ds := result.DeckStructure

	if ds.TotalSlides != 6 {
		t.Fatalf("total_slides = %d, want 6", ds.TotalSlides)
	}

	sum := 0
	for _, count := range ds.RoleCounts {
		sum += count
	}
	if sum != ds.TotalSlides {
		t.Errorf("role counts sum to %d, want %d", sum, ds.TotalSlides)
	}

	pctSum := 0.0
	for _, pct := range ds.RolePercentages {
		pctSum += pct
	}
	if pctSum < 99.9 || pctSum > 100.1 {
		t.Errorf("role percentages sum to %f, want 100", pctSum)
	}
}

func TestMissingSections(t *testing.T) {
	d := newTestDetector()
	result := d.Analyze("deck-1", fundraisingDeck())

	// The fixture covers every critical section except financials.
	want := []models.Role{models.RoleFinancials}
	if !reflect.DeepEqual(result.DeckStructure.MissingSections, want) {
		t.Errorf("missing_sections = %v, want %v", result.DeckStructure.MissingSections, want)
	}
}

func TestDeckTypePriority(t *testing.T) {
	cases := []struct {
		name   string
		counts map[models.Role]int
		want   string
	}{
		{"ask wins over everything", map[models.Role]int{models.RoleAsk: 1, models.RoleFinancials: 3, models.RoleTraction: 2}, "fundraising"},
		{"financials without ask", map[models.Role]int{models.RoleFinancials: 1, models.RoleTraction: 1}, "business_plan"},
		{"traction only", map[models.Role]int{models.RoleTraction: 2}, "growth"},
		{"solution only", map[models.Role]int{models.RoleSolution: 1, models.RoleProblem: 1}, "product_pitch"},
		{"nothing recognized", map[models.Role]int{models.RoleUnknown: 4}, "concept"},
		{"empty deck", map[models.Role]int{}, "concept"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := determineDeckType(tc.counts); got != tc.want {
				t.Errorf("determineDeckType() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEmptyDeckStructure(t *testing.T) {
	d := newTestDetector()
	result := d.Analyze("deck-1", nil)
	ds := result.DeckStructure

	if ds.TotalSlides != 0 {
		t.Errorf("total_slides = %d, want 0", ds.TotalSlides)
	}
	if len(ds.RoleCounts) != 0 || len(ds.RolePercentages) != 0 {
		t.Errorf("empty deck should have no counts, got %v / %v", ds.RoleCounts, ds.RolePercentages)
	}
	if len(ds.MissingSections) != len(criticalSections) {
		t.Errorf("empty deck should miss every critical section, got %v", ds.MissingSections)
	}
	if ds.DeckType != "concept" {
		t.Errorf("deck_type = %q, want concept", ds.DeckType)
	}
}

func TestClassificationIsDeterministic(t *testing.T) {
	d := newTestDetector()
	slides := fundraisingDeck()

	first := d.Analyze("deck-1", slides)
	second := d.Analyze("deck-1", slides)

	for id, sr := range first.SlideRoles {
		other := second.SlideRoles[id]
		if sr.Role != other.Role || sr.Confidence != other.Confidence {
			t.Errorf("slide %s: classification not stable (%s/%f vs %s/%f)", id, sr.Role, sr.Confidence, other.Role, other.Confidence)
		}
		if !reflect.DeepEqual(sr.Keywords, other.Keywords) {
			t.Errorf("slide %s: keyword order not stable (%v vs %v)", id, sr.Keywords, other.Keywords)
		}
	}
}

func TestTieBreakPrefersEarlierRule(t *testing.T) {
	d := newTestDetector()
	// "funding investment" saturates both the financials and the ask rules at
	// 1.0; financials is evaluated first and must win the tie.
	result := d.Analyze("deck-1", []models.Slide{slide("s1", "", "funding investment funding investment")})

	sr := result.SlideRoles["s1"]
	if sr.Role != models.RoleFinancials {
		t.Errorf("tie resolved to %s, want financials", sr.Role)
	}
	if sr.Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0", sr.Confidence)
	}
}

func TestKeywordsAreDeduplicated(t *testing.T) {
	d := newTestDetector()
	result := d.Analyze("deck-1", []models.Slide{slide("s1", "Problem", "problem problem problem")})

	sr := result.SlideRoles["s1"]
	seen := make(map[string]int)
	for _, kw := range sr.Keywords {
		seen[kw]++
		if seen[kw] > 1 {
			t.Errorf("keyword %q appears more than once: %v", kw, sr.Keywords)
		}
	}
}
