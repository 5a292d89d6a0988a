package analysis

import (
	"testing"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

func newTestExtractor() *KPIExtractor {
	return NewKPIExtractor(logger.New("test", "", ""))
}

func findKPI(kpis []models.KPI, name models.KPIName) *models.KPI {
	for i := range kpis {
		if kpis[i].Name == name {
			return &kpis[i]
		}
	}
	return nil
}

func TestExtractRevenue(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Title: "Traction", Content: "We made $5 million revenue last year"},
	})

	kpi := findKPI(result.SlideKPIs["s1"], models.KPIRevenue)
	if kpi == nil {
		t.Fatal("no revenue KPI extracted")
	}
	if kpi.Value != "5" {
		t.Errorf("value = %q, want 5", kpi.Value)
	}
	if kpi.Unit != "$" {
		t.Errorf("unit = %q, want $", kpi.Unit)
	}
	if kpi.SourceText != "$5 million" {
		t.Errorf("source_text = %q, want %q", kpi.SourceText, "$5 million")
	}

	agg, ok := result.AggregatedKPIs[models.KPIRevenue]
	if !ok {
		t.Fatal("revenue missing from aggregation")
	}
	if agg.Value != "5" {
		t.Errorf("aggregated value = %q, want 5", agg.Value)
	}
}

func TestExtractCustomers(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Content: "10,000 customers and growing"},
	})

	kpi := findKPI(result.SlideKPIs["s1"], models.KPICustomers)
	if kpi == nil {
		t.Fatal("no customers KPI extracted")
	}
	if kpi.Value != "10,000" {
		t.Errorf("value = %q, want 10,000 (thousands separators preserved)", kpi.Value)
	}
	if kpi.Unit != "customers" {
		t.Errorf("unit = %q, want customers", kpi.Unit)
	}
}

func TestExtractGrowthRate(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Content: "300% growth year over year"},
	})

	kpi := findKPI(result.SlideKPIs["s1"], models.KPIGrowthRate)
	if kpi == nil {
		t.Fatal("no growth_rate KPI extracted")
	}
	if kpi.Value != "300" || kpi.Unit != "%" {
		t.Errorf("got %q %q, want 300 %%", kpi.Value, kpi.Unit)
	}
	if kpi.Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0 (long match with %% marker)", kpi.Confidence)
	}
}

func TestShortMatchConfidence(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Content: "42 people"},
	})

	kpi := findKPI(result.SlideKPIs["s1"], models.KPITeamSize)
	if kpi == nil {
		t.Fatal("no team_size KPI extracted")
	}
	// Short snippet without a monetary/percentage marker: base score only.
	if kpi.Confidence != 0.8 {
		t.Errorf("confidence = %f, want 0.8", kpi.Confidence)
	}
	if kpi.Unit != "people" {
		t.Errorf("unit = %q, want people", kpi.Unit)
	}
}

func TestConfidenceWithinBounds(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Content: "Revenue: $1,200,000.50 million billion growth 55% increase raised $9 billion funding 1,000 users"},
	})

	for _, kpis := range result.SlideKPIs {
		for _, kpi := range kpis {
			if kpi.Confidence < 0 || kpi.Confidence > 1 {
				t.Errorf("%s: confidence %f out of [0,1] (%q)", kpi.Name, kpi.Confidence, kpi.SourceText)
			}
		}
	}
}

func TestAggregationPrefersHighestConfidence(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Content: "8 people"},
		{ID: "s2", Content: "Team: 12 team members"},
	})

	agg, ok := result.AggregatedKPIs[models.KPITeamSize]
	if !ok {
		t.Fatal("team_size missing from aggregation")
	}
	if agg.Value != "12" {
		t.Errorf("aggregated value = %q, want 12 (higher-confidence match)", agg.Value)
	}
	if agg.TotalMatches != 3 {
		t.Errorf("total_matches = %d, want 3", agg.TotalMatches)
	}
}

func TestAggregationTieKeepsEarliestMatch(t *testing.T) {
	e := newTestExtractor()
	// Both slides produce identical-confidence matches; the earlier slide
	// must win the tie.
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", SlideNumber: 1, Content: "5,000 customers"},
		{ID: "s2", SlideNumber: 2, Content: "7,000 customers"},
	})

	agg, ok := result.AggregatedKPIs[models.KPICustomers]
	if !ok {
		t.Fatal("customers missing from aggregation")
	}
	if agg.Value != "5,000" {
		t.Errorf("aggregated value = %q, want 5,000 (earliest on tie)", agg.Value)
	}
	if agg.TotalMatches != 2 {
		t.Errorf("total_matches = %d, want 2", agg.TotalMatches)
	}
}

func TestZeroMatchFamiliesOmitted(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Content: "42 people"},
	})

	if _, ok := result.AggregatedKPIs[models.KPIRevenue]; ok {
		t.Error("revenue should be omitted when no match exists")
	}
	if len(result.AggregatedKPIs) != 1 {
		t.Errorf("aggregated families = %d, want 1", len(result.AggregatedKPIs))
	}
}

func TestEmptyDeck(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", nil)

	if len(result.SlideKPIs) != 0 {
		t.Errorf("slide_kpis should be empty, got %v", result.SlideKPIs)
	}
	if len(result.AggregatedKPIs) != 0 {
		t.Errorf("aggregated_kpis should be empty, got %v", result.AggregatedKPIs)
	}
}

func TestSlideWithoutNumbersYieldsEmptyList(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Title: "Vision", Content: "Changing the world"},
	})

	kpis, ok := result.SlideKPIs["s1"]
	if !ok {
		t.Fatal("slide entry missing from slide_kpis")
	}
	if len(kpis) != 0 {
		t.Errorf("expected no KPIs, got %v", kpis)
	}
}

func TestValueKeepsOriginalFormatting(t *testing.T) {
	e := newTestExtractor()
	result := e.Extract("deck-1", []models.Slide{
		{ID: "s1", Content: "TAM: $10 billion market"},
	})

	agg, ok := result.AggregatedKPIs[models.KPIMarketSize]
	if !ok {
		t.Fatal("market_size missing from aggregation")
	}
	if agg.Value != "10" {
		t.Errorf("value = %q, want 10", agg.Value)
	}
	if agg.Unit != "$" {
		t.Errorf("unit = %q, want $ (first configured unit present)", agg.Unit)
	}
}
