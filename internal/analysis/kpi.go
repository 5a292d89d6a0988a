package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// kpiRule pairs a KPI family with its extraction patterns and the units
// that may label a match. Every pattern captures the numeric value in its
// first group.
type kpiRule struct {
	name     models.KPIName
	patterns []*regexp.Regexp
	units    []string
}

// KPIExtractor pulls quantitative claims (revenue, users, growth...) out of
// slide text. Extraction is best-effort and never fails: a deck with no
// recognizable numbers simply yields an empty result.
type KPIExtractor struct {
	rules  []kpiRule
	logger *logger.Logger
}

// NewKPIExtractor builds the extractor with the built-in KPI families.
func NewKPIExtractor(log *logger.Logger) *KPIExtractor {
	return &KPIExtractor{
		logger: log,
		rules: []kpiRule{
			{
				name: models.KPIRevenue,
				patterns: compileKPIPatterns(
					`\$(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:million|billion|k|m|b)?`,
					`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:million|billion|k|m|b)?\s*(?:dollars?|usd)`,
					`revenue[:\s]*\$?(\d+(?:,\d{3})*(?:\.\d{2})?)`,
					`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:million|billion|k|m|b)?\s*revenue`,
				),
				units: []string{"$", "million", "billion", "k", "m", "b"},
			},
			{
				name: models.KPICustomers,
				patterns: compileKPIPatterns(
					`(\d+(?:,\d{3})*)\s*customers?`,
					`(\d+(?:,\d{3})*)\s*users?`,
					`(\d+(?:,\d{3})*)\s*clients?`,
					`customer[:\s]*(\d+(?:,\d{3})*)`,
					`user[:\s]*(\d+(?:,\d{3})*)`,
				),
				units: []string{"customers", "users", "clients"},
			},
			{
				name: models.KPIGrowthRate,
				patterns: compileKPIPatterns(
					`(\d+(?:\.\d+)?)\s*%\s*growth`,
					`(\d+(?:\.\d+)?)\s*%\s*increase`,
					`growth[:\s]*(\d+(?:\.\d+)?)\s*%`,
					`increase[:\s]*(\d+(?:\.\d+)?)\s*%`,
				),
				units: []string{"%"},
			},
			{
				name: models.KPIMarketSize,
				patterns: compileKPIPatterns(
					`\$(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:million|billion|k|m|b)?\s*market`,
					`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:million|billion|k|m|b)?\s*(?:tam|sam|som)`,
					`tam[:\s]*\$?(\d+(?:,\d{3})*(?:\.\d{2})?)`,
					`sam[:\s]*\$?(\d+(?:,\d{3})*(?:\.\d{2})?)`,
					`som[:\s]*\$?(\d+(?:,\d{3})*(?:\.\d{2})?)`,
				),
				units: []string{"$", "million", "billion", "tam", "sam", "som"},
			},
			{
				name: models.KPIFunding,
				patterns: compileKPIPatterns(
					`\$(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:million|billion|k|m|b)?\s*funding`,
					`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:million|billion|k|m|b)?\s*raised`,
					`funding[:\s]*\$?(\d+(?:,\d{3})*(?:\.\d{2})?)`,
					`raised[:\s]*\$?(\d+(?:,\d{3})*(?:\.\d{2})?)`,
				),
				units: []string{"$", "million", "billion", "raised"},
			},
			{
				name: models.KPITeamSize,
				patterns: compileKPIPatterns(
					`(\d+)\s*employees?`,
					`(\d+)\s*team\s*members?`,
					`(\d+)\s*people`,
					`team[:\s]*(\d+)`,
					`employees?[:\s]*(\d+)`,
				),
				units: []string{"employees", "team members", "people"},
			},
		},
	}
}

// compileKPIPatterns compiles the family patterns case-insensitively: KPI
// text is matched against the original slide text, not a lowered copy, so
// captured values and source snippets keep their original casing.
func compileKPIPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return out
}

// Extract scans every slide of a deck and aggregates the findings.
// Slides are processed in the given order, which keeps aggregation
// deterministic for equal-confidence candidates.
func (e *KPIExtractor) Extract(deckID string, slides []models.Slide) *models.KPIAnalysis {
	slideKPIs := make(map[string][]models.KPI, len(slides))
	byFamily := make(map[models.KPIName][]models.KPI)

	for _, slide := range slides {
		kpis := e.extractSlide(deckID, slide)
		slideKPIs[slide.ID] = kpis
		for _, kpi := range kpis {
			byFamily[kpi.Name] = append(byFamily[kpi.Name], kpi)
		}
	}

	return &models.KPIAnalysis{
		DeckID:         deckID,
		SlideKPIs:      slideKPIs,
		AggregatedKPIs: e.aggregate(byFamily),
		AnalyzedAt:     time.Now(),
	}
}

// extractSlide runs every family pattern over one slide's combined text.
// A panic while matching degrades that slide to an empty candidate list.
func (e *KPIExtractor) extractSlide(deckID string, slide models.Slide) (kpis []models.KPI) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithDeck(deckID).WithError(models.ErrorInfo{
				Message: fmt.Sprintf("%v", r),
				Type:    "kpi_panic",
			}).Warn("KPI extraction panicked, skipping slide")
			kpis = []models.KPI{}
		}
	}()

	text := slide.Title + " " + slide.Content + " " + slide.Notes
	kpis = []models.KPI{}

	for _, rule := range e.rules {
		for _, p := range rule.patterns {
			for _, m := range p.FindAllStringSubmatch(text, -1) {
				sourceText := m[0]
				kpis = append(kpis, models.KPI{
					Name:       rule.name,
					Value:      m[1],
					Unit:       extractUnit(sourceText, rule.units),
					Confidence: matchConfidence(sourceText),
					SourceText: sourceText,
				})
			}
		}
	}
	return kpis
}

// extractUnit returns the first configured unit that appears in the matched
// snippet, or "" when none does.
func extractUnit(sourceText string, units []string) string {
	lower := strings.ToLower(sourceText)
	for _, unit := range units {
		if strings.Contains(lower, strings.ToLower(unit)) {
			return unit
		}
	}
	return ""
}

// matchConfidence scores a single match. The 0.3 exact-match bonus always
// applies, so the effective base is 0.8; longer snippets and snippets that
// carry a monetary/percentage marker score higher, capped at 1.0.
func matchConfidence(sourceText string) float64 {
	confidence := 0.5
	confidence += 0.3

	if len(sourceText) > 10 {
		confidence += 0.2
	}

	lower := strings.ToLower(sourceText)
	for _, marker := range []string{"$", "%", "million", "billion"} {
		if strings.Contains(lower, marker) {
			confidence += 0.2
			break
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// aggregate picks the best candidate per family. Sorting is stable and the
// input preserves slide order, so equal-confidence candidates resolve to the
// earliest occurrence. Families with zero matches are omitted.
func (e *KPIExtractor) aggregate(byFamily map[models.KPIName][]models.KPI) map[models.KPIName]models.AggregatedKPI {
	aggregated := make(map[models.KPIName]models.AggregatedKPI)
	for _, rule := range e.rules {
		candidates := byFamily[rule.name]
		if len(candidates) == 0 {
			continue
		}
		sorted := make([]models.KPI, len(candidates))
		copy(sorted, candidates)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Confidence > sorted[j].Confidence
		})

		best := sorted[0]
		aggregated[rule.name] = models.AggregatedKPI{
			Value:        best.Value,
			Unit:         best.Unit,
			Confidence:   best.Confidence,
			SourceText:   best.SourceText,
			TotalMatches: len(candidates),
		}
	}
	return aggregated
}
