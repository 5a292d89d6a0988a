package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// criticalSections are the narrative sections an investor-ready deck is
// expected to cover. Absent ones are reported in missing_sections.
var criticalSections = []models.Role{
	models.RoleProblem,
	models.RoleSolution,
	models.RoleMarket,
	models.RoleTeam,
	models.RoleFinancials,
	models.RoleAsk,
}

// roleRule pairs a role with its literal keywords and regex signals.
type roleRule struct {
	role     models.Role
	keywords []string
	patterns []*regexp.Regexp
}

// StructureDetector classifies slides into narrative roles with a weighted
// keyword/regex scoring scheme. Rules are evaluated in a fixed order so that
// score ties always resolve to the same role.
type StructureDetector struct {
	rules  []roleRule
	logger *logger.Logger
}

// NewStructureDetector builds the detector with the built-in role rules.
func NewStructureDetector(log *logger.Logger) *StructureDetector {
	return &StructureDetector{
		logger: log,
		rules: []roleRule{
			{
				role:     models.RoleProblem,
				keywords: []string{"problem", "challenge", "issue", "pain point", "gap", "need"},
				patterns: compilePatterns(
					`\b(problem|challenge|issue|pain)\b`,
					`\b(why|what|how)\s+(is|are)\s+(wrong|broken|missing)\b`,
					`\b(current|existing)\s+(state|situation|problem)\b`,
				),
			},
			{
				role:     models.RoleSolution,
				keywords: []string{"solution", "product", "service", "platform", "technology", "innovation"},
				patterns: compilePatterns(
					`\b(solution|product|service|platform)\b`,
					`\b(how|what)\s+(we|our)\s+(solve|provide|offer)\b`,
					`\b(technology|innovation|approach|method)\b`,
				),
			},
			{
				role:     models.RoleTraction,
				keywords: []string{"traction", "growth", "revenue", "customers", "users", "metrics"},
				patterns: compilePatterns(
					`\b(traction|growth|revenue|customers|users)\b`,
					`\b(metrics|kpis|results|achievements)\b`,
					`\b(sales|revenue|growth|increase)\b`,
				),
			},
			{
				role:     models.RoleMarket,
				keywords: []string{"market", "opportunity", "size", "target", "audience", "demand"},
				patterns: compilePatterns(
					`\b(market|opportunity|size|target|audience)\b`,
					`\b(tam|sam|som)\b`,
					`\b(demand|need|potential)\b`,
				),
			},
			{
				role:     models.RoleTeam,
				keywords: []string{"team", "founder", "experience", "background", "expertise"},
				patterns: compilePatterns(
					`\b(team|founder|experience|background)\b`,
					`\b(we|our|us)\s+(are|have|bring)\b`,
					`\b(expertise|skills|knowledge)\b`,
				),
			},
			{
				role:     models.RoleFinancials,
				keywords: []string{"financial", "revenue", "profit", "funding", "investment", "model"},
				patterns: compilePatterns(
					`\b(financial|revenue|profit|funding|investment)\b`,
					`\b(business\s+model|pricing|cost)\b`,
					`\b(break\s+even|roi|margin)\b`,
				),
			},
			{
				role:     models.RoleAsk,
				keywords: []string{"ask", "funding", "investment", "raise", "money", "capital"},
				patterns: compilePatterns(
					`\b(ask|funding|investment|raise|money|capital)\b`,
					`\b(we\s+are\s+raising|seeking|looking\s+for)\b`,
					`\b(use\s+of\s+funds|allocation)\b`,
				),
			},
		},
	}
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// Analyze classifies every slide of a deck and summarizes the deck structure.
// The result is a full recomputation: callers overwrite any previous analysis.
func (d *StructureDetector) Analyze(deckID string, slides []models.Slide) *models.StructureAnalysis {
	slideRoles := make(map[string]models.SlideRole, len(slides))
	for _, slide := range slides {
		slideRoles[slide.ID] = d.classifySlide(deckID, slide)
	}
	return &models.StructureAnalysis{
		DeckID:        deckID,
		SlideRoles:    slideRoles,
		DeckStructure: d.deckStructure(slides, slideRoles),
		AnalyzedAt:    time.Now(),
	}
}

// classifySlide scores one slide against every role rule. A panic in the
// scoring of a single slide degrades that slide to unknown instead of
// failing the whole deck.
func (d *StructureDetector) classifySlide(deckID string, slide models.Slide) (result models.SlideRole) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithDeck(deckID).WithError(models.ErrorInfo{
				Message: fmt.Sprintf("%v", r),
				Type:    "classifier_panic",
			}).Warn("Slide role classification panicked, falling back to unknown")
			result = models.SlideRole{Role: models.RoleUnknown, Confidence: 0, Keywords: []string{}}
		}
	}()

	text := strings.ToLower(slide.Title + " " + slide.Content + " " + slide.Notes)

	best := models.SlideRole{Role: models.RoleUnknown, Confidence: 0, Keywords: []string{}}
	for _, rule := range d.rules {
		confidence := 0.0
		var matched []string

		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				confidence += 0.3
				matched = append(matched, kw)
			}
		}
		for _, p := range rule.patterns {
			hits := p.FindAllString(text, -1)
			if len(hits) > 0 {
				confidence += 0.2 * float64(len(hits))
				matched = append(matched, hits...)
			}
		}

		if confidence > 1.0 {
			confidence = 1.0
		}
		// Strict > keeps the earlier rule on ties, so rule order is part of
		// the classifier contract.
		if confidence > best.Confidence {
			best = models.SlideRole{
				Role:       rule.role,
				Confidence: confidence,
				Keywords:   dedupeKeywords(matched),
			}
		}
	}
	return best
}

// dedupeKeywords removes duplicate matches, preserving first-seen order.
func dedupeKeywords(matched []string) []string {
	seen := make(map[string]struct{}, len(matched))
	out := make([]string, 0, len(matched))
	for _, m := range matched {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// deckStructure summarizes the role distribution over the whole deck.
func (d *StructureDetector) deckStructure(slides []models.Slide, slideRoles map[string]models.SlideRole) models.DeckStructure {
	total := len(slides)
	counts := make(map[models.Role]int)
	for _, sr := range slideRoles {
		counts[sr.Role]++
	}

	percentages := make(map[models.Role]float64, len(counts))
	for role, count := range counts {
		percentages[role] = float64(count) / float64(total) * 100
	}

	missing := make([]models.Role, 0, len(criticalSections))
	for _, section := range criticalSections {
		if counts[section] == 0 {
			missing = append(missing, section)
		}
	}

	return models.DeckStructure{
		RoleCounts:      counts,
		RolePercentages: percentages,
		MissingSections: missing,
		DeckType:        determineDeckType(counts),
		TotalSlides:     total,
	}
}

// determineDeckType derives the deck stage from the role distribution.
// The checks are ordered by how far along the pitch narrative implies the
// company is; the first hit wins.
func determineDeckType(counts map[models.Role]int) string {
	switch {
	case counts[models.RoleAsk] > 0:
		return "fundraising"
	case counts[models.RoleFinancials] > 0:
		return "business_plan"
	case counts[models.RoleTraction] > 0:
		return "growth"
	case counts[models.RoleSolution] > 0:
		return "product_pitch"
	default:
		return "concept"
	}
}
