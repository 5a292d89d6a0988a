package analysis

import (
	"context"
	"fmt"

	"PitchAdvisor/internal/analysis/store"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// SlideSource is the read side of the deck store the analyzer depends on.
type SlideSource interface {
	GetDeck(ctx context.Context, deckID string) (*models.Deck, error)
	GetSlides(ctx context.Context, deckID string) ([]models.Slide, error)
}

// Service runs the two analyzers over a deck's persisted slides and stores
// the results. Analysis is idempotent: rerunning it overwrites the previous
// documents for the deck.
type Service struct {
	slides    SlideSource
	store     store.AnalysisStore
	detector  *StructureDetector
	extractor *KPIExtractor
	logger    *logger.Logger
}

// NewService creates the analysis service.
func NewService(slides SlideSource, st store.AnalysisStore, log *logger.Logger) *Service {
	return &Service{
		slides:    slides,
		store:     st,
		detector:  NewStructureDetector(log),
		extractor: NewKPIExtractor(log),
		logger:    log,
	}
}

// AnalyzeDeck loads a deck's slides, runs structure detection and KPI
// extraction, and persists both documents. A deck with zero slides is a
// valid (degenerate) input and yields empty analyses.
func (s *Service) AnalyzeDeck(ctx context.Context, deckID string) (*models.StructureAnalysis, *models.KPIAnalysis, error) {
	log := s.logger.WithDeck(deckID)

	deck, err := s.slides.GetDeck(ctx, deckID)
	if err != nil {
		return nil, nil, err
	}
	if deck.Status != models.DeckStatusParsed {
		log.WithPayload(map[string]interface{}{"status": string(deck.Status)}).
			Warn("Analyzing a deck that is not in parsed state")
	}

	slides, err := s.slides.GetSlides(ctx, deckID)
	if err != nil {
		return nil, nil, fmt.Errorf("加载幻灯片失败: %w", err)
	}

	structure := s.detector.Analyze(deckID, slides)
	kpis := s.extractor.Extract(deckID, slides)

	if err := s.store.SaveStructure(ctx, structure); err != nil {
		return nil, nil, fmt.Errorf("保存结构分析失败: %w", err)
	}
	if err := s.store.SaveKPIs(ctx, kpis); err != nil {
		return nil, nil, fmt.Errorf("保存 KPI 分析失败: %w", err)
	}

	log.WithPayload(map[string]interface{}{
		"total_slides":     structure.DeckStructure.TotalSlides,
		"deck_type":        structure.DeckStructure.DeckType,
		"missing_sections": len(structure.DeckStructure.MissingSections),
		"kpi_families":     len(kpis.AggregatedKPIs),
	}).Info("Deck analysis completed")

	return structure, kpis, nil
}

// GetStructure returns the stored structure analysis for a deck, nil when
// the deck has not been analyzed yet.
func (s *Service) GetStructure(ctx context.Context, deckID string) (*models.StructureAnalysis, error) {
	return s.store.GetStructure(ctx, deckID)
}

// GetKPIs returns the stored KPI analysis for a deck, nil when absent.
func (s *Service) GetKPIs(ctx context.Context, deckID string) (*models.KPIAnalysis, error) {
	return s.store.GetKPIs(ctx, deckID)
}
