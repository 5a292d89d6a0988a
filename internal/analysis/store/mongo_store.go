package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"PitchAdvisor/internal/models"
)

// AnalysisStore defines the interface for analysis result persistence.
// Results are keyed by deck_id and fully recomputed on every run, so both
// writes are upserts.
type AnalysisStore interface {
	SaveStructure(ctx context.Context, analysis *models.StructureAnalysis) error
	GetStructure(ctx context.Context, deckID string) (*models.StructureAnalysis, error)
	SaveKPIs(ctx context.Context, analysis *models.KPIAnalysis) error
	GetKPIs(ctx context.Context, deckID string) (*models.KPIAnalysis, error)
}

// MongoAnalysisStore is an implementation of AnalysisStore using MongoDB.
type MongoAnalysisStore struct {
	structures *mongo.Collection
	kpis       *mongo.Collection
}

// NewMongoAnalysisStore creates a new MongoAnalysisStore.
func NewMongoAnalysisStore(db *mongo.Database) *MongoAnalysisStore {
	return &MongoAnalysisStore{
		structures: db.Collection("structure_analysis"),
		kpis:       db.Collection("kpi_analysis"),
	}
}

// SaveStructure upserts the structure analysis document for a deck.
func (s *MongoAnalysisStore) SaveStructure(ctx context.Context, analysis *models.StructureAnalysis) error {
	filter := bson.M{"deck_id": analysis.DeckID}
	update := bson.M{"$set": analysis}
	_, err := s.structures.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// GetStructure retrieves the structure analysis for a deck, nil when absent.
func (s *MongoAnalysisStore) GetStructure(ctx context.Context, deckID string) (*models.StructureAnalysis, error) {
	var analysis models.StructureAnalysis
	err := s.structures.FindOne(ctx, bson.M{"deck_id": deckID}).Decode(&analysis)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &analysis, nil
}

// SaveKPIs upserts the KPI analysis document for a deck.
func (s *MongoAnalysisStore) SaveKPIs(ctx context.Context, analysis *models.KPIAnalysis) error {
	filter := bson.M{"deck_id": analysis.DeckID}
	update := bson.M{"$set": analysis}
	_, err := s.kpis.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// GetKPIs retrieves the KPI analysis for a deck, nil when absent.
func (s *MongoAnalysisStore) GetKPIs(ctx context.Context, deckID string) (*models.KPIAnalysis, error) {
	var analysis models.KPIAnalysis
	err := s.kpis.FindOne(ctx, bson.M{"deck_id": deckID}).Decode(&analysis)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &analysis, nil
}
