package publisher

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// DeckPublisher is responsible for publishing deck tasks to one Kafka topic.
type DeckPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func newPublisher(brokers []string, topic string, log *logger.Logger) *DeckPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &DeckPublisher{writer: writer, logger: log}
}

// publish serializes value and writes it keyed by deck ID, so every message
// of the same deck lands on the same partition and is consumed in order.
func (p *DeckPublisher) publish(ctx context.Context, deckID string, value interface{}) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to marshal deck task for Kafka")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(deckID),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"topic": p.writer.Topic}).Error("Failed to write message to Kafka")
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *DeckPublisher) Close() error {
	return p.writer.Close()
}

// ParsePublisher publishes ingestion requests to the deck.parse topic.
type ParsePublisher struct {
	*DeckPublisher
}

// NewParsePublisher creates a publisher bound to the deck.parse topic.
func NewParsePublisher(brokers []string, log *logger.Logger) *ParsePublisher {
	return &ParsePublisher{newPublisher(brokers, models.TopicDeckParse, log)}
}

// PublishParseTask enqueues a deck for parsing.
func (p *ParsePublisher) PublishParseTask(ctx context.Context, task models.ParseTask) error {
	return p.publish(ctx, task.DeckID, task)
}

// AnalyzePublisher publishes analysis requests to the deck.analyze topic.
type AnalyzePublisher struct {
	*DeckPublisher
}

// NewAnalyzePublisher creates a publisher bound to the deck.analyze topic.
func NewAnalyzePublisher(brokers []string, log *logger.Logger) *AnalyzePublisher {
	return &AnalyzePublisher{newPublisher(brokers, models.TopicDeckAnalyze, log)}
}

// PublishAnalyzeTask hands a freshly parsed deck to the nlp worker.
func (p *AnalyzePublisher) PublishAnalyzeTask(ctx context.Context, task models.AnalyzeTask) error {
	return p.publish(ctx, task.DeckID, task)
}
