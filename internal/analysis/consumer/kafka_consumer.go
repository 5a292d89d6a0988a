package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"

	"PitchAdvisor/internal/analysis"
	"PitchAdvisor/internal/deckstore"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/pkg/logger"
)

// AnalyzeTaskConsumer is responsible for consuming analyze tasks from Kafka.
type AnalyzeTaskConsumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewAnalyzeTaskConsumer creates a consumer bound to the deck.analyze topic.
func NewAnalyzeTaskConsumer(brokers []string, groupID string, log *logger.Logger) *AnalyzeTaskConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    models.TopicDeckAnalyze,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &AnalyzeTaskConsumer{reader: reader, logger: log}
}

// Start begins consuming messages from the Kafka topic.
func (c *AnalyzeTaskConsumer) Start(ctx context.Context, handler func(context.Context, kafka.Message) error) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping analyze task consumer...")
				return
			default:
				msg, err := c.reader.FetchMessage(ctx)
				if err != nil {
					if ctx.Err() == nil {
						c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error fetching message from Kafka")
					}
					continue
				}

				if err := handler(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
						"topic":     msg.Topic,
						"partition": msg.Partition,
						"offset":    msg.Offset,
					}).Error("Error handling analyze task")
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit Kafka message")
				}
			}
		}
	}()
}

// Close closes the underlying Kafka reader.
func (c *AnalyzeTaskConsumer) Close() error {
	return c.reader.Close()
}

// NewAnalyzeHandler adapts the analysis service to the consumer loop.
// A deck that disappeared between parsing and analysis is dropped, not
// redelivered.
func NewAnalyzeHandler(svc *analysis.Service, log *logger.Logger) func(context.Context, kafka.Message) error {
	return func(ctx context.Context, msg kafka.Message) error {
		var task models.AnalyzeTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "decode_error"}).Error("Dropping malformed analyze task")
			return nil
		}

		if _, _, err := svc.AnalyzeDeck(ctx, task.DeckID); err != nil {
			if errors.Is(err, deckstore.ErrDeckNotFound) {
				log.WithDeck(task.DeckID).Warn("Deck vanished before analysis, dropping task")
				return nil
			}
			return err
		}
		return nil
	}
}
