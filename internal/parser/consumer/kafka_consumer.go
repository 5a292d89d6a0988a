package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"

	"PitchAdvisor/internal/deckstore"
	"PitchAdvisor/internal/models"
	"PitchAdvisor/internal/parser"
	"PitchAdvisor/pkg/logger"
)

// ParseTaskConsumer is responsible for consuming parse tasks from Kafka.
type ParseTaskConsumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewParseTaskConsumer creates a consumer bound to the deck.parse topic.
func NewParseTaskConsumer(brokers []string, groupID string, log *logger.Logger) *ParseTaskConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    models.TopicDeckParse,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &ParseTaskConsumer{reader: reader, logger: log}
}

// Start begins consuming messages from the Kafka topic.
func (c *ParseTaskConsumer) Start(ctx context.Context, handler func(context.Context, kafka.Message) error) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping parse task consumer...")
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
					}).Error("Error handling parse task")
				}

				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit Kafka message")
				}
			}
		}
	}()
}

// Close closes the underlying Kafka reader.
func (c *ParseTaskConsumer) Close() error {
	return c.reader.Close()
}

// NewParseHandler adapts the ingestion service to the consumer loop.
// Concurrency rejections (lock held, parse already in progress) are treated
// as handled: another worker owns the deck and the message must not be
// redelivered.
func NewParseHandler(svc *parser.Service, log *logger.Logger) func(context.Context, kafka.Message) error {
	return func(ctx context.Context, msg kafka.Message) error {
		var task models.ParseTask
		if err := json.Unmarshal(msg.Value, &task); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "decode_error"}).Error("Dropping malformed parse task")
			return nil
		}

		count, err := svc.ParseDeck(ctx, task)
		if err != nil {
			if errors.Is(err, parser.ErrParseLocked) || errors.Is(err, deckstore.ErrParseInProgress) {
				log.WithDeck(task.DeckID).Info("Deck is already being parsed elsewhere, skipping")
				return nil
			}
			return err
		}

		log.WithDeck(task.DeckID).WithPayload(map[string]interface{}{"slides": count}).Info("Parse task completed")
		return nil
	}
}
