// Package consumer reacts to corpus-rebuild requests on Kafka by reloading
// the searcher's index, and lets the indexer job announce freshly built
// snapshots on the same topic.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/resilience"
)

// RebuildRequest is the payload on the corpus-rebuild topic. Generation,
// when set, names the snapshot the sender already built; a searcher that is
// serving it skips the reload.
type RebuildRequest struct {
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requested_by"`
	Generation  string    `json:"generation,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Reloader is the part of *indexer.Engine the handler drives.
type Reloader interface {
	Current() *index.Index
	Reload(ctx context.Context, src indexer.DocumentSource) (*index.Index, error)
}

// RebuildConsumer wraps a Kafka consumer to drive index reloads.
type RebuildConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *RebuildConsumer {
	return &RebuildConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "rebuild-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (rc *RebuildConsumer) Start(ctx context.Context) error {
	rc.logger.Info("rebuild consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleRebuild returns a MessageHandler that reloads engine from src for
// every rebuild request. Undecodable messages are dropped. A corpus that
// fails validation is reported as permanent; other reload failures are
// left to the consumer's retries.
func HandleRebuild(engine Reloader, src indexer.DocumentSource) kafka.MessageHandler {
	logger := slog.Default().With("component", "rebuild-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[RebuildRequest](value)
		if err != nil {
			logger.Error("failed to decode rebuild request",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if req.Generation != "" && req.Generation == engine.Current().Generation() {
			logger.Debug("already serving requested generation", "generation", req.Generation)
			return nil
		}
		logger.Info("rebuild requested",
			"reason", req.Reason,
			"requested_by", req.RequestedBy,
			"generation", req.Generation,
		)
		ix, err := engine.Reload(ctx, src)
		if apperrors.Is(err, apperrors.ErrInvalidDocument) {
			return resilience.Permanent(fmt.Errorf("reloading index: %w", err))
		}
		if err != nil {
			return fmt.Errorf("reloading index: %w", err)
		}
		logger.Info("index reloaded from rebuild request",
			"generation", ix.Generation(),
			"docs", ix.Len(),
		)
		return nil
	}
}

// Announce publishes a rebuild request naming ix's generation so running
// searchers pick up the new corpus.
func Announce(ctx context.Context, pub kafka.Publisher, ix *index.Index, requestedBy string) error {
	req := RebuildRequest{
		Reason:      "snapshot built",
		RequestedBy: requestedBy,
		Generation:  ix.Generation(),
		RequestedAt: time.Now().UTC(),
	}
	if err := pub.Publish(ctx, kafka.Event{Key: ix.Generation(), Value: req}); err != nil {
		return fmt.Errorf("announcing generation %s: %w", ix.Generation(), err)
	}
	return nil
}
