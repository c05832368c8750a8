// Package notify announces indexed documents to downstream consumers such as
// search caches that need invalidating.
package notify

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/search-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaNotifier publishes one IndexedEvent per document, keyed by document
// ID so all events of a document land on the same partition.
type KafkaNotifier struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewKafkaNotifier(p Publisher) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: p,
		logger:    logger.WithComponent("notifier"),
	}
}

func (n *KafkaNotifier) DocumentIndexed(ctx context.Context, event index.IndexedEvent) error {
	err := n.publisher.Publish(ctx, kafka.Event{
		Key:   strconv.FormatInt(event.DocumentID, 10),
		Value: event,
	})
	if err != nil {
		return err
	}
	n.logger.Debug("index-complete event published", "doc_id", event.DocumentID)
	return nil
}
