package bulk

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/elastic"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/kafka"
)

// BulkClient is the subset of *elastic.Client used by ElasticSink.
type BulkClient interface {
	Bulk(ctx context.Context, index string, body []byte) (*elastic.Response, error)
}

// ElasticSink posts batches to the bulk endpoint of the batch's index.
type ElasticSink struct {
	client BulkClient
}

func NewElasticSink(client BulkClient) *ElasticSink {
	return &ElasticSink{client: client}
}

func (s *ElasticSink) Name() string { return "elasticsearch" }

// Flush fails with errors.ErrDelivery on a transport error, a non-2xx status
// or a bulk response that reports item errors.
func (s *ElasticSink) Flush(ctx context.Context, batch *Batch) error {
	if batch.Index == "" {
		return fmt.Errorf("%w: no index set for %s", apperrors.ErrDelivery, batch.Source)
	}
	res, err := s.client.Bulk(ctx, batch.Index, batch.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDelivery, err)
	}
	if res.IsError() {
		return fmt.Errorf("%w: %s", apperrors.ErrDelivery, res)
	}
	result, err := elastic.ParseBulkResult(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDelivery, err)
	}
	if result.Errors {
		n, first := result.Failed()
		return fmt.Errorf("%w: %d of %d items failed, first error: %s", apperrors.ErrDelivery, n, batch.Len(), first)
	}
	return nil
}

// StdoutSink writes batch bodies to a writer, normally standard output.
// Writes from concurrent loaders never interleave within a batch.
type StdoutSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Flush(_ context.Context, batch *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(batch.Body); err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}
	return nil
}

// Publisher is the subset of *kafka.Producer used by KafkaSink.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaSink publishes one message per document, keyed by index name so a
// partition receives an index's documents in order.
type KafkaSink struct {
	publisher Publisher
}

func NewKafkaSink(p Publisher) *KafkaSink {
	return &KafkaSink{publisher: p}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Flush(ctx context.Context, batch *Batch) error {
	docs := batch.Documents()
	events := make([]kafka.Event, len(docs))
	for i, d := range docs {
		events[i] = kafka.Event{Key: batch.Index, Value: d}
	}
	if err := s.publisher.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDelivery, err)
	}
	return nil
}
