package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"bursar/internal/platform/metrics"
)

// WorkerConfig tunes the outbox drain loop.
type WorkerConfig struct {
	Brokers   []string
	Topic     string
	Interval  time.Duration
	BatchSize int
}

// Worker drains the outbox to Kafka. Events are keyed by entity id so one
// record's trail lands in order on a single partition. Publishing is
// at-least-once: a crash between produce and mark re-ships the batch, and
// event ids let consumers deduplicate.
type Worker struct {
	store     Store
	client    *kgo.Client
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewWorker(store Store, cfg WorkerConfig, logger *slog.Logger, m *metrics.Metrics) (*Worker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Worker{
		store:     store,
		client:    client,
		topic:     cfg.Topic,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		metrics:   m,
	}, nil
}

// EnsureTopic creates the audit topic if the broker does not have it yet.
func (w *Worker) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(w.client)
	_, err := adm.CreateTopic(ctx, 1, 1, nil, w.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", w.topic, err)
	}
	return nil
}

// Run drains the outbox on a fixed interval until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.client.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.Error("drain audit outbox", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	events, err := w.store.NextBatch(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal audit event %s: %w", ev.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: w.topic,
			Key:   []byte(ev.Entity + "/" + ev.EntityID),
			Value: value,
		})
		ids = append(ids, ev.ID)
	}

	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		w.metrics.ObserveAuditPublish("error")
		return fmt.Errorf("produce audit batch: %w", err)
	}
	if err := w.store.MarkPublished(ctx, ids); err != nil {
		return err
	}
	for range events {
		w.metrics.ObserveAuditPublish("ok")
	}
	w.logger.Debug("audit batch shipped", "count", len(events))
	return nil
}
