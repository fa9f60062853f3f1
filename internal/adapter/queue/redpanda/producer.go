// Package redpanda is the Redpanda/Kafka hand-off between the scraper and
// the processor. The producer publishes one record per stored raw message,
// keyed by channel handle so a channel's messages stay ordered within a
// partition; the consumer runs the processing pipeline with a bounded worker
// pool and at-least-once delivery (the raw-message store absorbs replays).
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// TopicRawMessages carries process tasks from scraper to processor.
const TopicRawMessages = "raw-messages"

// Producer publishes process tasks. Implements domain.ProcessQueue.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the brokers and ensures the topic exists.
func NewProducer(brokers []string) (*Producer, error) {
	return NewProducerWithTopic(brokers, TopicRawMessages, 8)
}

// NewProducerWithTopic lets tests isolate on a unique topic.
func NewProducerWithTopic(brokers []string, topic string, partitions int32) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(
		kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider())),
	))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=queue.producer: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, topic, partitions, 1); err != nil {
		slog.Warn("topic ensure failed", slog.String("topic", topic), slog.Any("error", err))
	}

	slog.Info("redpanda producer ready", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Producer{client: client, topic: topic}, nil
}

// EnqueueProcess publishes one task. Keying on the channel handle keeps a
// channel's messages in order on one partition.
func (p *Producer) EnqueueProcess(ctx domain.Context, task domain.ProcessTask) error {
	b, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("op=queue.enqueue: marshal: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(task.ChannelHandle),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "raw_message_id", Value: []byte(task.RawMessageID)},
			{Key: "correlation_id", Value: []byte(task.CorrelationID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("op=queue.enqueue channel=%s: %w", task.ChannelHandle, err)
	}
	slog.Debug("process task enqueued",
		slog.String("raw_message_id", task.RawMessageID),
		slog.String("channel", task.ChannelHandle))
	return nil
}

// Ping verifies broker connectivity; used by readiness probes.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and closes the underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		_ = p.client.Flush(context.Background())
		p.client.Close()
	}
	return nil
}
