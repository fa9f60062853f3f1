package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// Handler processes one dequeued task. Returning an error leaves the record
// uncommitted in spirit only: delivery is at-least-once and the handler must
// be idempotent (processed raw messages are skipped on replay).
type Handler func(ctx context.Context, task domain.ProcessTask) error

// Consumer pulls process tasks and fans them out to a bounded worker pool.
type Consumer struct {
	client   *kgo.Client
	handler  Handler
	groupID  string
	topic    string
	workers  int
	tasks    chan *kgo.Record
	shutdown chan struct{}
}

// NewConsumer joins the consumer group on the raw-messages topic.
func NewConsumer(brokers []string, groupID string, workers int, h Handler) (*Consumer, error) {
	return NewConsumerWithTopic(brokers, groupID, TopicRawMessages, workers, h)
}

// NewConsumerWithTopic lets tests isolate on a unique topic.
func NewConsumerWithTopic(brokers []string, groupID, topic string, workers int, h Handler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if workers <= 0 {
		workers = 4
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(
		kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider())),
	))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("op=queue.consumer: %w", err)
	}

	slog.Info("redpanda consumer ready",
		slog.String("group_id", groupID),
		slog.String("topic", topic),
		slog.Int("workers", workers))
	return &Consumer{
		client:   client,
		handler:  h,
		groupID:  groupID,
		topic:    topic,
		workers:  workers,
		tasks:    make(chan *kgo.Record, workers*2),
		shutdown: make(chan struct{}),
	}, nil
}

// Start runs the poll loop and worker pool until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	for i := 0; i < c.workers; i++ {
		go c.worker(ctx, i)
	}
	go c.poll(ctx)

	<-ctx.Done()
	close(c.shutdown)
	return ctx.Err()
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if fe.Err == context.Canceled {
					return
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
			}
			time.Sleep(2 * time.Second)
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			select {
			case c.tasks <- record:
			case <-ctx.Done():
			}
		})
	}
}

func (c *Consumer) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case record := <-c.tasks:
			if record == nil {
				return
			}
			if err := c.processRecord(ctx, record); err != nil {
				slog.Error("process task failed",
					slog.Int("worker", id),
					slog.Int64("offset", record.Offset),
					slog.Any("error", err))
				continue
			}
			c.client.MarkCommitRecords(record)
		}
	}
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) error {
	tracer := otel.Tracer("queue.consumer")
	ctx, span := tracer.Start(ctx, "ProcessRawMessage")
	defer span.End()

	var task domain.ProcessTask
	if err := json.Unmarshal(record.Value, &task); err != nil {
		// Poison record: log and drop, the offset still advances.
		slog.Error("unmarshal task failed, dropping record",
			slog.Int64("offset", record.Offset),
			slog.Any("error", err))
		c.client.MarkCommitRecords(record)
		return nil
	}

	lg := slog.With(
		slog.String("raw_message_id", task.RawMessageID),
		slog.String("channel", task.ChannelHandle),
	)
	if task.CorrelationID != "" {
		lg = lg.With(slog.String("correlation_id", task.CorrelationID))
	}

	if err := c.handler(ctx, task); err != nil {
		return err
	}
	lg.Debug("task processed")
	return nil
}

// Close leaves the consumer group and releases the client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
