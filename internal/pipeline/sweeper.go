package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/observability"
)

// Sweeper re-enqueues unprocessed raw messages. It backstops lost enqueues
// on the scraper side: the document store is the source of truth, the queue
// is only a hint, so a dropped task surfaces here on the next sweep.
type Sweeper struct {
	store domain.RawMessageStore
	queue domain.ProcessQueue
	limit int
}

func NewSweeper(store domain.RawMessageStore, queue domain.ProcessQueue, limit int) *Sweeper {
	if limit <= 0 {
		limit = 500
	}
	return &Sweeper{store: store, queue: queue, limit: limit}
}

// Sweep publishes a task for each pending message, oldest first, and
// refreshes the pending gauge. Re-enqueueing an in-flight message is
// harmless: the processor skips processed rows.
func (s *Sweeper) Sweep(ctx domain.Context) (int, error) {
	pending, err := s.store.ListPending(ctx, s.limit)
	if err != nil {
		return 0, fmt.Errorf("op=pipeline.list_pending: %w", err)
	}

	enqueued := 0
	for _, m := range pending {
		task := domain.ProcessTask{
			RawMessageID:      m.ID,
			ChannelHandle:     m.ChannelHandle,
			PlatformMessageID: m.PlatformMessageID,
			CorrelationID:     "sweep",
		}
		if err := s.queue.EnqueueProcess(ctx, task); err != nil {
			slog.Warn("pending re-enqueue failed",
				slog.String("raw_message_id", m.ID), slog.Any("error", err))
			continue
		}
		enqueued++
	}

	if total, err := s.store.CountPending(ctx); err == nil {
		observability.PendingMessages.Set(float64(total))
	}
	if enqueued > 0 {
		slog.Info("pending sweep re-enqueued messages", slog.Int("count", enqueued))
	}
	return enqueued, nil
}
