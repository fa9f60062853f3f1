// Package scraper drives batched history fetches across the account fleet:
// the batcher partitions due channels over leased accounts, per-account
// workers fetch under the governor's pacing, the joiner grows the fleet's
// channel membership under the daily quota, and the watchdog reaps runs that
// died mid-flight.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/observability"
	"github.com/fairyhunter13/jobscout/internal/service/accountpool"
	"github.com/fairyhunter13/jobscout/internal/service/governor"
)

// Worker scrapes an account's slice of channels within one run.
type Worker struct {
	pool     *accountpool.Pool
	gov      *governor.Governor
	client   domain.PlatformClient
	sessions domain.SessionStore
	store    domain.RawMessageStore
	channels domain.ChannelRepository
	queue    domain.ProcessQueue

	firstFetchCap  int
	incrementalCap int
	callTimeout    time.Duration
}

// NewWorker wires a Worker.
func NewWorker(
	pool *accountpool.Pool,
	gov *governor.Governor,
	client domain.PlatformClient,
	sessions domain.SessionStore,
	store domain.RawMessageStore,
	channels domain.ChannelRepository,
	queue domain.ProcessQueue,
	firstFetchCap, incrementalCap int,
	callTimeout time.Duration,
) *Worker {
	return &Worker{
		pool:           pool,
		gov:            gov,
		client:         client,
		sessions:       sessions,
		store:          store,
		channels:       channels,
		queue:          queue,
		firstFetchCap:  firstFetchCap,
		incrementalCap: incrementalCap,
		callTimeout:    callTimeout,
	}
}

// AccountReport aggregates one account's share of a run.
type AccountReport struct {
	AccountID       int
	ChannelsScraped int
	MessagesFetched int
	Errors          []domain.RunError
}

// RunAccount scrapes the given channels as one account. The account lease is
// held for the duration; ErrLeaseHeld means another worker owns the account
// and the whole slice is skipped for this run.
func (w *Worker) RunAccount(ctx context.Context, accountID int, channels []domain.Channel, correlationID string) (AccountReport, error) {
	report := AccountReport{AccountID: accountID}

	lease, err := w.pool.Acquire(ctx, accountID)
	if err != nil {
		return report, fmt.Errorf("op=scraper.run_account account=%d: %w", accountID, err)
	}
	defer lease.Release(ctx)

	blob, err := w.sessions.Load(ctx, accountID)
	if err != nil {
		return report, fmt.Errorf("op=scraper.run_account account=%d: load session: %w", accountID, err)
	}
	sess, err := w.client.Connect(ctx, accountID, blob)
	if err != nil {
		if errors.Is(err, domain.ErrAuthKeyInvalid) {
			_ = w.pool.ReportError(ctx, accountID, "auth")
			return report, fmt.Errorf("op=scraper.run_account account=%d: %w", accountID, domain.ErrAccountBanned)
		}
		_ = w.pool.ReportError(ctx, accountID, "connect")
		return report, fmt.Errorf("op=scraper.run_account account=%d: connect: %w", accountID, err)
	}
	defer func() {
		if b := sess.Export(); len(b) > 0 {
			if err := w.sessions.Save(ctx, accountID, b); err != nil {
				slog.Warn("session save failed", slog.Int("account", accountID), slog.Any("error", err))
			}
		}
		_ = sess.Close()
	}()

	for _, ch := range channels {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		fetched, err := w.scrapeChannel(ctx, sess, accountID, ch, correlationID)
		if err != nil && isFloodWait(err) && !errors.Is(err, domain.ErrRateLimited) {
			// Within-ceiling flood wait: the governor scheduled the pause, one
			// retry rides it out.
			observability.FloodWaitsTotal.WithLabelValues("within_ceiling").Inc()
			fetched, err = w.scrapeChannel(ctx, sess, accountID, ch, correlationID)
		}
		if err != nil {
			kind := w.classifyChannelError(ctx, accountID, ch.Handle, err)
			report.Errors = append(report.Errors, domain.RunError{
				Code:    kind,
				Channel: ch.Handle,
				Account: accountID,
				Message: err.Error(),
			})
			if kind == "auth" {
				// The account is gone; abandon the rest of the slice.
				return report, fmt.Errorf("op=scraper.run_account account=%d: %w", accountID, domain.ErrAccountBanned)
			}
			continue
		}
		report.ChannelsScraped++
		report.MessagesFetched += fetched
		_ = w.pool.ReportSuccess(ctx, accountID)
	}
	return report, nil
}

// scrapeChannel fetches one channel's new messages, stores them, enqueues
// process tasks and advances the cursor. The first scrape of a channel is
// capped low so a deep backlog cannot draw platform attention.
func (w *Worker) scrapeChannel(ctx context.Context, sess domain.PlatformSession, accountID int, ch domain.Channel, correlationID string) (int, error) {
	release, err := w.gov.Acquire(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer release()
	if err := w.gov.Wait(ctx, accountID); err != nil {
		return 0, err
	}

	limit := w.incrementalCap
	if ch.LastSeenID == 0 {
		limit = w.firstFetchCap
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, w.callTimeout)
	msgs, err := sess.FetchHistory(cctx, ch.Handle, ch.LastSeenID, limit)
	cancel()
	observability.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, w.gov.HandleFloodWait(accountID, err)
	}

	now := time.Now().UTC()
	var newLastSeen int64
	stored := 0
	for _, m := range msgs {
		if m.ID > newLastSeen {
			newLastSeen = m.ID
		}
		// Media-only posts carry no text; the cursor still moves past them.
		if m.Text == "" {
			continue
		}
		created, err := w.store.Upsert(ctx, domain.RawMessage{
			PlatformMessageID: m.ID,
			ChannelHandle:     ch.Handle,
			Text:              m.Text,
			SenderID:          m.SenderID,
			AuthoredAt:        m.AuthoredAt,
			FetchedAt:         now,
			FetchedByAccount:  accountID,
			URLs:              m.URLs,
		})
		if err != nil {
			return stored, fmt.Errorf("op=scraper.scrape_channel channel=%s: store: %w", ch.Handle, err)
		}
		if !created {
			continue
		}
		stored++
		raw, err := w.store.GetByKey(ctx, m.ID, ch.Handle)
		if err != nil {
			return stored, fmt.Errorf("op=scraper.scrape_channel channel=%s: reload: %w", ch.Handle, err)
		}
		if err := w.queue.EnqueueProcess(ctx, domain.ProcessTask{
			RawMessageID:      raw.ID,
			ChannelHandle:     ch.Handle,
			PlatformMessageID: m.ID,
			CorrelationID:     correlationID,
		}); err != nil {
			// The pending sweep re-enqueues unprocessed messages later.
			slog.Warn("enqueue failed, message left pending",
				slog.String("channel", ch.Handle),
				slog.Int64("platform_message_id", m.ID),
				slog.Any("error", err))
		}
	}

	if newLastSeen > 0 || len(msgs) > 0 {
		if err := w.channels.MarkScraped(ctx, ch.Handle, accountID, newLastSeen, domain.ScrapeDelta{
			MessagesScraped: int64(len(msgs)),
		}); err != nil {
			return stored, fmt.Errorf("op=scraper.scrape_channel channel=%s: mark scraped: %w", ch.Handle, err)
		}
	} else {
		// Empty fetch still moves last_scraped_at so rotation stays fair.
		if err := w.channels.MarkScraped(ctx, ch.Handle, accountID, ch.LastSeenID, domain.ScrapeDelta{}); err != nil {
			return stored, fmt.Errorf("op=scraper.scrape_channel channel=%s: mark scraped: %w", ch.Handle, err)
		}
	}

	observability.MessagesFetchedTotal.WithLabelValues(ch.Handle).Add(float64(len(msgs)))
	observability.ChannelsScrapedTotal.WithLabelValues("ok").Inc()
	slog.Info("channel scraped",
		slog.String("channel", ch.Handle),
		slog.Int("account", accountID),
		slog.Int("fetched", len(msgs)),
		slog.Int("stored", stored),
		slog.Int64("cursor", max64(newLastSeen, ch.LastSeenID)))
	return len(msgs), nil
}

// classifyChannelError applies the per-channel error policy and returns the
// run-error code.
func (w *Worker) classifyChannelError(ctx context.Context, accountID int, handle string, err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		// Over-ceiling flood wait: skip the channel and charge the account one
		// error; the next channel proceeds without sleeping it off.
		_ = w.pool.ReportError(ctx, accountID, "flood")
		observability.FloodWaitsTotal.WithLabelValues("over_ceiling").Inc()
		observability.ChannelsScrapedTotal.WithLabelValues("flood_wait").Inc()
		slog.Warn("flood wait over ceiling, channel skipped",
			slog.String("channel", handle), slog.Int("account", accountID))
		return "flood_wait"
	case isFloodWait(err):
		observability.FloodWaitsTotal.WithLabelValues("within_ceiling").Inc()
		observability.ChannelsScrapedTotal.WithLabelValues("flood_wait").Inc()
		return "flood_wait"
	case errors.Is(err, domain.ErrChannelPrivate):
		w.deactivate(ctx, handle, "channel became private")
		return "channel_private"
	case errors.Is(err, domain.ErrUsernameInvalid):
		w.deactivate(ctx, handle, "username no longer resolves")
		return "username_invalid"
	case errors.Is(err, domain.ErrAuthKeyInvalid), errors.Is(err, domain.ErrAccountBanned):
		_ = w.pool.ReportError(ctx, accountID, "auth")
		observability.ChannelsScrapedTotal.WithLabelValues("auth_error").Inc()
		return "auth"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		_ = w.pool.ReportError(ctx, accountID, "timeout")
		observability.ChannelsScrapedTotal.WithLabelValues("timeout").Inc()
		return "timeout"
	default:
		_ = w.pool.ReportError(ctx, accountID, "fetch")
		observability.ChannelsScrapedTotal.WithLabelValues("error").Inc()
		return "fetch_error"
	}
}

func (w *Worker) deactivate(ctx context.Context, handle, reason string) {
	if err := w.channels.SetStatus(ctx, handle, domain.ChannelDeactivated, reason); err != nil {
		slog.Error("channel deactivation failed", slog.String("channel", handle), slog.Any("error", err))
		return
	}
	observability.ChannelStatusTransitions.WithLabelValues(string(domain.ChannelDeactivated)).Inc()
	observability.ChannelsScrapedTotal.WithLabelValues("deactivated").Inc()
	slog.Warn("channel deactivated", slog.String("channel", handle), slog.String("reason", reason))
}

func isFloodWait(err error) bool {
	_, ok := domain.AsFloodWait(err)
	return ok
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
