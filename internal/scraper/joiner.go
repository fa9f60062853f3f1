package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/observability"
	"github.com/fairyhunter13/jobscout/internal/service/accountpool"
	"github.com/fairyhunter13/jobscout/internal/service/governor"
)

// Joiner grows channel membership. Each join consumes one unit of an
// account's daily quota; the joined channel is pinned to the joining account.
type Joiner struct {
	pool     *accountpool.Pool
	gov      *governor.Governor
	client   domain.PlatformClient
	sessions domain.SessionStore
	channels domain.ChannelRepository
}

// NewJoiner wires a Joiner.
func NewJoiner(pool *accountpool.Pool, gov *governor.Governor, client domain.PlatformClient, sessions domain.SessionStore, channels domain.ChannelRepository) *Joiner {
	return &Joiner{pool: pool, gov: gov, client: client, sessions: sessions, channels: channels}
}

// JoinPending joins up to limit candidate channels, spreading joins across
// accounts that still have quota today. Returns how many channels were
// joined.
func (j *Joiner) JoinPending(ctx context.Context, limit int) (int, error) {
	candidates, err := j.channels.JoinCandidates(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("op=scraper.join: candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	accounts, err := j.pool.Healthy(ctx)
	if err != nil {
		return 0, fmt.Errorf("op=scraper.join: accounts: %w", err)
	}

	joined := 0
	idx := 0
	for _, a := range accounts {
		if idx >= len(candidates) {
			break
		}
		n, err := j.joinAsAccount(ctx, a.ID, candidates[idx:])
		joined += n
		idx += n
		if err != nil {
			slog.Warn("join batch ended for account",
				slog.Int("account", a.ID), slog.Int("joined", n), slog.Any("error", err))
		}
	}
	return joined, nil
}

// joinAsAccount joins channels as one account until its quota runs out, a
// terminal account error occurs, or the candidate list is exhausted.
func (j *Joiner) joinAsAccount(ctx context.Context, accountID int, candidates []domain.Channel) (int, error) {
	ok, err := j.pool.CanJoinToday(ctx, accountID)
	if err != nil || !ok {
		return 0, err
	}

	lease, err := j.pool.Acquire(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrLeaseHeld) {
			return 0, nil
		}
		return 0, err
	}
	defer lease.Release(ctx)

	blob, err := j.sessions.Load(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	sess, err := j.client.Connect(ctx, accountID, blob)
	if err != nil {
		if errors.Is(err, domain.ErrAuthKeyInvalid) {
			_ = j.pool.ReportError(ctx, accountID, "auth")
		}
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = sess.Close() }()

	joined := 0
	for _, ch := range candidates {
		ok, err := j.pool.CanJoinToday(ctx, accountID)
		if err != nil || !ok {
			return joined, err
		}
		if err := j.joinOne(ctx, sess, accountID, ch); err != nil {
			if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrAccountBanned) {
				return joined, err
			}
			continue
		}
		joined++
	}
	return joined, nil
}

func (j *Joiner) joinOne(ctx context.Context, sess domain.PlatformSession, accountID int, ch domain.Channel) error {
	release, err := j.gov.Acquire(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()
	if err := j.gov.Wait(ctx, accountID); err != nil {
		return err
	}

	info, err := sess.JoinChannel(ctx, ch.Handle)
	if err != nil {
		err = j.gov.HandleFloodWait(accountID, err)
		switch {
		case errors.Is(err, domain.ErrChannelPrivate):
			j.deactivate(ctx, ch.Handle, "join refused: channel private")
		case errors.Is(err, domain.ErrUsernameInvalid):
			j.deactivate(ctx, ch.Handle, "join refused: username invalid")
		case errors.Is(err, domain.ErrAuthKeyInvalid):
			_ = j.pool.ReportError(ctx, accountID, "auth")
			return fmt.Errorf("join %s: %w", ch.Handle, domain.ErrAccountBanned)
		}
		return fmt.Errorf("join %s: %w", ch.Handle, err)
	}

	ch.IsMember = true
	ch.AccountID = accountID
	if info.Title != "" {
		ch.Title = info.Title
	}
	if err := j.channels.Upsert(ctx, ch); err != nil {
		return fmt.Errorf("join %s: upsert: %w", ch.Handle, err)
	}
	if err := j.channels.AssignAccount(ctx, ch.Handle, accountID); err != nil {
		return fmt.Errorf("join %s: assign: %w", ch.Handle, err)
	}
	if _, err := j.pool.RecordJoin(ctx, accountID); err != nil {
		return fmt.Errorf("join %s: quota: %w", ch.Handle, err)
	}
	slog.Info("channel joined", slog.String("channel", ch.Handle), slog.Int("account", accountID))
	return nil
}

func (j *Joiner) deactivate(ctx context.Context, handle, reason string) {
	if err := j.channels.SetStatus(ctx, handle, domain.ChannelDeactivated, reason); err != nil {
		slog.Error("channel deactivation failed", slog.String("channel", handle), slog.Any("error", err))
		return
	}
	observability.ChannelStatusTransitions.WithLabelValues(string(domain.ChannelDeactivated)).Inc()
}
