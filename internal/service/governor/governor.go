// Package governor enforces per-account pacing for outbound platform calls:
// a strict serial section per account, a floor inter-operation delay, a
// flood-wait schedule with a hard ceiling, and an optional Redis token
// bucket that spans processes.
package governor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// OpRecord is one diagnostic entry in an account's recent-operation log.
type OpRecord struct {
	At      time.Time
	Kind    string // wait, penalty
	Waited  time.Duration
	Penalty time.Duration
}

const opLogSize = 32

type accountState struct {
	serial      chan struct{} // capacity 1; holding the token is the serial section
	limiter     *rate.Limiter
	mu          sync.Mutex
	nextAllowed time.Time
	log         []OpRecord
}

func (a *accountState) record(r OpRecord) {
	a.log = append(a.log, r)
	if len(a.log) > opLogSize {
		a.log = a.log[len(a.log)-opLogSize:]
	}
}

// Governor paces all outbound platform calls.
type Governor struct {
	mu          sync.Mutex
	accounts    map[int]*accountState
	minInterval time.Duration
	ceiling     time.Duration
	bucket      *Bucket // optional cross-process budget; nil disables
}

// New constructs a Governor. minInterval is the floor delay between
// operations on one account; ceiling bounds how long a flood-wait may be
// honoured in-line.
func New(minInterval, ceiling time.Duration, bucket *Bucket) *Governor {
	if minInterval <= 0 {
		minInterval = 500 * time.Millisecond
	}
	return &Governor{
		accounts:    map[int]*accountState{},
		minInterval: minInterval,
		ceiling:     ceiling,
		bucket:      bucket,
	}
}

func (g *Governor) state(accountID int) *accountState {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.accounts[accountID]
	if !ok {
		st = &accountState{
			serial:  make(chan struct{}, 1),
			limiter: rate.NewLimiter(rate.Every(g.minInterval), 1),
		}
		g.accounts[accountID] = st
	}
	return st
}

// Ceiling returns the configured flood-wait ceiling.
func (g *Governor) Ceiling() time.Duration { return g.ceiling }

// Acquire enters the account's serial section. No two callers can hold it at
// once; the returned release func exits the section.
func (g *Governor) Acquire(ctx context.Context, accountID int) (func(), error) {
	st := g.state(accountID)
	select {
	case st.serial <- struct{}{}:
		return func() { <-st.serial }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until the per-account schedule permits the next outbound call:
// the floor delay, any pending flood-wait penalty, and the shared bucket (if
// configured). Cancellable through ctx.
func (g *Governor) Wait(ctx context.Context, accountID int) error {
	st := g.state(accountID)
	start := time.Now()

	st.mu.Lock()
	pause := time.Until(st.nextAllowed)
	st.mu.Unlock()
	if pause > 0 {
		if err := sleepCtx(ctx, pause); err != nil {
			return err
		}
	}

	if err := st.limiter.Wait(ctx); err != nil {
		return err
	}

	if g.bucket != nil {
		for {
			allowed, retryAfter, err := g.bucket.Allow(ctx, accountID)
			if err != nil {
				// Fail open on budget-store errors; local pacing still applies.
				slog.Warn("governor bucket error", slog.Int("account", accountID), slog.Any("error", err))
				break
			}
			if allowed {
				break
			}
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return err
			}
		}
	}

	st.mu.Lock()
	st.record(OpRecord{At: time.Now(), Kind: "wait", Waited: time.Since(start)})
	st.mu.Unlock()
	return nil
}

// Penalize applies a platform flood-wait directive. A wait within the ceiling
// is honoured in-line: later calls on the account block until it elapses. A
// wait over the ceiling is not worth sleeping through; it is recorded for
// diagnostics and reported with overCeiling=true so the caller can skip the
// channel and charge the account an error instead.
func (g *Governor) Penalize(accountID int, seconds int) (overCeiling bool) {
	d := time.Duration(seconds) * time.Second
	st := g.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.record(OpRecord{At: time.Now(), Kind: "penalty", Penalty: d})
	if g.ceiling > 0 && d > g.ceiling {
		return true
	}
	next := time.Now().Add(d)
	if next.After(st.nextAllowed) {
		st.nextAllowed = next
	}
	return false
}

// Recent returns a copy of the account's diagnostic operation log.
func (g *Governor) Recent(accountID int) []OpRecord {
	st := g.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]OpRecord, len(st.log))
	copy(out, st.log)
	return out
}

// HandleFloodWait folds a platform error into the schedule: flood waits are
// penalized and classified, everything else passes through.
func (g *Governor) HandleFloodWait(accountID int, err error) error {
	fw, ok := domain.AsFloodWait(err)
	if !ok {
		return err
	}
	if g.Penalize(accountID, fw.Seconds) {
		return fmt.Errorf("flood wait %ds exceeds ceiling %s: %w", fw.Seconds, g.ceiling, domain.ErrRateLimited)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
