// Package accountpool manages the account fleet: exclusive time-bounded
// leases, health transitions and the daily join quota.
//
// A lease is a Redis SET NX PX key, so a crashed worker can never strand an
// account past the TTL, and no two workers drive the same account
// concurrently across processes.
package accountpool

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/observability"
)

// Lease is a held account lease. Release is idempotent and only removes the
// key if this holder still owns it.
type Lease struct {
	AccountID int
	token     string
	pool      *Pool
}

// Pool coordinates lease, health and join-quota operations over the account
// repository and Redis.
type Pool struct {
	accounts domain.AccountRepository
	channels domain.ChannelRepository
	redis    *redis.Client
	leaseTTL time.Duration
	maxJoins int
	loc      *time.Location
}

// New constructs a Pool. loc fixes the day boundary for join quotas.
func New(accounts domain.AccountRepository, channels domain.ChannelRepository, rdb *redis.Client, leaseTTL time.Duration, maxJoinsPerDay int, loc *time.Location) *Pool {
	if loc == nil {
		loc = time.UTC
	}
	return &Pool{
		accounts: accounts,
		channels: channels,
		redis:    rdb,
		leaseTTL: leaseTTL,
		maxJoins: maxJoinsPerDay,
		loc:      loc,
	}
}

func leaseKey(accountID int) string { return fmt.Sprintf("accounts:lease:%d", accountID) }

// Acquire takes the exclusive lease on an account. Fails with ErrLeaseHeld
// when another worker holds it and ErrAccountBanned for banned/inactive
// accounts.
func (p *Pool) Acquire(ctx domain.Context, accountID int) (*Lease, error) {
	a, err := p.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.IsBanned || !a.IsActive {
		return nil, fmt.Errorf("op=pool.acquire account=%d: %w", accountID, domain.ErrAccountBanned)
	}
	token := fmt.Sprintf("%d-%d", time.Now().UnixNano(), accountID)
	ok, err := p.redis.SetNX(ctx, leaseKey(accountID), token, p.leaseTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("op=pool.acquire account=%d: %w", accountID, err)
	}
	if !ok {
		return nil, fmt.Errorf("op=pool.acquire account=%d: %w", accountID, domain.ErrLeaseHeld)
	}
	return &Lease{AccountID: accountID, token: token, pool: p}, nil
}

// releaseScript deletes the lease only when the caller still owns it, so a
// lease that expired and was re-acquired elsewhere is never clobbered.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release gives the lease back.
func (l *Lease) Release(ctx domain.Context) {
	if l == nil || l.pool == nil {
		return
	}
	if err := releaseScript.Run(ctx, l.pool.redis, []string{leaseKey(l.AccountID)}, l.token).Err(); err != nil && err != redis.Nil {
		slog.Warn("lease release failed", slog.Int("account", l.AccountID), slog.Any("error", err))
	}
}

// ReportSuccess clears the error streak and restores degraded accounts.
func (p *Pool) ReportSuccess(ctx domain.Context, accountID int) error {
	return p.accounts.ReportSuccess(ctx, accountID)
}

// ReportError records one error against the account and applies the health
// table: the third consecutive error degrades, an explicit ban signal bans
// and parks the account's channels in probation.
func (p *Pool) ReportError(ctx domain.Context, accountID int, kind string) error {
	if kind == "auth" {
		return p.Ban(ctx, accountID)
	}
	health, err := p.accounts.ReportError(ctx, accountID, kind)
	if err != nil {
		return err
	}
	if health == domain.AccountDegraded {
		observability.AccountHealthTransitions.WithLabelValues(string(domain.AccountDegraded)).Inc()
		slog.Warn("account degraded", slog.Int("account", accountID), slog.String("kind", kind))
	}
	return nil
}

// Ban applies the terminal ban: account deactivated, owned channels moved to
// probation until reassignment.
func (p *Pool) Ban(ctx domain.Context, accountID int) error {
	if err := p.accounts.MarkBanned(ctx, accountID); err != nil {
		return err
	}
	observability.AccountHealthTransitions.WithLabelValues(string(domain.AccountBanned)).Inc()
	n, err := p.channels.MoveToProbationByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	slog.Error("account banned", slog.Int("account", accountID), slog.Int("channels_parked", n))
	return nil
}

// Day formats now's date in the pool's timezone; join quotas reset on this
// boundary.
func (p *Pool) Day(now time.Time) string {
	return now.In(p.loc).Format("2006-01-02")
}

// CanJoinToday reports whether the account has join quota left today.
func (p *Pool) CanJoinToday(ctx domain.Context, accountID int) (bool, error) {
	a, err := p.accounts.Get(ctx, accountID)
	if err != nil {
		return false, err
	}
	if a.IsBanned || !a.IsActive {
		return false, nil
	}
	if a.JoinDay != p.Day(time.Now()) {
		return true, nil
	}
	return a.DailyJoins < p.maxJoins, nil
}

// RecordJoin consumes one unit of today's join quota and reports whether the
// account was still under it. The counter update is a single atomic
// statement in the repository.
func (p *Pool) RecordJoin(ctx domain.Context, accountID int) (bool, error) {
	n, err := p.accounts.RecordJoin(ctx, accountID, p.Day(time.Now()))
	if err != nil {
		return false, err
	}
	return n <= p.maxJoins, nil
}

// Healthy returns active accounts ordered by id, for the batcher to spread
// work across.
func (p *Pool) Healthy(ctx domain.Context) ([]domain.Account, error) {
	return p.accounts.List(ctx, true)
}
