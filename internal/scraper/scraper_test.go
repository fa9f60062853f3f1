package scraper_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/jobscout/internal/adapter/platform/fake"
	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/scraper"
	"github.com/fairyhunter13/jobscout/internal/service/accountpool"
	"github.com/fairyhunter13/jobscout/internal/service/governor"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[int]domain.Account
}

func newMemAccounts(ids ...int) *memAccounts {
	m := map[int]domain.Account{}
	for _, id := range ids {
		m[id] = domain.Account{ID: id, IsActive: true, Health: domain.AccountHealthy}
	}
	return &memAccounts{accounts: m}
}

func (f *memAccounts) List(_ domain.Context, onlyActive bool) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if onlyActive && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *memAccounts) Get(_ domain.Context, id int) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *memAccounts) ReportSuccess(_ domain.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	a.ConsecutiveErrors = 0
	if a.Health == domain.AccountDegraded {
		a.Health = domain.AccountHealthy
	}
	f.accounts[id] = a
	return nil
}

func (f *memAccounts) ReportError(_ domain.Context, id int, _ string) (domain.AccountHealth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	a.ConsecutiveErrors++
	if a.Health == domain.AccountHealthy && a.ConsecutiveErrors >= 3 {
		a.Health = domain.AccountDegraded
	}
	f.accounts[id] = a
	return a.Health, nil
}

func (f *memAccounts) MarkBanned(_ domain.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	a.IsBanned = true
	a.IsActive = false
	a.Health = domain.AccountBanned
	f.accounts[id] = a
	return nil
}

func (f *memAccounts) RecordJoin(_ domain.Context, id int, day string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	if a.JoinDay != day {
		a.JoinDay = day
		a.DailyJoins = 0
	}
	a.DailyJoins++
	f.accounts[id] = a
	return a.DailyJoins, nil
}

type memChannels struct {
	mu       sync.Mutex
	channels map[string]domain.Channel
}

func newMemChannels(chs ...domain.Channel) *memChannels {
	m := map[string]domain.Channel{}
	for _, c := range chs {
		if c.Status == "" {
			c.Status = domain.ChannelActive
		}
		m[c.Handle] = c
	}
	return &memChannels{channels: m}
}

func (f *memChannels) Active(_ domain.Context) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Channel
	for _, c := range f.channels {
		if c.Status == domain.ChannelActive && c.IsMember {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *memChannels) Get(_ domain.Context, handle string) (domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.channels[handle]
	if !ok {
		return domain.Channel{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *memChannels) Upsert(_ domain.Context, c domain.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[c.Handle] = c
	return nil
}

func (f *memChannels) AssignAccount(_ domain.Context, handle string, accountID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.channels[handle]
	if c.AccountID == 0 {
		c.AccountID = accountID
	}
	f.channels[handle] = c
	return nil
}

func (f *memChannels) MarkScraped(_ domain.Context, handle string, accountID int, newLastSeen int64, d domain.ScrapeDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.channels[handle]
	if newLastSeen > c.LastSeenID {
		c.LastSeenID = newLastSeen
	}
	c.LastScrapedAt = time.Now()
	c.MessagesScraped += d.MessagesScraped
	if c.AccountID == 0 {
		c.AccountID = accountID
	}
	f.channels[handle] = c
	return nil
}

func (f *memChannels) SetStatus(_ domain.Context, handle string, st domain.ChannelStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.channels[handle]
	c.Status = st
	c.DeactivatedReason = reason
	f.channels[handle] = c
	return nil
}

func (f *memChannels) MoveToProbationByAccount(_ domain.Context, accountID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for h, c := range f.channels {
		if c.AccountID == accountID && c.Status == domain.ChannelActive {
			c.Status = domain.ChannelProbation
			f.channels[h] = c
			n++
		}
	}
	return n, nil
}

func (f *memChannels) JoinCandidates(_ domain.Context, limit int) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Channel
	for _, c := range f.channels {
		if !c.IsMember && c.Status != domain.ChannelDeactivated {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *memChannels) ListScorable(_ domain.Context) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Channel
	for _, c := range f.channels {
		if c.Status != domain.ChannelDeactivated {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *memChannels) UpdateHealth(_ domain.Context, handle string, score float64, st domain.ChannelStatus, reason string, lowWindows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.channels[handle]
	c.HealthScore = score
	c.Status = st
	c.DeactivatedReason = reason
	c.LowHealthWindows = lowWindows
	f.channels[handle] = c
	return nil
}

type memStore struct {
	mu   sync.Mutex
	rows map[string]domain.RawMessage
}

func newMemStore() *memStore { return &memStore{rows: map[string]domain.RawMessage{}} }

func key(id int64, handle string) string { return fmt.Sprintf("%d|%s", id, handle) }

func (f *memStore) Upsert(_ domain.Context, m domain.RawMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(m.PlatformMessageID, m.ChannelHandle)
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	m.ID = k
	f.rows[k] = m
	return true, nil
}

func (f *memStore) Get(_ domain.Context, id string) (domain.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return domain.RawMessage{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *memStore) GetByKey(_ domain.Context, id int64, handle string) (domain.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[key(id, handle)]
	if !ok {
		return domain.RawMessage{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *memStore) ListPending(_ domain.Context, limit int) ([]domain.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RawMessage
	for _, m := range f.rows {
		if !m.Processed {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *memStore) CountPending(_ domain.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.rows {
		if !m.Processed {
			n++
		}
	}
	return n, nil
}

type memQueue struct {
	mu    sync.Mutex
	tasks []domain.ProcessTask
}

func (q *memQueue) EnqueueProcess(_ domain.Context, t domain.ProcessTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type memSessions struct{}

func (memSessions) Load(_ domain.Context, _ int) ([]byte, error) { return []byte("session"), nil }
func (memSessions) Save(_ domain.Context, _ int, _ []byte) error { return nil }

type memRuns struct {
	mu   sync.Mutex
	runs map[string]domain.ScrapeRun
}

func newMemRuns() *memRuns { return &memRuns{runs: map[string]domain.ScrapeRun{}} }

func (f *memRuns) Create(_ domain.Context, run domain.ScrapeRun) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = run
	return run.ID, nil
}

func (f *memRuns) Finish(_ domain.Context, id string, status domain.ScrapeRunStatus, c domain.RunCounters, errs []domain.RunError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.runs[id]
	run.Status = status
	run.Counters = c
	run.Errors = errs
	run.FinishedAt = time.Now()
	f.runs[id] = run
	return nil
}

func (f *memRuns) Get(_ domain.Context, id string) (domain.ScrapeRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return domain.ScrapeRun{}, domain.ErrNotFound
	}
	return run, nil
}

func (f *memRuns) ListRecent(_ domain.Context, limit int) ([]domain.ScrapeRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScrapeRun
	for _, r := range f.runs {
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *memRuns) SweepStale(_ domain.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, r := range f.runs {
		if r.Status == domain.RunRunning && r.StartedAt.Before(cutoff) {
			r.Status = domain.RunPartial
			f.runs[id] = r
			n++
		}
	}
	return n, nil
}

type harness struct {
	accounts *memAccounts
	channels *memChannels
	store    *memStore
	queue    *memQueue
	runs     *memRuns
	client   *fake.Client
	pool     *accountpool.Pool
	worker   *scraper.Worker
	batcher  *scraper.Batcher
}

func newHarness(t *testing.T, accounts *memAccounts, channels *memChannels) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pool := accountpool.New(accounts, channels, rdb, time.Minute, 5, time.UTC)
	gov := governor.New(time.Millisecond, 60*time.Second, nil)
	client := fake.New()
	store := newMemStore()
	queue := &memQueue{}
	runs := newMemRuns()
	worker := scraper.NewWorker(pool, gov, client, memSessions{}, store, channels, queue, 10, 100, 5*time.Second)
	batcher := scraper.NewBatcher(runs, channels, pool, worker, 50)
	return &harness{
		accounts: accounts, channels: channels, store: store,
		queue: queue, runs: runs, client: client,
		pool: pool, worker: worker, batcher: batcher,
	}
}

func seedMessages(c *fake.Client, handle string, from, to int64) {
	for id := from; id <= to; id++ {
		c.Seed(handle, domain.PlatformMessage{
			ID:         id,
			Text:       fmt.Sprintf("message %d", id),
			AuthoredAt: time.Now().Add(-time.Duration(to-id) * time.Minute),
		})
	}
}

func TestRun_FirstScrapeCapped(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(domain.Channel{Handle: "devjobs", IsMember: true, AccountID: 1})
	h := newHarness(t, accounts, channels)
	seedMessages(h.client, "devjobs", 1, 40)

	run, err := h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, run.Status)
	// First contact takes only the newest few, not the whole backlog.
	assert.Equal(t, 10, run.Counters.MessagesFetched)
	assert.Equal(t, 10, h.queue.len())

	ch, err := h.channels.Get(context.Background(), "devjobs")
	require.NoError(t, err)
	assert.Equal(t, int64(40), ch.LastSeenID)
}

func TestRun_IncrementalFetchesOnlyNewerThanCursor(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(domain.Channel{Handle: "devjobs", IsMember: true, AccountID: 1, LastSeenID: 40})
	h := newHarness(t, accounts, channels)
	seedMessages(h.client, "devjobs", 1, 55)

	run, err := h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, run.Status)
	assert.Equal(t, 15, run.Counters.MessagesFetched)

	ch, err := h.channels.Get(context.Background(), "devjobs")
	require.NoError(t, err)
	assert.Equal(t, int64(55), ch.LastSeenID)

	// A second run with nothing new fetches nothing and keeps the cursor.
	run, err = h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, run.Counters.MessagesFetched)
	ch, _ = h.channels.Get(context.Background(), "devjobs")
	assert.Equal(t, int64(55), ch.LastSeenID)
}

func TestRun_DuplicateFetchDoesNotReenqueue(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(domain.Channel{Handle: "devjobs", IsMember: true, AccountID: 1})
	h := newHarness(t, accounts, channels)
	seedMessages(h.client, "devjobs", 1, 5)

	_, err := h.batcher.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, h.queue.len())

	// Reset the cursor to force a refetch of the same ids.
	ch, _ := h.channels.Get(context.Background(), "devjobs")
	ch.LastSeenID = 0
	require.NoError(t, h.channels.Upsert(context.Background(), ch))

	_, err = h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, h.queue.len(), "stored messages must not be re-enqueued")
}

func TestRun_MediaOnlyMessagesNotStored(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(domain.Channel{Handle: "devjobs", IsMember: true, AccountID: 1, LastSeenID: 10})
	h := newHarness(t, accounts, channels)
	h.client.Seed("devjobs", domain.PlatformMessage{ID: 11, Text: "hiring a backend dev", AuthoredAt: time.Now()})
	h.client.Seed("devjobs", domain.PlatformMessage{ID: 12, Text: "", AuthoredAt: time.Now()})
	h.client.Seed("devjobs", domain.PlatformMessage{ID: 13, Text: "hiring a data analyst", AuthoredAt: time.Now()})

	run, err := h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, run.Status)
	assert.Equal(t, 2, h.queue.len(), "media-only posts are never enqueued")

	_, err = h.store.GetByKey(context.Background(), 12, "devjobs")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The cursor still moves past the empty message.
	ch, err := h.channels.Get(context.Background(), "devjobs")
	require.NoError(t, err)
	assert.Equal(t, int64(13), ch.LastSeenID)
}

func TestRun_FloodWaitOverCeilingSkipsChannel(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(
		domain.Channel{Handle: "blocked", IsMember: true, AccountID: 1},
		domain.Channel{Handle: "fine", IsMember: true, AccountID: 1},
	)
	h := newHarness(t, accounts, channels)
	h.client.FailWith("blocked", &domain.FloodWaitError{Seconds: 600})
	seedMessages(h.client, "fine", 1, 3)

	run, err := h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, run.Status)
	require.NotEmpty(t, run.Errors)
	assert.Equal(t, "flood_wait", run.Errors[0].Code)

	// The blocked channel stays active for later runs.
	ch, _ := h.channels.Get(context.Background(), "blocked")
	assert.Equal(t, domain.ChannelActive, ch.Status)
}

func TestRun_PrivateChannelDeactivated(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(domain.Channel{Handle: "gone", IsMember: true, AccountID: 1})
	h := newHarness(t, accounts, channels)
	h.client.Seed("gone")
	h.client.FailWith("gone", domain.ErrChannelPrivate)

	run, err := h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, run.Status)

	ch, _ := h.channels.Get(context.Background(), "gone")
	assert.Equal(t, domain.ChannelDeactivated, ch.Status)
	assert.NotEmpty(t, ch.DeactivatedReason)
}

func TestRun_AuthFailureBansAccount(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(domain.Channel{Handle: "devjobs", IsMember: true, AccountID: 1})
	h := newHarness(t, accounts, channels)
	h.client.FailConnect(domain.ErrAuthKeyInvalid)

	run, err := h.batcher.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, run.Status)

	a, err := h.accounts.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, a.IsBanned)

	// The banned account's channels moved to probation.
	ch, _ := h.channels.Get(context.Background(), "devjobs")
	assert.Equal(t, domain.ChannelProbation, ch.Status)
}

func TestRun_NoAccountsFails(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts()
	channels := newMemChannels(domain.Channel{Handle: "devjobs", IsMember: true})
	h := newHarness(t, accounts, channels)

	run, err := h.batcher.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
}

func TestJoiner_JoinsUnderQuota(t *testing.T) {
	t.Parallel()
	accounts := newMemAccounts(1)
	channels := newMemChannels(
		domain.Channel{Handle: "a"},
		domain.Channel{Handle: "b"},
	)
	h := newHarness(t, accounts, channels)
	h.client.Seed("a")
	h.client.Seed("b")
	gov := governor.New(time.Millisecond, time.Minute, nil)
	joiner := scraper.NewJoiner(h.pool, gov, h.client, memSessions{}, channels)

	n, err := joiner.JoinPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ch, _ := channels.Get(context.Background(), "a")
	assert.True(t, ch.IsMember)
	assert.Equal(t, 1, ch.AccountID)

	a, _ := accounts.Get(context.Background(), 1)
	assert.Equal(t, 2, a.DailyJoins)
}

func TestWatchdog_SweepsStaleRuns(t *testing.T) {
	t.Parallel()
	runs := newMemRuns()
	_, err := runs.Create(context.Background(), domain.ScrapeRun{
		ID: "stale", Status: domain.RunRunning, StartedAt: time.Now().Add(-3 * time.Hour),
	})
	require.NoError(t, err)
	_, err = runs.Create(context.Background(), domain.ScrapeRun{
		ID: "live", Status: domain.RunRunning, StartedAt: time.Now(),
	})
	require.NoError(t, err)

	w := scraper.NewWatchdog(runs, 2*time.Hour)
	n, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale, _ := runs.Get(context.Background(), "stale")
	assert.Equal(t, domain.RunPartial, stale.Status)
	live, _ := runs.Get(context.Background(), "live")
	assert.Equal(t, domain.RunRunning, live.Status)
}

func TestWorkingHours(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	w := scraper.WorkingHours{Start: 8, End: 22, Loc: loc}
	assert.True(t, w.Contains(time.Date(2026, 3, 1, 9, 0, 0, 0, loc)))
	assert.False(t, w.Contains(time.Date(2026, 3, 1, 23, 0, 0, 0, loc)))
	assert.False(t, w.Contains(time.Date(2026, 3, 1, 7, 59, 0, 0, loc)))

	wrap := scraper.WorkingHours{Start: 22, End: 6, Loc: loc}
	assert.True(t, wrap.Contains(time.Date(2026, 3, 1, 23, 0, 0, 0, loc)))
	assert.True(t, wrap.Contains(time.Date(2026, 3, 1, 2, 0, 0, 0, loc)))
	assert.False(t, wrap.Contains(time.Date(2026, 3, 1, 12, 0, 0, 0, loc)))
}
