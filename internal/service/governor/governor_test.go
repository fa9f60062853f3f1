package governor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/jobscout/internal/domain"
	"github.com/fairyhunter13/jobscout/internal/service/governor"
)

func TestAcquire_SerializesPerAccount(t *testing.T) {
	t.Parallel()
	g := governor.New(time.Millisecond, time.Minute, nil)

	var inFlight int32
	var maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(context.Background(), 1)
			require.NoError(t, err)
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxInFlight)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight), "two overlapping calls on one account")
}

func TestAcquire_DistinctAccountsDoNotBlock(t *testing.T) {
	t.Parallel()
	g := governor.New(time.Millisecond, time.Minute, nil)
	r1, err := g.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := g.Acquire(ctx, 2)
	require.NoError(t, err)
	r2()
}

func TestAcquire_Cancellable(t *testing.T) {
	t.Parallel()
	g := governor.New(time.Millisecond, time.Minute, nil)
	release, err := g.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWait_AppliesFloorDelay(t *testing.T) {
	t.Parallel()
	g := governor.New(30*time.Millisecond, time.Minute, nil)
	ctx := context.Background()
	require.NoError(t, g.Wait(ctx, 1))
	start := time.Now()
	require.NoError(t, g.Wait(ctx, 1))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPenalize_CeilingClassification(t *testing.T) {
	t.Parallel()
	g := governor.New(time.Millisecond, 60*time.Second, nil)
	assert.False(t, g.Penalize(1, 30))
	assert.True(t, g.Penalize(1, 120))
}

func TestHandleFloodWait(t *testing.T) {
	t.Parallel()
	g := governor.New(time.Millisecond, 60*time.Second, nil)

	err := g.HandleFloodWait(1, &domain.FloodWaitError{Seconds: 120})
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	fw := &domain.FloodWaitError{Seconds: 1}
	err = g.HandleFloodWait(1, fw)
	got, ok := domain.AsFloodWait(err)
	require.True(t, ok)
	assert.Equal(t, 1, got.Seconds)
}

func TestWait_PenaltyBlocksAndIsCancellable(t *testing.T) {
	t.Parallel()
	g := governor.New(time.Millisecond, time.Minute, nil)
	g.Penalize(1, 30)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.Wait(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBucket_SharedBudget(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := governor.NewBucket(rdb, 2)

	ctx := context.Background()
	allowed, _, err := b.Allow(ctx, 7)
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, _, err = b.Allow(ctx, 7)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, retryAfter, err := b.Allow(ctx, 7)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)

	// A different account has its own budget.
	allowed, _, err = b.Allow(ctx, 8)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRecent_KeepsDiagnosticLog(t *testing.T) {
	t.Parallel()
	g := governor.New(time.Millisecond, time.Minute, nil)
	require.NoError(t, g.Wait(context.Background(), 3))
	g.Penalize(3, 5)
	log := g.Recent(3)
	require.Len(t, log, 2)
	assert.Equal(t, "wait", log[0].Kind)
	assert.Equal(t, "penalty", log[1].Kind)
}
