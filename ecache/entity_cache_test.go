package ecache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labtrack/go-liblab/catalog/model"
	"github.com/labtrack/go-liblab/ecache"
	"github.com/labtrack/go-liblab/internal/test"
	"github.com/stretchr/testify/require"
)

type mockSource[T any] struct {
	mu      sync.Mutex
	records []T
	err     error
	// gate, if set, blocks each fetch until it is closed or receives.
	gate    chan struct{}
	started chan model.Params

	calls atomic.Int32
}

func newMockSource[T any](records ...T) *mockSource[T] {
	return &mockSource[T]{
		records: records,
		started: make(chan model.Params, 16),
	}
}

func (s *mockSource[T]) set(records []T, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.err = err
}

func (s *mockSource[T]) fetch(ctx context.Context, params model.Params) ([]T, error) {
	s.calls.Add(1)
	s.started <- params
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type client struct {
	ID   int
	Name string
}

type fakeClock interface {
	clockwork.Clock
	Advance(time.Duration)
}

func newCache(t *testing.T, opts ...ecache.Option) (*ecache.Cache, fakeClock) {
	clock := clockwork.NewFakeClock()
	c, err := ecache.New(append([]ecache.Option{ecache.WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, clock
}

func TestGetCachesAndInvalidates(t *testing.T) {
	c, clock := newCache(t)
	src := newMockSource(client{ID: 1, Name: "Aguas del Norte"})
	ctx := context.Background()

	res := ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.NoError(t, res.Err)
	require.Equal(t, []client{{ID: 1, Name: "Aguas del Norte"}}, res.Data)
	require.Equal(t, int32(1), src.calls.Load())

	clock.Advance(time.Second)
	res = ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	require.Equal(t, ecache.StatusCached, res.Status)
	require.Equal(t, []client{{ID: 1, Name: "Aguas del Norte"}}, res.Data)
	require.Equal(t, int32(1), src.calls.Load())

	c.Invalidate(model.Clients)
	state := c.State(model.Clients)
	require.True(t, state.Timestamp.IsZero())
	require.False(t, state.Fresh)
	require.Equal(t, 1, state.Len, "invalidate must keep stale data")

	res = ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.Equal(t, int32(2), src.calls.Load())
}

func TestFreshnessWindow(t *testing.T) {
	c, clock := newCache(t)
	src := newMockSource(client{ID: 1})
	ctx := context.Background()
	params := model.Params{"active": true}

	ecache.Get(ctx, c, model.Clients, src.fetch, params)
	require.Equal(t, int32(1), src.calls.Load())

	clock.Advance(4*time.Minute + 59*time.Second)
	res := ecache.Get(ctx, c, model.Clients, src.fetch, params)
	require.Equal(t, ecache.StatusCached, res.Status)
	require.Equal(t, int32(1), src.calls.Load())

	clock.Advance(2 * time.Second)
	res = ecache.Get(ctx, c, model.Clients, src.fetch, params)
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.Equal(t, int32(2), src.calls.Load())
}

func TestExpiryOption(t *testing.T) {
	_, err := ecache.New(ecache.WithExpiry(0))
	require.ErrorContains(t, err, "expiry must be positive")

	c, clock := newCache(t, ecache.WithExpiry(time.Minute))
	src := newMockSource(client{ID: 1})
	ctx := context.Background()

	ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	clock.Advance(time.Minute)
	ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	require.Equal(t, int32(2), src.calls.Load())
}

func TestConcurrentGetsShareOneFetch(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1}, client{ID: 2})
	src.gate = make(chan struct{})
	ctx := context.Background()

	const n = 10
	results := make([]ecache.Result[client], n)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = ecache.Get(ctx, c, model.Samples, src.fetch, model.Params{"status": "received", "page": 1})
	}()
	<-src.started
	require.Equal(t, 1, c.Pending())
	require.True(t, c.State(model.Samples).Loading)

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Same params in a different insertion order.
			results[i] = ecache.Get(ctx, c, model.Samples, src.fetch, model.Params{"page": 1, "status": "received"})
		}(i)
	}
	close(src.gate)
	wg.Wait()

	require.Equal(t, int32(1), src.calls.Load())
	for _, res := range results {
		require.True(t, res.OK())
		require.Equal(t, []client{{ID: 1}, {ID: 2}}, res.Data)
	}
	require.Zero(t, c.Pending())
	require.False(t, c.State(model.Samples).Loading)
}

func TestDistinctParamsFetchSeparately(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	src.gate = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, page := range []int{1, 2} {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			ecache.Get(ctx, c, model.Samples, src.fetch, model.Params{"page": page})
		}(page)
	}
	<-src.started
	<-src.started
	require.Equal(t, 2, c.Pending())
	close(src.gate)
	wg.Wait()
	require.Equal(t, int32(2), src.calls.Load())
}

func TestParamSensitiveEntitiesBypassCache(t *testing.T) {
	for _, entity := range []model.Entity{model.Provinces, model.Municipalities} {
		t.Run(entity.String(), func(t *testing.T) {
			c, _ := newCache(t)
			src := newMockSource(client{ID: 1})
			ctx := context.Background()

			res := ecache.Get(ctx, c, entity, src.fetch, nil)
			require.Equal(t, ecache.StatusFetched, res.Status)

			res = ecache.Get(ctx, c, entity, src.fetch, model.Params{"parentId": 1})
			require.Equal(t, ecache.StatusFetched, res.Status)
			res = ecache.Get(ctx, c, entity, src.fetch, model.Params{"parentId": 2})
			require.Equal(t, ecache.StatusFetched, res.Status)
			res = ecache.Get(ctx, c, entity, src.fetch, model.Params{"parentId": 1})
			require.Equal(t, ecache.StatusFetched, res.Status)
			require.Equal(t, int32(4), src.calls.Load())

			// The unfiltered list is still served from the cache.
			res = ecache.Get(ctx, c, entity, src.fetch, nil)
			require.Equal(t, ecache.StatusCached, res.Status)
			require.Equal(t, int32(4), src.calls.Load())
		})
	}
}

func TestFilteredFetchDoesNotReplaceUnfilteredList(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1}, client{ID: 2}, client{ID: 3})
	ctx := context.Background()

	ecache.Get(ctx, c, model.Provinces, src.fetch, nil)
	src.set([]client{{ID: 2}}, nil)
	res := ecache.Get(ctx, c, model.Provinces, src.fetch, model.Params{"countryId": 34})
	require.Equal(t, []client{{ID: 2}}, res.Data)

	res = ecache.Get(ctx, c, model.Provinces, src.fetch, nil)
	require.Equal(t, ecache.StatusCached, res.Status)
	require.Len(t, res.Data, 3)
}

func TestParamsShareEntryOfOtherEntities(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1}, client{ID: 2})
	ctx := context.Background()

	res := ecache.Get(ctx, c, model.Samples, src.fetch, nil)
	require.Equal(t, ecache.StatusFetched, res.Status)

	// A fresh entry answers filtered requests with the cached list.
	res = ecache.Get(ctx, c, model.Samples, src.fetch, model.Params{"clientId": 2})
	require.Equal(t, ecache.StatusCached, res.Status)
	require.Equal(t, []client{{ID: 1}, {ID: 2}}, res.Data)
	require.Equal(t, int32(1), src.calls.Load())

	// A filtered fetch replaces the entry.
	c.Invalidate(model.Samples)
	src.set([]client{{ID: 2}}, nil)
	res = ecache.Get(ctx, c, model.Samples, src.fetch, model.Params{"clientId": 2})
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.Empty(t, <-src.started)
	require.Equal(t, model.Params{"clientId": 2}, <-src.started)

	res = ecache.Get(ctx, c, model.Samples, src.fetch, nil)
	require.Equal(t, ecache.StatusCached, res.Status)
	require.Equal(t, []client{{ID: 2}}, res.Data)
	require.Equal(t, int32(2), src.calls.Load())
}

func TestInvalidateIsPerEntity(t *testing.T) {
	c, _ := newCache(t)
	clients := newMockSource(client{ID: 1})
	samples := newMockSource(client{ID: 10})
	ctx := context.Background()

	ecache.Get(ctx, c, model.Clients, clients.fetch, nil)
	ecache.Get(ctx, c, model.Samples, samples.fetch, nil)

	c.Invalidate(model.Clients)

	res := ecache.Get(ctx, c, model.Clients, clients.fetch, nil)
	require.Equal(t, ecache.StatusFetched, res.Status)
	res = ecache.Get(ctx, c, model.Samples, samples.fetch, nil)
	require.Equal(t, ecache.StatusCached, res.Status)
	require.Equal(t, int32(2), clients.calls.Load())
	require.Equal(t, int32(1), samples.calls.Load())
}

func TestInvalidateAll(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	sources := map[model.Entity]*mockSource[client]{
		model.Clients:   newMockSource(client{ID: 1}),
		model.Samples:   newMockSource(client{ID: 2}),
		model.Countries: newMockSource(client{ID: 3}),
	}
	for entity, src := range sources {
		ecache.Get(ctx, c, entity, src.fetch, nil)
	}
	require.Equal(t, uint64(0), c.Version())

	c.InvalidateAll()
	require.Equal(t, uint64(1), c.Version())

	for entity, src := range sources {
		state := c.State(entity)
		require.False(t, state.Fresh)
		require.False(t, state.Timestamp.IsZero(), "timestamps are not touched")

		res := ecache.Get(ctx, c, entity, src.fetch, nil)
		require.Equal(t, ecache.StatusFetched, res.Status)
		require.Equal(t, int32(2), src.calls.Load())
	}
}

func TestInvalidateDetachesInFlightFetch(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	src.gate = make(chan struct{})
	ctx := context.Background()

	first := make(chan ecache.Result[client], 1)
	go func() {
		first <- ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	}()
	<-src.started

	c.Invalidate(model.Clients)
	require.Zero(t, c.Pending())

	// A new call does not join the detached fetch.
	second := make(chan ecache.Result[client], 1)
	go func() {
		second <- ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	}()
	<-src.started
	require.Equal(t, 1, c.Pending())

	src.gate <- struct{}{}
	src.gate <- struct{}{}
	require.Equal(t, ecache.StatusFetched, (<-first).Status)
	require.Equal(t, ecache.StatusFetched, (<-second).Status)
	require.Equal(t, int32(2), src.calls.Load())
	require.True(t, c.State(model.Clients).Fresh)
}

func TestDetachedFetchDoesNotMarkFresh(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	src.gate = make(chan struct{})
	ctx := context.Background()

	done := make(chan ecache.Result[client], 1)
	go func() {
		done <- ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	}()
	<-src.started
	c.InvalidateAll()
	require.Zero(t, c.Pending())
	close(src.gate)

	res := <-done
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.Equal(t, []client{{ID: 1}}, res.Data)

	state := c.State(model.Clients)
	require.False(t, state.Fresh)
	require.False(t, state.Loading)

	ecache.Get(ctx, c, model.Clients, src.fetch, nil)
	require.Equal(t, int32(2), src.calls.Load())
}

func TestFetchFailureRecordsError(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	ctx := context.Background()

	// First-ever failure: no data.
	src.set(nil, errors.New("502 Bad Gateway"))
	res := ecache.Get(ctx, c, model.Rates, src.fetch, nil)
	require.Equal(t, ecache.StatusFailed, res.Status)
	require.EqualError(t, res.Err, "502 Bad Gateway")
	require.Nil(t, res.Data)
	state := c.State(model.Rates)
	require.False(t, state.Loading)
	require.EqualError(t, state.Err, "502 Bad Gateway")

	// Success clears the error.
	src.set([]client{{ID: 1}}, nil)
	res = ecache.Get(ctx, c, model.Rates, src.fetch, nil)
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.NoError(t, c.State(model.Rates).Err)

	// Background refetch failure keeps stale data visible.
	c.Invalidate(model.Rates)
	src.set(nil, errors.New("timeout"))
	res = ecache.Get(ctx, c, model.Rates, src.fetch, nil)
	require.Equal(t, ecache.StatusFailed, res.Status)
	require.Equal(t, []client{{ID: 1}}, res.Data)
	require.Equal(t, 1, c.State(model.Rates).Len)

	// A failed fetch is retried on the next call.
	ecache.Get(ctx, c, model.Rates, src.fetch, nil)
	require.Equal(t, int32(4), src.calls.Load())
}

func TestEmptyResultIsDistinctFromFailure(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource[client]()
	ctx := context.Background()

	res := ecache.Get(ctx, c, model.Formats, src.fetch, nil)
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.Empty(t, res.Data)
	state := c.State(model.Formats)
	require.True(t, state.Fresh)
	require.NoError(t, state.Err)

	res = ecache.Get(ctx, c, model.Formats, src.fetch, nil)
	require.Equal(t, ecache.StatusCached, res.Status)
	require.Equal(t, int32(1), src.calls.Load())
}

func TestCancelledFetchIsSilent(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	src.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ecache.Result[client], 1)
	go func() {
		done <- ecache.Get(ctx, c, model.Users, src.fetch, nil)
	}()
	<-src.started
	cancel()

	res := <-done
	require.Equal(t, ecache.StatusCancelled, res.Status)
	require.ErrorIs(t, res.Err, context.Canceled)

	require.Eventually(t, func() bool {
		return c.Pending() == 0 && !c.State(model.Users).Loading
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, c.State(model.Users).Err)

	// Later callers are not blocked.
	close(src.gate)
	res = ecache.Get(context.Background(), c, model.Users, src.fetch, nil)
	require.Equal(t, ecache.StatusFetched, res.Status)
}

func TestTimeoutIsFailure(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	src.gate = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := ecache.Get(ctx, c, model.Users, src.fetch, nil)
	require.Equal(t, ecache.StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	<-src.started

	require.Eventually(t, func() bool {
		return c.Pending() == 0 && !c.State(model.Users).Loading
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, c.State(model.Users).Err, context.DeadlineExceeded)

	// A waiter that times out fails alone. The fetch it joined goes on.
	done := make(chan ecache.Result[client], 1)
	go func() {
		done <- ecache.Get(context.Background(), c, model.Users, src.fetch, nil)
	}()
	<-src.started
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	res = ecache.Get(waitCtx, c, model.Users, src.fetch, nil)
	require.Equal(t, ecache.StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.True(t, c.State(model.Users).Loading)
	require.NoError(t, c.State(model.Users).Err)

	close(src.gate)
	res = <-done
	require.Equal(t, ecache.StatusFetched, res.Status)
	require.NoError(t, c.State(model.Users).Err)
	require.Equal(t, int32(2), src.calls.Load())
}

func TestCancellationErrorFromSource(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	src.set(nil, fmt.Errorf("request aborted: %w", context.Canceled))

	res := ecache.Get(context.Background(), c, model.Centers, src.fetch, nil)
	require.Equal(t, ecache.StatusCancelled, res.Status)
	state := c.State(model.Centers)
	require.NoError(t, state.Err)
	require.False(t, state.Loading)

	src.set(nil, errors.New("connection refused"))
	res = ecache.Get(context.Background(), c, model.Centers, src.fetch, nil)
	require.Equal(t, ecache.StatusFailed, res.Status)
	require.Error(t, c.State(model.Centers).Err)
}

func TestWaiterCancelDoesNotAffectFetch(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	src.gate = make(chan struct{})

	first := make(chan ecache.Result[client], 1)
	go func() {
		first <- ecache.Get(context.Background(), c, model.Baths, src.fetch, nil)
	}()
	<-src.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := ecache.Get(ctx, c, model.Baths, src.fetch, nil)
	require.Equal(t, ecache.StatusCancelled, res.Status)

	close(src.gate)
	require.Equal(t, ecache.StatusFetched, (<-first).Status)
	require.Equal(t, int32(1), src.calls.Load())
	require.True(t, c.State(model.Baths).Fresh)
}

func TestUnknownEntity(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	res := ecache.Get(context.Background(), c, model.Entity(99), src.fetch, nil)
	require.Equal(t, ecache.StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, model.ErrUnknownEntity)
	require.Zero(t, src.calls.Load())
}

func TestSeedAndEntities(t *testing.T) {
	c, _ := newCache(t)
	require.Empty(t, c.Entities())
	c.Seed(model.Countries, model.Clients, model.Entity(99))
	require.Equal(t, []model.Entity{model.Clients, model.Countries}, c.Entities())

	state := c.State(model.Countries)
	require.False(t, state.Fresh)
	require.Zero(t, state.Len)
	require.True(t, state.Timestamp.IsZero())
}

func TestSubscribe(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	events, cancel := c.Subscribe()

	ecache.Get(context.Background(), c, model.Clients, src.fetch, nil)
	c.Invalidate(model.Clients)

	var kinds []ecache.EventKind
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			require.Equal(t, model.Clients, ev.Entity)
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	require.Equal(t, []ecache.EventKind{ecache.EventLoading, ecache.EventFetched, ecache.EventInvalidated}, kinds)

	cancel()
	for range events {
	}
	cancel()
}

func TestClose(t *testing.T) {
	c, _ := newCache(t)
	src := newMockSource(client{ID: 1})
	events, _ := c.Subscribe()

	ecache.Get(context.Background(), c, model.Clients, src.fetch, nil)
	c.Close()

	res := ecache.Get(context.Background(), c, model.Clients, src.fetch, nil)
	require.Equal(t, ecache.StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, ecache.ErrClosed)
	require.Equal(t, int32(1), src.calls.Load())
	require.Empty(t, c.Entities())

	// Channel is drained and closed.
	for range events {
	}
	c.Close()
	c.Invalidate(model.Clients)
	c.InvalidateAll()
	c.Seed(model.Clients)
}

func TestEndToEnd(t *testing.T) {
	c, clock := newCache(t)
	var calls atomic.Int32
	clients := test.RandomClients(50)
	fetchClients := func(ctx context.Context, _ model.Params) ([]model.Client, error) {
		calls.Add(1)
		return clients, nil
	}
	ctx := context.Background()

	res := ecache.Get(ctx, c, model.Clients, fetchClients, nil)
	require.Equal(t, clients, res.Data)
	require.Equal(t, 50, c.State(model.Clients).Len)

	clock.Advance(time.Second)
	res2 := ecache.Get(ctx, c, model.Clients, fetchClients, nil)
	require.Equal(t, res.Data, res2.Data)
	require.Equal(t, int32(1), calls.Load())

	c.Invalidate(model.Clients)
	ecache.Get(ctx, c, model.Clients, fetchClients, nil)
	require.Equal(t, int32(2), calls.Load())
}

func TestRequestKey(t *testing.T) {
	require.Equal(t, "clients{}", ecache.RequestKey(model.Clients, nil))
	require.Equal(t, `provinces{"countryId":34}`, ecache.RequestKey(model.Provinces, model.Params{"countryId": 34}))
}
