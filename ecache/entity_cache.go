package ecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jonboulle/clockwork"
	"github.com/labtrack/go-liblab/catalog/model"
)

var log = logging.Logger("ecache")

var (
	ErrClosed = errors.New("cache closed")

	errTypeMismatch = errors.New("cached data has a different record type")
)

// FetchFunc retrieves the records of one entity from its source. A fetch that
// is aborted by its context should return an error that wraps
// context.Canceled.
type FetchFunc[T any] func(context.Context, model.Params) ([]T, error)

// Cache is a per-entity cache of catalog records. It is safe for concurrent
// use. A Cache is meant to live for one user session and be discarded with
// Close when the session ends.
type Cache struct {
	clock  clockwork.Clock
	expiry time.Duration

	mu      sync.Mutex
	closed  bool
	version uint64
	entries map[model.Entity]entry
	pending map[string]*call

	subsMu sync.Mutex
	subs   map[chan<- Event]struct{}
}

// entry is the cached state of one entity. Entries are stored by value and
// replaced as a whole.
type entry struct {
	data any
	size int
	// timestamp is zero if never fetched or invalidated.
	timestamp time.Time
	// version is the cache version when data was written.
	version uint64
	// gen is incremented by Invalidate so that fetches started earlier do not
	// write their results.
	gen      uint64
	inflight int
	err      error
}

// call is an in-flight fetch. res is written before done is closed.
type call struct {
	done chan struct{}
	res  flightResult
}

// flightResult is the value shared by all callers waiting on one fetch.
type flightResult struct {
	data   any
	status Status
	err    error
}

// New creates a new entity cache.
func New(options ...Option) (*Cache, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	return &Cache{
		clock:   opts.clock,
		expiry:  opts.expiry,
		entries: make(map[model.Entity]entry),
		pending: make(map[string]*call),
		subs:    make(map[chan<- Event]struct{}),
	}, nil
}

// RequestKey returns the key that identifies a request for coalescing. It is
// the entity name followed by the canonical form of the params.
func RequestKey(entity model.Entity, params model.Params) string {
	return entity.String() + params.Canonical()
}

// Get returns the records of entity. Fresh cached data is returned without
// calling fetch. Otherwise fetch is called, unless a fetch for the same entity
// and params is already in flight, in which case its result is shared.
//
// Cached data is not used when entity is parameter-sensitive and params is not
// empty.
//
// The fetch runs with the context of the call that started it. If that
// context is cancelled, every caller waiting on the fetch gets
// StatusCancelled. A caller whose own context is done stops waiting without
// affecting the fetch. It gets StatusCancelled if the context was cancelled
// and StatusFailed if it timed out. Only a timeout of the context running the
// fetch is recorded as the entity's error.
func Get[T any](ctx context.Context, c *Cache, entity model.Entity, fetch FetchFunc[T], params model.Params) Result[T] {
	if !entity.Valid() {
		return Result[T]{Status: StatusFailed, Err: fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)}
	}
	key := RequestKey(entity, params)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result[T]{Status: StatusFailed, Err: ErrClosed}
	}
	cl, ok := c.pending[key]
	if !ok {
		if data, fresh := c.freshLocked(entity, params); fresh {
			if recs, ok := data.([]T); ok {
				c.mu.Unlock()
				log.Debugw("Cache hit", "key", key)
				return Result[T]{Data: recs, Status: StatusCached}
			}
		}
		// Register the call and mark the entry loading before the fetch
		// starts, so that concurrent callers join it instead of starting
		// their own.
		cl = &call{done: make(chan struct{})}
		c.pending[key] = cl
		ent := c.entries[entity]
		ent.inflight++
		ent.err = nil
		c.entries[entity] = ent
		version, gen := c.version, ent.gen
		c.mu.Unlock()

		c.notify(Event{Entity: entity, Kind: EventLoading})
		go c.run(ctx, entity, key, cl, version, gen, params, func(ctx context.Context, p model.Params) (any, int, error) {
			recs, err := fetch(ctx, p)
			if err != nil {
				return nil, 0, err
			}
			return recs, len(recs), nil
		})
	} else {
		c.mu.Unlock()
		log.Debugw("Joined in-flight fetch", "key", key)
	}

	select {
	case <-cl.done:
		recs, ok := cl.res.data.([]T)
		if !ok && cl.res.data != nil {
			return Result[T]{Status: StatusFailed, Err: fmt.Errorf("%s: %w", key, errTypeMismatch)}
		}
		return Result[T]{Data: recs, Status: cl.res.status, Err: cl.res.err}
	case <-ctx.Done():
		recs, _ := c.staleData(entity).([]T)
		status := StatusCancelled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// A timeout is a failure. If ctx started the fetch, run records it
			// in the entry.
			status = StatusFailed
		}
		return Result[T]{Data: recs, Status: status, Err: ctx.Err()}
	}
}

// run performs the fetch for call cl, records the outcome in the entity's
// entry, and releases all callers waiting on cl.
func (c *Cache) run(ctx context.Context, entity model.Entity, key string, cl *call, version, gen uint64, params model.Params, fetchFn func(context.Context, model.Params) (any, int, error)) {
	log.Debugw("Fetching", "key", key)
	data, size, err := fetchFn(ctx, params)

	c.mu.Lock()
	if c.pending[key] == cl {
		delete(c.pending, key)
	}
	ent := c.entries[entity]
	ent.inflight--
	// A fetch that was detached by invalidation, or that outlived the cache,
	// does not write its result to the entry.
	current := !c.closed && version == c.version && gen == ent.gen

	var ev Event
	switch {
	case err == nil:
		cl.res = flightResult{data: data, status: StatusFetched}
		ev = Event{Entity: entity, Kind: EventFetched}
		// Filtered lists of parameter-sensitive entities do not replace the
		// unfiltered list.
		if current && !(entity.ParamSensitive() && len(params) != 0) {
			ent.data = data
			ent.size = size
			ent.timestamp = c.clock.Now()
			ent.version = c.version
		}
	case errors.Is(err, context.Canceled):
		cl.res = flightResult{data: ent.data, status: StatusCancelled, err: err}
		ev = Event{Entity: entity, Kind: EventCancelled}
	default:
		cl.res = flightResult{data: ent.data, status: StatusFailed, err: err}
		ev = Event{Entity: entity, Kind: EventFailed, Err: err}
		if current {
			ent.err = err
		}
	}
	if !c.closed {
		c.entries[entity] = ent
	}
	c.mu.Unlock()
	c.notify(ev)
	close(cl.done)

	switch cl.res.status {
	case StatusFailed:
		log.Errorw("Cannot fetch entity", "key", key, "err", err)
	case StatusCancelled:
		log.Debugw("Fetch cancelled", "key", key)
	}
	if !current {
		log.Debugw("Discarded result of detached fetch", "key", key)
	}
}

// Invalidate forces the next Get for entity to fetch. Cached data is kept and
// remains available as stale data. In-flight fetches for the entity are
// detached so that later calls do not join them.
func (c *Cache) Invalidate(entity model.Entity) {
	if !entity.Valid() {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ent := c.entries[entity]
	ent.timestamp = time.Time{}
	ent.gen++
	c.entries[entity] = ent

	// Canonical params always start with an opening brace, so the prefix
	// does not match other entities whose names share a prefix.
	prefix := entity.String() + "{"
	for key := range c.pending {
		if strings.HasPrefix(key, prefix) {
			delete(c.pending, key)
		}
	}
	c.mu.Unlock()

	log.Debugw("Invalidated entity", "entity", entity)
	c.notify(Event{Entity: entity, Kind: EventInvalidated})
}

// InvalidateAll makes all cached data stale and detaches all in-flight
// fetches.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.version++
	c.pending = make(map[string]*call)
	events := make([]Event, 0, len(c.entries))
	for _, entity := range model.Entities() {
		if _, ok := c.entries[entity]; ok {
			events = append(events, Event{Entity: entity, Kind: EventInvalidated})
		}
	}
	version := c.version
	c.mu.Unlock()

	log.Debugw("Invalidated all entities", "version", version)
	c.notify(events...)
}

// Seed creates an empty, never-fetched entry for each given entity that does
// not have one yet.
func (c *Cache) Seed(entities ...model.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, entity := range entities {
		if _, ok := c.entries[entity]; !ok && entity.Valid() {
			c.entries[entity] = entry{}
		}
	}
}

// State returns a snapshot of the entry for entity.
func (c *Cache) State(entity model.Entity) EntryState {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent := c.entries[entity]
	_, fresh := c.freshLocked(entity, nil)
	return EntryState{
		Entity:    entity,
		Loading:   ent.inflight != 0,
		Err:       ent.err,
		Timestamp: ent.timestamp,
		Fresh:     fresh,
		Len:       ent.size,
	}
}

// Entities returns the entities that have an entry in the cache.
func (c *Cache) Entities() []model.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	entities := make([]model.Entity, 0, len(c.entries))
	for _, entity := range model.Entities() {
		if _, ok := c.entries[entity]; ok {
			entities = append(entities, entity)
		}
	}
	return entities
}

// Pending returns the number of requests with a fetch in flight that new
// callers would join.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Version returns the current cache version.
func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Close drops all cached data and in-flight requests. After Close, Get returns
// StatusFailed with ErrClosed and subscriber channels are closed. Fetches
// still running complete and deliver their results to their waiters only.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.pending = nil
	c.entries = nil
	c.mu.Unlock()

	c.closeSubs()
}

// freshLocked returns the cached data for entity if it may be served for a
// request with params. Must be called with c.mu held.
func (c *Cache) freshLocked(entity model.Entity, params model.Params) (any, bool) {
	if entity.ParamSensitive() && len(params) != 0 {
		return nil, false
	}
	ent, ok := c.entries[entity]
	if !ok || ent.timestamp.IsZero() {
		return nil, false
	}
	if ent.version != c.version {
		return nil, false
	}
	if c.clock.Since(ent.timestamp) >= c.expiry {
		return nil, false
	}
	return ent.data, true
}

func (c *Cache) staleData(entity model.Entity) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[entity].data
}
