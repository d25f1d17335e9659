// Package ecache provides an in-memory, per-entity cache of catalog data with
// time-based expiry, version-based bulk invalidation, and coalescing of
// identical concurrent fetches.
//
// The cache holds one entry for each catalog entity (clients, samples, rates,
// and so on). An entry contains the last successfully fetched records, the
// time they were fetched, whether a fetch is currently outstanding, and the
// last fetch failure. Records are opaque to the cache; callers supply a fetch
// function per entity that returns a typed slice.
//
// ## Freshness
//
// Cached data for an entity is served without a network request while all of
// the following hold: the entry has a fetch timestamp, less than the expiry
// window (default 5 minutes) has passed since that timestamp, and the cache
// version has not changed since the data was written. Provinces and
// municipalities are filtered by their parent selection, so a request for them
// that carries parameters is never answered from the cache.
//
// ## Request Coalescing
//
// Each request is identified by the entity name followed by a canonical
// serialization of its parameters. While a fetch for a request key is in
// flight, every other Get with the same key waits for that fetch and receives
// the same result. At most one fetch per request key is outstanding at any
// time. The in-flight entry is removed when the fetch settles, whether it
// succeeded, failed, or was cancelled.
//
// ## Invalidation
//
// Invalidate clears the timestamp of a single entity, so that the next Get
// fetches again, and detaches any in-flight fetches for that entity so later
// callers do not join them. Previously fetched data stays available as stale
// data until the refetch completes. InvalidateAll increments the cache version,
// which makes every entry stale at once, and detaches all in-flight fetches. A
// detached fetch still delivers its result to the callers already waiting on
// it, but it does not update the cache.
//
// ## Results
//
// Get never returns a bare error. Its Result reports whether the data came
// from the cache, from a completed fetch, or whether the fetch failed or was
// cancelled. A failure is also recorded in the entry, and is visible through
// State, until the next fetch attempt for that entity starts. A cancellation
// is never recorded as a failure.
package ecache
