package ecache

import (
	"time"

	"github.com/labtrack/go-liblab/catalog/model"
)

// Status describes where the data in a Result came from.
type Status int

const (
	// StatusCached means the data was fresh in the cache and no fetch was
	// made.
	StatusCached Status = iota + 1
	// StatusFetched means the data was returned by a fetch, either one started
	// by this call or one it joined.
	StatusFetched
	// StatusFailed means the fetch failed. Result.Err holds the cause and
	// Result.Data holds any previously cached data.
	StatusFailed
	// StatusCancelled means the fetch, or the caller's wait for it, was
	// cancelled with context.Canceled. Nothing was recorded as an error. A
	// context that times out gives StatusFailed.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCached:
		return "cached"
	case StatusFetched:
		return "fetched"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is the outcome of a Get.
type Result[T any] struct {
	// Data holds the records. For StatusFailed and StatusCancelled it holds
	// the stale cached records, if any.
	Data   []T
	Status Status
	Err    error
}

// OK reports whether Data is the current data for the request.
func (r Result[T]) OK() bool {
	return r.Status == StatusCached || r.Status == StatusFetched
}

// EntryState is a snapshot of the cache entry of one entity, for display of
// loading and error state.
type EntryState struct {
	Entity model.Entity
	// Loading is true while at least one fetch for the entity is outstanding.
	Loading bool
	// Err is the failure of the last fetch attempt, or nil.
	Err error
	// Timestamp is the time of the last successful fetch. It is zero if the
	// entity was never fetched or was invalidated.
	Timestamp time.Time
	// Fresh reports whether a Get without parameters would be served from the
	// cache.
	Fresh bool
	// Len is the number of cached records.
	Len int
}
