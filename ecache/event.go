package ecache

import (
	"context"

	"github.com/gammazero/channelqueue"
	"github.com/labtrack/go-liblab/catalog/model"
)

// EventKind is the kind of change reported by an Event.
type EventKind int

const (
	EventLoading EventKind = iota + 1
	EventFetched
	EventFailed
	EventCancelled
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventFetched:
		return "fetched"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	case EventInvalidated:
		return "invalidated"
	}
	return "unknown"
}

// Event notifies subscribers of a change to the state of an entity's entry.
type Event struct {
	Entity model.Entity
	Kind   EventKind
	// Err is set for EventFailed.
	Err error
}

// Subscribe creates a channel that receives change notifications for all
// entities. The channel is unbounded, so a slow reader never blocks the cache.
//
// Calling the returned cancel function stops notifications and closes the
// channel. The channel is also closed when the cache is closed.
func (c *Cache) Subscribe() (<-chan Event, context.CancelFunc) {
	cq := channelqueue.New[Event](-1)
	ch := cq.In()

	c.subsMu.Lock()
	if c.subs == nil {
		// Cache closed.
		c.subsMu.Unlock()
		close(ch)
		return cq.Out(), func() {}
	}
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	cncl := func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return cq.Out(), cncl
}

func (c *Cache) notify(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		for _, ev := range events {
			ch <- ev
		}
	}
}

func (c *Cache) closeSubs() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}
