package postscheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType labels a post lifecycle event.
type EventType string

const (
	EventScheduled    EventType = "scheduled"
	EventPublished    EventType = "published"
	EventRetryQueued  EventType = "retry_queued"
	EventDeadLettered EventType = "dead_lettered"
	EventCancelled    EventType = "cancelled"
	EventReclaimed    EventType = "reclaimed"
)

// Event describes a post lifecycle change for downstream consumers
// (websocket pushes, audit trails, metrics).
type Event struct {
	Type EventType `json:"type"`
	Post *Post     `json:"post"`
	At   time.Time `json:"at"`
}

// Notifier receives lifecycle events. Implementations must not block:
// notification sits on the publish hot path.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(event Event)

func (f NotifierFunc) Notify(event Event) { f(event) }

// ChannelNotifier buffers events on a channel for a single consumer.
// When the consumer falls behind, new events are dropped and counted
// rather than blocking the scheduler.
type ChannelNotifier struct {
	events  chan Event
	dropped atomic.Int64

	closeOnce sync.Once
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelNotifier{events: make(chan Event, buffer)}
}

func (n *ChannelNotifier) Notify(event Event) {
	select {
	case n.events <- event:
	default:
		n.dropped.Add(1)
	}
}

// Events returns the consumer side of the buffer. The channel is closed
// by Close.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.events
}

// Dropped reports how many events were discarded due to a full buffer.
func (n *ChannelNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Close closes the event channel. Notify must not be called after Close.
func (n *ChannelNotifier) Close() {
	n.closeOnce.Do(func() { close(n.events) })
}
