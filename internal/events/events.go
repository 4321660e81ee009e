// Package events carries the lifecycle notifications of the client:
// connections being created, reused and evicted, and requests being
// started, retried and finished. Sinks must not block.
package events

import "time"

type Kind string

const (
	ConnCreated   Kind = "conn.created"
	ConnReused    Kind = "conn.reused"
	ConnEvicted   Kind = "conn.evicted"
	ConnReleased  Kind = "conn.released"
	ConnDestroyed Kind = "conn.destroyed"

	RequestStart Kind = "request.start"
	RequestDone  Kind = "request.done"
	RequestRetry Kind = "request.retry"
	RequestError Kind = "request.error"

	TLSInsecure Kind = "tls.insecure"
)

type Event struct {
	Kind      Kind
	Time      time.Time
	Endpoint  string
	ConnID    uint64
	RequestID string
	Method    string
	URL       string
	Status    int
	Bytes     int64
	Reason    string
	Err       error
	Duration  time.Duration
}

type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Nop drops every event.
var Nop Sink = SinkFunc(func(Event) {})
