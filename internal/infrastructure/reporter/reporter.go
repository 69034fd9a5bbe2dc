// Package reporter implements a write-only, tag-discriminated event
// sink with no back-pressure requirement. Console and NATS-backed sinks
// are provided; both satisfy internal/infrastructure/scheduler.Reporter.
package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/oocana-go/oocana/internal/infrastructure/messaging/nats"
)

// eventTyper extracts the tag carried by every execution.* event struct.
type eventTyper interface {
	EventType() string
	AggregateID() string
}

// Console writes each event as one JSON line to the given writer. No
// structured logging library is introduced here; see DESIGN.md.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole builds a console sink.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Report implements the Reporter contract. Drops are acceptable on
// encode failure.
func (c *Console) Report(event interface{}) {
	line, err := encode(event)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

func encode(event interface{}) (string, error) {
	tag := "event"
	if t, ok := event.(eventTyper); ok {
		tag = t.EventType()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"tag":%q,"event":%s}`, tag, body), nil
}

// NATSSink publishes each event onto an oocana.reports.<session>.<tag> subject
// via a Watermill-backed NATS publisher.
type NATSSink struct {
	publisher *nats.Publisher
}

// NewNATSSink wraps an already-connected publisher.
func NewNATSSink(publisher *nats.Publisher) *NATSSink {
	return &NATSSink{publisher: publisher}
}

// Report implements the Reporter contract; publish failures are logged
// nowhere (fire-and-forget, matching the sink's no-back-pressure
// contract) beyond being swallowed here. Durable session outcomes are
// recorded separately and synchronously by
// internal/infrastructure/persistence/postgres.SessionStore, not by
// replaying this stream.
func (n *NATSSink) Report(event interface{}) {
	sessionID := "unknown"
	tag := "event"
	if t, ok := event.(eventTyper); ok {
		tag = t.EventType()
		sessionID = t.AggregateID()
	}
	topic := fmt.Sprintf("oocana.reports.%s.%s", sessionID, tag)
	_ = n.publisher.Publish(context.Background(), topic, event)
}

// Multi fans one event out to several sinks, used to report to the
// console and NATS simultaneously.
type Multi struct {
	sinks []func(interface{})
}

// NewMulti builds a fan-out reporter over the given Report-shaped funcs.
func NewMulti(sinks ...func(interface{})) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Report(event interface{}) {
	for _, s := range m.sinks {
		s(event)
	}
}

// Broadcaster fans events out to any number of subscribers, each its own
// buffered channel, for the HTTP surface's Server-Sent Events endpoint.
// A slow subscriber drops events rather than blocking the session, the
// same "drops on overflow are acceptable" rule Console and NATSSink
// follow.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

// NewBroadcaster builds an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan string]struct{})}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe func the caller must defer.
func (b *Broadcaster) Subscribe(buffer int) (ch chan string, unsubscribe func()) {
	ch = make(chan string, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}
}

// Report implements the Reporter contract.
func (b *Broadcaster) Report(event interface{}) {
	line, err := encode(event)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- line:
		default:
		}
	}
}
