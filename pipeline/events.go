package pipeline

import (
	"log/slog"
	"sync"
)

// Observer receives batch notifications from the orchestrator. Calls
// arrive on the batch worker's goroutine; implementations that drive a
// front end must hand them off rather than touch shared state.
type Observer interface {
	OnProgress(current, total int)
	OnStatus(message string)
	OnDone(count int)
	OnFatal(message string)
}

// EventKind tags an Event.
type EventKind int

const (
	EventProgress EventKind = iota
	EventStatus
	EventDone
	EventFatal
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventStatus:
		return "status"
	case EventDone:
		return "done"
	case EventFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Event is one notification delivered through a ChannelObserver.
type Event struct {
	Kind    EventKind
	Current int
	Total   int
	Count   int
	Message string
}

// Terminal reports whether no further events follow for the batch.
func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventFatal
}

// ChannelObserver turns notifications into Events on a channel so the
// consumer owns all state it renders. Progress and status events are
// dropped when the buffer is full since a newer one supersedes them;
// done and fatal events always block until delivered.
type ChannelObserver struct {
	events chan Event

	mu     sync.Mutex
	closed bool
}

// NewChannelObserver creates an observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelObserver{events: make(chan Event, buffer)}
}

// Events returns the receive side of the event channel.
func (c *ChannelObserver) Events() <-chan Event {
	return c.events
}

// Close closes the event channel. Call it once the batch has returned.
func (c *ChannelObserver) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

func (c *ChannelObserver) OnProgress(current, total int) {
	c.offer(Event{Kind: EventProgress, Current: current, Total: total})
}

func (c *ChannelObserver) OnStatus(message string) {
	c.offer(Event{Kind: EventStatus, Message: message})
}

func (c *ChannelObserver) OnDone(count int) {
	c.deliver(Event{Kind: EventDone, Count: count})
}

func (c *ChannelObserver) OnFatal(message string) {
	c.deliver(Event{Kind: EventFatal, Message: message})
}

func (c *ChannelObserver) offer(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		slog.Debug("observer buffer full, dropping event", slog.String("kind", ev.Kind.String()))
	}
}

func (c *ChannelObserver) deliver(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) OnProgress(int, int) {}
func (NopObserver) OnStatus(string)     {}
func (NopObserver) OnDone(int)          {}
func (NopObserver) OnFatal(string)      {}
