// Package events is the per-subscriber fan-out bus of spec.md §4.H. It
// generalizes the teacher's internal/ui/notifier.Notifier (a bounded,
// drop-on-full broadcast-ping channel) from an untyped ping to typed,
// ordered Event values, and attaches a dropped-event count to the next
// delivered event on overflow instead of silently discarding it.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Type names the six event kinds spec.md §4.H lists.
type Type string

const (
	TypeNotebookState Type = "notebook_state"
	TypeRunStarted    Type = "run_started"
	TypeCellStatus    Type = "cell_status"
	TypeCellOutput    Type = "cell_output"
	TypeCellError     Type = "cell_error"
	TypeRunFinished   Type = "run_finished"
)

// Event is one typed, ordered item a subscriber receives. RunID is set to
// the current run whenever the event was emitted during a run (zero
// otherwise, e.g. for notebook_state after a plain PATCH).
type Event struct {
	Type    Type
	RunID   int64
	Payload any
	// Dropped is attached to the first event delivered after this
	// subscriber's queue overflowed, per spec.md §4.H.
	Dropped int
}

// defaultQueueDepth is the default bound spec.md §4.H names.
const defaultQueueDepth = 64

// Bus fans out published events to every subscriber's own bounded queue.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	queueDepth  int
	snapshot    func() any // supplies the notebook_state payload on subscribe
}

type subscriber struct {
	mu      sync.Mutex
	ch      chan Event
	dropped int
}

// New returns a Bus with the given per-subscriber queue depth (spec.md
// §4.H default 64) and a snapshot function used to push an immediate
// notebook_state event on Subscribe.
func New(queueDepth int, snapshot func() any) *Bus {
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Bus{
		subscribers: make(map[string]*subscriber),
		queueDepth:  queueDepth,
		snapshot:    snapshot,
	}
}

// Subscribe registers a new subscriber and immediately pushes a
// notebook_state snapshot, per spec.md §4.H. The returned id is passed to
// Unsubscribe on disconnect.
func (b *Bus) Subscribe() (id string, ch <-chan Event) {
	sub := &subscriber{ch: make(chan Event, b.queueDepth)}
	subID := uuid.New().String()

	b.mu.Lock()
	b.subscribers[subID] = sub
	b.mu.Unlock()

	if b.snapshot != nil {
		sub.ch <- Event{Type: TypeNotebookState, Payload: b.snapshot()}
	}

	return subID, sub.ch
}

// Unsubscribe removes a subscriber, closing its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish fans an event out to every subscriber. Events published within
// one run are sent in the sequence the caller calls Publish, and each
// subscriber's own mutex serializes concurrent Publish calls against that
// subscriber so order is preserved per subscriber.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.mu.Lock()
		out := evt
		if sub.dropped > 0 {
			out.Dropped = sub.dropped
		}
		select {
		case sub.ch <- out:
			sub.dropped = 0
		default:
			// Queue full: drop the oldest pending event to make room,
			// tag this one with the running drop count, and enqueue it
			// — the warning rides on the next delivered event.
			select {
			case <-sub.ch:
			default:
			}
			sub.dropped++
			out.Dropped = sub.dropped
			select {
			case sub.ch <- out:
				sub.dropped = 0
			default:
				// Still full (a receiver raced us) — keep counting.
				sub.dropped++
			}
		}
		sub.mu.Unlock()
	}
}

// SubscriberCount reports the number of active subscribers, used by
// diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
