package scheduler

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/passbi/ridepool/internal/models"
)

// DefaultCapacity fits eight full heap levels
const DefaultCapacity = 511

var (
	ErrFull  = errors.New("can't schedule event: max size reached")
	ErrEmpty = errors.New("can't recover event: min-heap empty")
)

// EventScheduler orders ride events by time on a fixed-capacity min-heap.
//
// Events with equal time are returned START before END, then in the order
// they were scheduled.
type EventScheduler struct {
	queue    eventQueue
	capacity int
	seq      uint64
}

// New creates a scheduler holding at most capacity pending events
func New(capacity int) *EventScheduler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &EventScheduler{
		queue:    make(eventQueue, 0, capacity),
		capacity: capacity,
	}
	heap.Init(&s.queue)
	return s
}

// Schedule adds an event to the heap
func (s *EventScheduler) Schedule(ev models.Event) error {
	if len(s.queue) >= s.capacity {
		return fmt.Errorf("%w (%d events, ride %d %s)", ErrFull, s.capacity, ev.RideID, ev.Kind)
	}
	heap.Push(&s.queue, &queuedEvent{event: ev, seq: s.seq})
	s.seq++
	return nil
}

// Next removes and returns the earliest pending event.
// ErrEmpty signals that the timeline has been fully drained.
func (s *EventScheduler) Next() (models.Event, error) {
	if len(s.queue) == 0 {
		return models.Event{}, ErrEmpty
	}
	item := heap.Pop(&s.queue).(*queuedEvent)
	return item.event, nil
}

// Len returns the number of pending events
func (s *EventScheduler) Len() int { return len(s.queue) }

// Cap returns the maximum number of pending events
func (s *EventScheduler) Cap() int { return s.capacity }

// queuedEvent wraps an event with its insertion sequence
type queuedEvent struct {
	event models.Event
	seq   uint64
	index int // for heap
}

// eventQueue implements heap.Interface
type eventQueue []*queuedEvent

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.event.Time != b.event.Time {
		return a.event.Time < b.event.Time
	}
	if a.event.Kind != b.event.Kind {
		return a.event.Kind < b.event.Kind
	}
	return a.seq < b.seq
}

func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue) Push(x interface{}) {
	n := len(*q)
	item := x.(*queuedEvent)
	item.index = n
	*q = append(*q, item)
}

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[0 : n-1]
	return item
}
