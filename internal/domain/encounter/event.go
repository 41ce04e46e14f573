package encounter

import (
	"sync"

	"github.com/google/uuid"
)

// CompletedEvent announces that a registered patient's encounter has
// finished. It is emitted at most once per encounter id.
type CompletedEvent struct {
	PatientID   string    `json:"patient_id"`
	EncounterID string    `json:"encounter_id"`
	PracticeID  string    `json:"practice_id"`
	WorkItemID  uuid.UUID `json:"work_item_id"`
}

// EventChannel is an unbounded single-producer single-consumer queue. Send
// never blocks; the consumer reads from C in send order.
type EventChannel struct {
	mu     sync.Mutex
	queue  []CompletedEvent
	closed bool

	signal    chan struct{}
	out       chan CompletedEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewEventChannel() *EventChannel {
	ch := &EventChannel{
		signal: make(chan struct{}, 1),
		out:    make(chan CompletedEvent),
		done:   make(chan struct{}),
	}
	go ch.pump()
	return ch
}

// Send queues ev. It reports false once the channel is closed.
func (ch *EventChannel) Send(ev CompletedEvent) bool {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return false
	}
	ch.queue = append(ch.queue, ev)
	ch.mu.Unlock()

	select {
	case ch.signal <- struct{}{}:
	default:
	}
	return true
}

// C is closed after Close; events still queued at that point are dropped.
func (ch *EventChannel) C() <-chan CompletedEvent {
	return ch.out
}

func (ch *EventChannel) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.queue)
}

func (ch *EventChannel) Close() {
	ch.closeOnce.Do(func() {
		ch.mu.Lock()
		ch.closed = true
		ch.queue = nil
		ch.mu.Unlock()
		close(ch.done)
	})
}

func (ch *EventChannel) pump() {
	defer close(ch.out)
	for {
		ch.mu.Lock()
		if len(ch.queue) == 0 {
			ch.mu.Unlock()
			select {
			case <-ch.signal:
				continue
			case <-ch.done:
				return
			}
		}
		ev := ch.queue[0]
		ch.queue = ch.queue[1:]
		ch.mu.Unlock()

		select {
		case ch.out <- ev:
		case <-ch.done:
			return
		}
	}
}
