// Package notification fans status notifications out to live viewers. Each
// subscriber owns a private unbounded FIFO queue, so a slow or departing
// viewer never blocks publishers or steals messages from other viewers.
package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Notification types broadcast to dashboards.
const (
	TypeEncounterCompleted    = "ENCOUNTER_COMPLETED"
	TypeWorkItemReady         = "WORK_ITEM_READY"
	TypeWorkItemStatusChanged = "WORK_ITEM_STATUS_CHANGED"
	TypeWorkItemSubmitted     = "WORK_ITEM_SUBMITTED"
)

// Notification is an immutable status message. TransactionID carries the
// work item id the message concerns.
type Notification struct {
	Type          string `json:"type"`
	TransactionID string `json:"transactionId"`
	EncounterID   string `json:"encounterId"`
	PatientID     string `json:"patientId"`
	Message       string `json:"message"`
}

// Publisher is the write side of the hub.
type Publisher interface {
	Publish(n Notification)
}

// Hub tracks subscribers by id. Safe for concurrent Subscribe, Close and
// Publish.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]*Subscription)}
}

// Subscribe registers a new subscriber that receives every notification
// published from now on. The subscription ends when ctx is cancelled or
// Close is called; its channel is then closed.
func (h *Hub) Subscribe(ctx context.Context) *Subscription {
	s := &Subscription{
		ID:     uuid.New(),
		hub:    h,
		signal: make(chan struct{}, 1),
		out:    make(chan Notification),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()

	go s.pump()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// Publish enqueues n on every current subscriber and returns immediately.
func (h *Hub) Publish(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.enqueue(n)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is one viewer's independent stream.
type Subscription struct {
	ID uuid.UUID

	hub *Hub

	mu     sync.Mutex
	queue  []Notification
	closed bool

	signal    chan struct{}
	out       chan Notification
	done      chan struct{}
	closeOnce sync.Once
}

// C yields notifications in publish order. It is closed after Close.
func (s *Subscription) C() <-chan Notification {
	return s.out
}

// Pending returns how many notifications are queued but not yet read.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close removes the subscription from the hub and drops anything still queued.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s.ID)
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Subscription) enqueue(n Notification) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, n)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// pump moves queued notifications to the consumer channel one at a time.
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		n := s.queue[0]
		s.queue[0] = Notification{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- n:
		case <-s.done:
			return
		}
	}
}
