package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func receive(t *testing.T, s *Subscription, n int) []Notification {
	t.Helper()
	out := make([]Notification, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case msg, ok := <-s.C():
			if !ok {
				t.Fatalf("subscription closed after %d of %d notifications", len(out), n)
			}
			out = append(out, msg)
		case <-timeout:
			t.Fatalf("timed out after %d of %d notifications", len(out), n)
		}
	}
	return out
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	hub.Publish(Notification{Type: TypeWorkItemReady})
	if hub.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestHub_EverySubscriberSeesEveryNotificationInOrder(t *testing.T) {
	const subscribers, published = 4, 50
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subs := make([]*Subscription, subscribers)
	for i := range subs {
		subs[i] = hub.Subscribe(ctx)
	}
	for i := 0; i < published; i++ {
		hub.Publish(Notification{Type: TypeWorkItemStatusChanged, TransactionID: fmt.Sprint(i)})
	}

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			got := receive(t, s, published)
			for i, n := range got {
				if n.TransactionID != fmt.Sprint(i) {
					t.Errorf("subscriber %s: position %d has %s", s.ID, i, n.TransactionID)
					return
				}
			}
		}(s)
	}
	wg.Wait()
}

func TestHub_SubscriberOnlySeesLaterNotifications(t *testing.T) {
	hub := NewHub()
	hub.Publish(Notification{TransactionID: "before"})

	s := hub.Subscribe(context.Background())
	defer s.Close()
	hub.Publish(Notification{TransactionID: "after"})

	got := receive(t, s, 1)
	if got[0].TransactionID != "after" {
		t.Errorf("expected 'after', got %q", got[0].TransactionID)
	}
}

func TestHub_PublishDoesNotWaitForSlowConsumer(t *testing.T) {
	hub := NewHub()
	s := hub.Subscribe(context.Background())
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(Notification{TransactionID: fmt.Sprint(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on an unread subscriber")
	}
	got := receive(t, s, 1000)
	if got[999].TransactionID != "999" {
		t.Errorf("expected last notification 999, got %s", got[999].TransactionID)
	}
}

func TestHub_CloseRemovesOnlyThatSubscriber(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe(context.Background())
	b := hub.Subscribe(context.Background())
	defer b.Close()

	a.Close()
	a.Close()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}
	if _, ok := <-a.C(); ok {
		t.Error("expected closed channel for closed subscription")
	}

	hub.Publish(Notification{TransactionID: "x"})
	if got := receive(t, b, 1); got[0].TransactionID != "x" {
		t.Errorf("unexpected notification %+v", got[0])
	}
}

func TestHub_ContextCancelUnsubscribes(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	s := hub.Subscribe(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not removed after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(Notification{})
	if s.Pending() != 0 {
		t.Errorf("expected nothing queued on a closed subscription, got %d", s.Pending())
	}
}

func TestHub_ConcurrentSubscribeAndPublish(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := hub.Subscribe(context.Background())
			s.Close()
		}()
		go func() {
			defer wg.Done()
			hub.Publish(Notification{Type: TypeEncounterCompleted})
		}()
	}
	wg.Wait()
	if hub.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}
