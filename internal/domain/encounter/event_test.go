package encounter

import (
	"fmt"
	"testing"
	"time"
)

func TestEventChannel_PreservesOrder(t *testing.T) {
	ch := NewEventChannel()
	defer ch.Close()

	for i := 0; i < 100; i++ {
		if !ch.Send(CompletedEvent{EncounterID: fmt.Sprintf("enc-%d", i)}) {
			t.Fatal("Send returned false on open channel")
		}
	}
	for i := 0; i < 100; i++ {
		select {
		case ev := <-ch.C():
			if want := fmt.Sprintf("enc-%d", i); ev.EncounterID != want {
				t.Fatalf("expected %s, got %s", want, ev.EncounterID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestEventChannel_SendDoesNotBlockWithoutConsumer(t *testing.T) {
	ch := NewEventChannel()
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			ch.Send(CompletedEvent{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked without a consumer")
	}
}

func TestEventChannel_Close(t *testing.T) {
	ch := NewEventChannel()
	ch.Close()
	ch.Close()

	if ch.Send(CompletedEvent{}) {
		t.Error("expected Send to fail after Close")
	}
	select {
	case _, ok := <-ch.C():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Close")
	}
}
