package session

import "testing"

func TestSignalPublishReachesSubscribers(t *testing.T) {
	sig := NewSignal()
	defer sig.Close()

	id1, ch1 := sig.Subscribe(1)
	_, ch2 := sig.Subscribe(1)

	sig.Publish()

	select {
	case <-ch1:
	default:
		t.Error("subscriber 1 did not receive the event")
	}
	select {
	case <-ch2:
	default:
		t.Error("subscriber 2 did not receive the event")
	}

	// After unsubscribing, the channel is closed and publishing is safe.
	sig.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("unsubscribed channel should be closed")
	}
	sig.Publish()
}

func TestSignalDropsWhenBufferFull(t *testing.T) {
	sig := NewSignal()
	defer sig.Close()

	_, ch := sig.Subscribe(1)
	sig.Publish()
	sig.Publish() // must not block

	<-ch
	select {
	case <-ch:
		t.Error("second event should have been dropped")
	default:
	}
}

func TestSignalCloseIdempotent(t *testing.T) {
	sig := NewSignal()
	_, ch := sig.Subscribe(1)

	sig.Close()
	sig.Close()
	sig.Publish() // no-op after close

	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed after Close")
	}

	// Subscribing after close yields an already-closed channel.
	_, late := sig.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("late subscription should receive a closed channel")
	}
}
