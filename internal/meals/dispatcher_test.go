package meals

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherDeliversLatestToNewSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	dispatcher.Publish(Snapshot{Sequence: 1})
	dispatcher.Publish(Snapshot{Sequence: 2})

	stream, cleanup := dispatcher.Subscribe(context.Background())
	defer cleanup()

	select {
	case snapshot := <-stream:
		if snapshot.Sequence != 2 {
			t.Fatalf("expected latest snapshot, got %d", snapshot.Sequence)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected immediate delivery")
	}
}

func TestDispatcherCoalescesUnreadSnapshots(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background())
	defer cleanup()

	for sequence := uint64(1); sequence <= 5; sequence++ {
		dispatcher.Publish(Snapshot{Sequence: sequence})
	}

	snapshot := <-stream
	if snapshot.Sequence != 5 {
		t.Fatalf("expected only the newest snapshot, got %d", snapshot.Sequence)
	}
	select {
	case extra := <-stream:
		t.Fatalf("unexpected extra snapshot %d", extra.Sequence)
	default:
	}
}

func TestDispatcherCleanupOnContextCancel(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	stream, cleanup := dispatcher.Subscribe(ctx)
	defer cleanup()

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				if dispatcher.SubscriberCount() != 0 {
					t.Fatalf("expected subscriber to be removed")
				}
				return
			}
		case <-deadline:
			t.Fatalf("expected stream to close after cancel")
		}
	}
}

func TestDispatcherCleanupIsIdempotent(t *testing.T) {
	dispatcher := NewDispatcher()
	_, cleanup := dispatcher.Subscribe(context.Background())
	cleanup()
	cleanup()
	if dispatcher.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers")
	}
	dispatcher.Publish(Snapshot{Sequence: 1})
	if latest, ok := dispatcher.Latest(); !ok || latest.Sequence != 1 {
		t.Fatalf("unexpected latest snapshot %#v", latest)
	}
}

func TestDispatcherCleanupStopsContextWatcher(t *testing.T) {
	dispatcher := NewDispatcher()
	for index := 0; index < 3; index++ {
		_, cleanup := dispatcher.Subscribe(context.Background())
		cleanup()
	}

	stopped := make(chan struct{})
	go func() {
		dispatcher.watchers.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("expected cleanup to release the context watchers")
	}
}
