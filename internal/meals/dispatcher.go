package meals

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the full meal collection as of one store change. Receivers
// must treat Meals as read-only; it is shared between subscribers.
type Snapshot struct {
	Meals    []Meal
	Sequence uint64
	At       time.Time
}

// Dispatcher fans store snapshots out to subscribers. Delivery coalesces:
// each subscriber holds at most one undelivered snapshot, and a newer one
// replaces it, so publishers never block on slow readers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*snapshotSubscriber
	nextID      int64
	latest      *Snapshot
	watchers    sync.WaitGroup
}

type snapshotSubscriber struct {
	id     int64
	stream chan Snapshot
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[int64]*snapshotSubscriber),
	}
}

// Subscribe registers a subscriber. The most recently published snapshot, if
// any, is delivered immediately. The returned cleanup unregisters the
// subscriber and closes the stream; it also runs when ctx is done.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	subscriber := &snapshotSubscriber{
		stream: make(chan Snapshot, 1),
		done:   make(chan struct{}),
	}

	d.mu.Lock()
	d.nextID++
	subscriber.id = d.nextID
	d.subscribers[subscriber.id] = subscriber
	if d.latest != nil {
		subscriber.stream <- *d.latest
	}
	d.mu.Unlock()

	cleanup := func() {
		d.unregisterSubscriber(subscriber)
	}
	d.watchers.Add(1)
	go func() {
		defer d.watchers.Done()
		select {
		case <-ctx.Done():
			cleanup()
		case <-subscriber.done:
		}
	}()
	return subscriber.stream, cleanup
}

// Publish delivers snapshot to every subscriber, replacing any snapshot the
// subscriber has not consumed yet.
func (d *Dispatcher) Publish(snapshot Snapshot) {
	d.mu.Lock()
	latest := snapshot
	d.latest = &latest
	d.mu.Unlock()

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, subscriber := range d.subscribers {
		deliverLatest(subscriber.stream, snapshot)
	}
}

// Latest returns the most recently published snapshot.
func (d *Dispatcher) Latest() (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return Snapshot{}, false
	}
	return *d.latest, true
}

// SubscriberCount reports how many subscribers are registered.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

func (d *Dispatcher) unregisterSubscriber(subscriber *snapshotSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[subscriber.id]; !ok {
		return
	}
	delete(d.subscribers, subscriber.id)
	subscriber.once.Do(func() {
		close(subscriber.done)
		close(subscriber.stream)
	})
}

func deliverLatest(stream chan Snapshot, snapshot Snapshot) {
	select {
	case stream <- snapshot:
		return
	default:
	}
	// Drop the stale pending snapshot and retry once.
	select {
	case <-stream:
	default:
	}
	select {
	case stream <- snapshot:
	default:
	}
}
