package events

import (
	"context"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

// Lifecycle event names
const (
	SessionOpened     = "session.opened"
	SessionAutoClosed = "session.auto_closed"
	SessionClosed     = "session.closed"
	ReadingAppended   = "reading.appended"
)

// All lists every event the bus emits.
var All = []string{SessionOpened, SessionAutoClosed, SessionClosed, ReadingAppended}

// Event is the payload delivered to subscribers and publishers
type Event struct {
	Type      string    `json:"type"`
	PatientID string    `json:"patient_id"`
	SensorID  int64     `json:"sensor_id,omitempty"`
	SessionID int64     `json:"session_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher forwards events to an external system
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Bus fans lifecycle events out to in-process subscribers
type Bus struct {
	events *nuts.EventEmitter
}

// NewBus creates a new Bus
func NewBus() *Bus {
	return &Bus{events: nuts.NewEventEmitter()}
}

// Emit dispatches e to the subscribers of e.Type
func (b *Bus) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := b.events.Emit(e.Type, e); err != nil {
		nuts.L.Errorf("[Events] Failed to dispatch %s for patient %s: %v", e.Type, e.PatientID, err)
	}
}

// Subscribe registers handler for an event. Registering the same id twice
// replaces the earlier handler.
func (b *Bus) Subscribe(event, id string, handler func(Event)) {
	if _, err := b.events.On(event, id, handler); err != nil {
		nuts.L.Errorf("[Events] Failed to subscribe %s to %s: %v", id, event, err)
	}
}

// Forwarder hands events to a Publisher from a single background worker so
// emitters never wait on the broker. Events are delivered in emit order;
// when the queue is full new events are dropped and logged.
type Forwarder struct {
	pub     Publisher
	timeout time.Duration
	queue   chan Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// DefaultQueueSize bounds the events waiting for publication
const DefaultQueueSize = 1024

// Forward publishes every event through pub. Publish failures are logged
// and do not affect the operation that emitted the event.
func (b *Bus) Forward(pub Publisher, timeout time.Duration, queueSize int) *Forwarder {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	f := &Forwarder{
		pub:     pub,
		timeout: timeout,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go f.run()
	for _, event := range All {
		b.Subscribe(event, "publisher", f.enqueue)
	}
	return f
}

func (f *Forwarder) enqueue(e Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- e:
	default:
		nuts.L.Warnf("[Events] Publish queue full, dropped %s for patient %s", e.Type, e.PatientID)
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	for e := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		if err := f.pub.Publish(ctx, e); err != nil {
			nuts.L.Errorf("[Events] Failed to publish %s for patient %s: %v", e.Type, e.PatientID, err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are published
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	<-f.done
	return nil
}
