package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
)

var (
	// ErrTimeout is returned when no matching message arrived before the deadline.
	ErrTimeout = errors.New("correlation: timed out waiting for message")

	// ErrInvalidTimeout is returned for a non-positive timeout.
	ErrInvalidTimeout = errors.New("correlation: timeout must be positive")
)

// Bus is the part of the bus connection the registry needs.
// *mqtt.Client and *mqtt.Router satisfy it.
type Bus interface {
	AddHandler(filter string, handler mqtt.MessageHandler) mqtt.HandlerID
	RemoveHandler(id mqtt.HandlerID) bool
}

// Logger is the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}

// Message is one inbound bus message offered to waiting entries.
type Message struct {
	Topic   string
	Payload []byte
}

// Predicate decides whether a message is the reply an entry waits for.
// ctx ends with the entry's deadline. A predicate must not retain Payload.
type Predicate func(ctx context.Context, msg Message) bool

// Registry tracks in-flight waits for bus replies.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Registry struct {
	bus Bus

	mu      sync.Mutex
	entries map[uuid.UUID]*entry

	metrics *metrics.Bridge
	logger  Logger
}

// NewRegistry creates a registry attaching its handlers to bus.
func NewRegistry(bus Bus) *Registry {
	return &Registry{
		bus:     bus,
		entries: make(map[uuid.UUID]*entry),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *Registry) SetLogger(logger Logger) { r.logger = logger }

// SetMetrics enables wait metrics.
func (r *Registry) SetMetrics(m *metrics.Bridge) { r.metrics = m }

// Await blocks until a message on filter satisfies pred, the timeout
// elapses, or ctx ends, whichever happens first.
//
// Errors:
//   - ErrTimeout when the timeout elapsed without a match
//   - ctx.Err() (wrapped) when the caller gave up first
func (r *Registry) Await(ctx context.Context, filter string, pred Predicate, timeout time.Duration) (Message, error) {
	if timeout <= 0 {
		return Message{}, ErrInvalidTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e := newEntry(waitCtx, filter, pred)
	r.register(e)
	defer r.deregister(e)

	start := time.Now()
	r.metrics.WaitStarted()

	select {
	case msg := <-e.result:
		r.finished(e, metrics.OutcomeMatched, start)
		return msg, nil
	case <-waitCtx.Done():
	}

	if !e.expire() {
		// A match won the race after the deadline fired; its send is
		// already committed.
		msg := <-e.result
		r.finished(e, metrics.OutcomeMatched, start)
		return msg, nil
	}

	if err := ctx.Err(); err != nil {
		r.finished(e, metrics.OutcomeAbandoned, start)
		return Message{}, fmt.Errorf("correlation: wait abandoned: %w", err)
	}
	r.finished(e, metrics.OutcomeTimeout, start)
	return Message{}, ErrTimeout
}

// Pending returns the number of entries currently waiting.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) register(e *entry) {
	r.mu.Lock()
	r.entries[e.id] = e
	r.mu.Unlock()

	e.handlerID = r.bus.AddHandler(e.filter, deliverTo(e))
}

// deregister runs exactly once per entry, from Await's defer.
func (r *Registry) deregister(e *entry) {
	if !r.bus.RemoveHandler(e.handlerID) {
		r.logger.Error("correlation handler was already removed", "entry", e.id, "filter", e.filter)
	}

	r.mu.Lock()
	delete(r.entries, e.id)
	r.mu.Unlock()
}

func (r *Registry) finished(e *entry, outcome string, start time.Time) {
	took := time.Since(start)
	r.metrics.WaitFinished(outcome, took)
	r.logger.Debug("correlation wait finished", "entry", e.id, "filter", e.filter, "outcome", outcome, "took", took)
}

// waiter is one pending reply. The bus handler offers each message to it.
type waiter interface {
	Matches(msg Message) bool
	Complete(msg Message) bool
}

func deliverTo(w waiter) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		msg := Message{Topic: topic, Payload: payload}
		if w.Matches(msg) {
			w.Complete(msg)
		}
		return nil
	}
}

const (
	stateActive uint32 = iota
	stateDone
)

type entry struct {
	id        uuid.UUID
	filter    string
	predicate Predicate
	ctx       context.Context

	// handlerID is written before the entry can be deregistered and read
	// only by the goroutine running Await.
	handlerID mqtt.HandlerID

	state  atomic.Uint32
	result chan Message
}

func newEntry(ctx context.Context, filter string, pred Predicate) *entry {
	return &entry{
		id:        uuid.New(),
		filter:    filter,
		predicate: pred,
		ctx:       ctx,
		result:    make(chan Message, 1),
	}
}

func (e *entry) active() bool {
	return e.state.Load() == stateActive
}

// Matches evaluates the predicate for an entry that is still active.
func (e *entry) Matches(msg Message) bool {
	return e.active() && e.predicate(e.ctx, msg)
}

// Complete hands msg to the waiting caller if nothing else has finished
// the entry. It reports whether this call won.
func (e *entry) Complete(msg Message) bool {
	if !e.state.CompareAndSwap(stateActive, stateDone) {
		return false
	}
	payload := make([]byte, len(msg.Payload))
	copy(payload, msg.Payload)
	e.result <- Message{Topic: msg.Topic, Payload: payload}
	return true
}

// expire finishes the entry without a message. It reports whether the
// deadline won.
func (e *entry) expire() bool {
	return e.state.CompareAndSwap(stateActive, stateDone)
}
