package mqtt

import (
	"strings"
	"sync"
)

// MessageHandler is the callback signature for received messages.
//
// The payload slice is shared between every handler that receives the
// message and must be treated as read-only.
//
// A returned error is logged and has no effect on other handlers.
type MessageHandler func(topic string, payload []byte) error

// HandlerID identifies a handler registered with AddHandler.
type HandlerID uint64

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type route struct {
	filter  string
	handler MessageHandler
}

// Router fans every inbound message out to all registered handlers whose
// filter matches the message topic.
//
// The handler set is the only shared mutable state of the bus. Each
// AddHandler is paired with at most one effective RemoveHandler: removing
// an id twice reports false the second time and changes nothing.
//
// Thread Safety:
//   - All methods are safe for concurrent use, including from inside a handler.
type Router struct {
	mu       sync.RWMutex
	nextID   HandlerID
	handlers map[HandlerID]route

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[HandlerID]route)}
}

// AddHandler registers handler for messages whose topic matches filter.
// The filter may use the + and # wildcards; "#" receives everything.
func (r *Router) AddHandler(filter string, handler MessageHandler) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.handlers[r.nextID] = route{filter: filter, handler: handler}
	return r.nextID
}

// RemoveHandler deregisters a handler. It reports whether the id was
// still registered.
func (r *Router) RemoveHandler(id HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[id]; !ok {
		return false
	}
	delete(r.handlers, id)
	return true
}

// HandlerCount returns the number of registered handlers.
func (r *Router) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// SetLogger sets the logger used for handler errors and panics.
func (r *Router) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Router) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Deliver hands a message to every matching handler. Handlers registered
// or removed while a delivery is in progress take effect for the next
// message. A failing or panicking handler never stops the others.
func (r *Router) Deliver(topic string, payload []byte) {
	r.mu.RLock()
	targets := make([]MessageHandler, 0, len(r.handlers))
	for _, rt := range r.handlers {
		if Match(rt.filter, topic) {
			targets = append(targets, rt.handler)
		}
	}
	r.mu.RUnlock()

	for _, h := range targets {
		r.invoke(h, topic, payload)
	}
}

func (r *Router) invoke(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			if logger := r.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered", "topic", topic, "panic", rec)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		if logger := r.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error", "topic", topic, "error", err)
		}
	}
}

// Match reports whether topic matches the subscription filter, following
// MQTT 3.1.1 wildcard rules. Topics beginning with '$' are not matched
// by a leading wildcard.
func Match(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if strings.HasPrefix(topic, "$") && (filter[0] == '+' || filter[0] == '#') {
		return false
	}

	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, level := range fl {
		if level == "#" {
			return i == len(fl)-1
		}
		if i >= len(tl) {
			return false
		}
		if level != "+" && level != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
