package gateway

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Handler receives the raw payload of a dispatched gateway event. Handlers
// run in registration order; a panic in one handler is recovered and logged
// and never stops later handlers or the session's run loop.
type Handler func(data json.RawMessage)

type registration struct {
	id string
	fn Handler
}

// dispatcher maps event names (normalized to uppercase) to ordered handler
// lists. Registrations are never removed automatically.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	logger   *slog.Logger
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		handlers: make(map[string][]registration),
		logger:   logger,
	}
}

// register appends a handler for the given event name, case-insensitively.
// Insertion order is invocation order.
func (d *dispatcher) register(event string, fn Handler) {
	key := strings.ToUpper(event)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[key] = append(d.handlers[key], registration{
		id: uuid.NewString(),
		fn: fn,
	})
}

// dispatch invokes every handler registered for the event, in order,
// synchronously with respect to each other.
func (d *dispatcher) dispatch(event string, data json.RawMessage) {
	key := strings.ToUpper(event)
	d.mu.RLock()
	regs := d.handlers[key]
	d.mu.RUnlock()

	for _, reg := range regs {
		d.invoke(key, reg, data)
	}
}

func (d *dispatcher) invoke(event string, reg registration, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				"event", event,
				"handler", reg.id,
				"panic", r,
			)
		}
	}()
	reg.fn(data)
}
