package kizuna

import (
	"reflect"
	"sync"
)

// MaxEventTypes defines the maximum number of unique event types that can be
// registered in the EventBus. This value is fixed at 256.
const MaxEventTypes = 256

// EventBus delivers typed events to subscribers. Handlers run synchronously,
// in subscription order, on the publishing goroutine.
//
// Ownership handles may be dropped from any goroutine, so the bus is safe
// for concurrent use. Handlers may subscribe or publish from inside a
// handler.
type EventBus struct {
	mu              sync.RWMutex
	eventTypeMap    map[reflect.Type]uint8
	handlers        [MaxEventTypes][]any
	nextEventTypeID uint16
}

// Subscribe registers a handler function to be called when an event of type
// `T` is published. Handlers are stored in the order they are subscribed.
//
// This operation may allocate memory if it's the first time subscribing to a
// particular event type or if the internal handler list needs to be resized.
// It takes the bus's write lock, so it may be called from any goroutine,
// including from inside a running handler.
//
// Parameters:
//   - bus: The EventBus instance to subscribe to.
//   - handler: A function that takes a single argument of type `T`.
func Subscribe[T any](bus *EventBus, handler func(T)) {
	t := reflect.TypeFor[T]()
	bus.mu.Lock()
	defer bus.mu.Unlock()
	id := bus.getEventTypeID(t)
	if cap(bus.handlers[id]) == 0 {
		bus.handlers[id] = make([]any, 0, 4)
	}
	bus.handlers[id] = append(bus.handlers[id], handler)
}

// Publish broadcasts an event of type `T` to all registered handlers for that
// type. The handlers are called synchronously, in the order they were
// subscribed, on the publishing goroutine.
//
// The handler list is read under the bus's read lock and invoked after the
// lock is released, so handlers may publish or subscribe themselves. A handler
// subscribed during a Publish call only sees later events. Publishing on a nil
// bus is a no-op, which lets owners without a bus skip their notifications.
//
// Parameters:
//   - bus: The EventBus instance to publish to, or nil.
//   - event: The event data of type `T` to be sent to handlers.
func Publish[T any](bus *EventBus, event T) {
	if bus == nil {
		return
	}
	t := reflect.TypeFor[T]()
	bus.mu.RLock()
	id, ok := bus.eventTypeMap[t]
	var hs []any
	if ok {
		// Appends never touch elements below len, so the slice header is a
		// stable snapshot once the lock is dropped.
		hs = bus.handlers[id]
	}
	bus.mu.RUnlock()
	for _, h := range hs {
		h.(func(T))(event)
	}
}

// HandlerCount returns how many handlers are subscribed to events of type
// `T`.
//
// Parameters:
//   - bus: The EventBus instance to inspect.
func HandlerCount[T any](bus *EventBus) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	id, ok := bus.eventTypeMap[reflect.TypeFor[T]()]
	if !ok {
		return 0
	}
	return len(bus.handlers[id])
}

// getEventTypeID retrieves or assigns an ID for the event type. Callers hold
// the write lock.
func (bus *EventBus) getEventTypeID(t reflect.Type) uint8 {
	if bus.eventTypeMap == nil {
		bus.eventTypeMap = make(map[reflect.Type]uint8)
	}
	if id, ok := bus.eventTypeMap[t]; ok {
		return id
	}
	if int(bus.nextEventTypeID) >= MaxEventTypes {
		panic("kizuna: too many event types")
	}
	id := uint8(bus.nextEventTypeID)
	bus.nextEventTypeID++
	bus.eventTypeMap[t] = id
	return id
}
