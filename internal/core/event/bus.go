package event

import (
	"reflect"
	"sync"
)

// Bus is a synchronous publish/subscribe dispatcher keyed by event type.
// Publish runs every subscriber inline on the caller's goroutine, which is
// always the simulation loop, so subscribers may mutate simulation state.
type Bus struct {
	mu       sync.RWMutex // only protects handler registration
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]any),
	}
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers a typed handler for events of type T. Handlers run in
// subscription order.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeKey[T]()
	b.handlers[t] = append(b.handlers[t], fn)
}

// Publish delivers ev to every handler subscribed to T before returning.
func Publish[T any](b *Bus, ev T) {
	b.mu.RLock()
	handlers := b.handlers[typeKey[T]()]
	b.mu.RUnlock()
	for _, h := range handlers {
		// Subscribe and Publish share the same type key.
		h.(func(T))(ev)
	}
}

// Subscribers returns how many handlers listen for T.
func Subscribers[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[typeKey[T]()])
}
