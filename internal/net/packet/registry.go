package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc is the callback signature for decoded messages.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, msg Message)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps packet types to handlers with state-based access control.
type Registry struct {
	handlers map[uint8]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[uint8]*handlerEntry),
		log:      log,
	}
}

// Register maps a packet type to a handler, restricted to the given session states.
func (reg *Registry) Register(typ uint8, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[typ] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Has reports whether a handler is registered for typ.
func (reg *Registry) Has(typ uint8) bool {
	_, ok := reg.handlers[typ]
	return ok
}

// Dispatch validates the session state and calls the handler for msg.
// Messages without a handler are ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, msg Message) error {
	typ := msg.Type()
	entry, ok := reg.handlers[typ]
	if !ok {
		reg.log.Debug("unhandled packet", zap.String("type", TypeName(typ)), zap.String("state", state.String()))
		return nil
	}
	if !entry.allowedStates[state] {
		reg.log.Warn("packet not allowed in state",
			zap.String("type", TypeName(typ)),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("packet %s not allowed in state %s", TypeName(typ), state)
	}
	return reg.safeCall(entry.fn, sess, msg, typ)
}

// safeCall executes a handler with panic recovery so one bad packet cannot
// take down the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, msg Message, typ uint8) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("type", TypeName(typ)),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", TypeName(typ), rec)
		}
	}()
	fn(sess, msg)
	return nil
}
