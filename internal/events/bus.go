// Package events implements the typed publish/subscribe bus that lets
// external plugins observe and veto default server behavior, per
// spec.md §4.6.
package events

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Type is one of the closed set of event identifiers. New event types may
// be added by declaring additional constants; the set is otherwise fixed.
type Type int

const (
	OnPluginLoaded Type = iota
	OnAuth
	OnMessage
	OnPosition
	OnBlock
)

func (t Type) String() string {
	switch t {
	case OnPluginLoaded:
		return "OnPluginLoaded"
	case OnAuth:
		return "OnAuth"
	case OnMessage:
		return "OnMessage"
	case OnPosition:
		return "OnPosition"
	case OnBlock:
		return "OnBlock"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Payload is an opaque key->value table matching a packet's logical
// fields. Handlers see this, never the raw wire bytes, decoupling the bus
// from internal/wire per spec.md §4.6.
type Payload map[string]interface{}

// SessionRef is whatever a handler needs to identify the session an event
// concerns; the bus treats it opaquely. internal/server passes a
// *session.Session here.
type SessionRef interface{}

// Handler observes one triggered event. It may set flags on the bus (via
// the Bus passed into trigger, see Register) before returning; a faulting
// handler is caught and logged, never propagated.
type Handler func(sess SessionRef, payload Payload, bus *Bus)

type subscriber struct {
	name    string
	handler Handler
}

// Bus is the in-process, single-goroutine event dispatcher. All calls are
// expected from the server loop goroutine; it holds no internal locking
// because nothing else touches it, per the single-threaded cooperative
// model in spec.md §5.
type Bus struct {
	subs  map[Type][]subscriber
	flags map[string]bool
	log   zerolog.Logger
}

// New creates an empty bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		subs:  make(map[Type][]subscriber),
		flags: make(map[string]bool),
		log:   log,
	}
}

// Register appends handler to the ordered subscriber list for typ. name
// is used only for logging.
func (b *Bus) Register(typ Type, name string, handler Handler) {
	b.subs[typ] = append(b.subs[typ], subscriber{name: name, handler: handler})
}

// Trigger resets per-call flags, then invokes every subscriber for typ in
// registration order. A subscriber panic is recovered, logged, and does
// not prevent subsequent subscribers from running.
func (b *Bus) Trigger(typ Type, sess SessionRef, payload Payload) {
	b.flags = make(map[string]bool)

	for _, sub := range b.subs[typ] {
		b.runOne(typ, sub, sess, payload)
	}
}

func (b *Bus) runOne(typ Type, sub subscriber, sess SessionRef, payload Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", typ.String()).
				Str("handler", sub.name).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	sub.handler(sess, payload, b)
}

// SetFlag records a named boolean for the current Trigger call. Meant to
// be called by a handler from within its own invocation.
func (b *Bus) SetFlag(name string, value bool) {
	b.flags[name] = value
}

// GetFlag reads a flag set during the most recent Trigger call. Flags are
// cleared at the start of every Trigger.
func (b *Bus) GetFlag(name string) bool {
	return b.flags[name]
}

// HandlerCount reports how many handlers are registered for typ, mainly
// for tests and diagnostics.
func (b *Bus) HandlerCount(typ Type) int {
	return len(b.subs[typ])
}
