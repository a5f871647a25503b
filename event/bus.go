// Package event provides the named callback registry that effects raise
// events into, and the deferred queue that keeps those callbacks from
// mutating the registry while it is being iterated.
package event

import (
	"fmt"
	"io"
	"log"
	"slices"

	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/sim/id"
)

// HookPosEventDelivered is invoked after an event has been handed to all the
// handlers registered for its name.
var HookPosEventDelivered = &hooking.HookPos{Name: "EventDelivered"}

// HookPosEventDeferred is invoked when an event emitted during a delivery is
// rerouted into the deferred queue.
var HookPosEventDeferred = &hooking.HookPos{Name: "EventDeferred"}

// An Event is a named instance with arbitrary arguments.
type Event struct {
	Name string
	Args []any
}

// A Handler reacts to an event.
type Handler func(evt Event) error

// HandlerID identifies a registration on a Bus.
type HandlerID int64

// An Emitter accepts events for immediate delivery.
type Emitter interface {
	Emit(evt Event)
}

// An Enqueuer accepts events for later delivery.
type Enqueuer interface {
	Enqueue(evt Event) bool
}

type registration struct {
	id      HandlerID
	handler Handler
}

// A Bus keeps handlers by event name.
//
// Emitting from inside a handler does not recurse into the registry. The
// event is passed to the Enqueuer set with DeferTo instead and is delivered
// the next time that queue is dispatched.
type Bus struct {
	hooking.HookableBase

	name     string
	logger   *log.Logger
	ids      *id.Sequence
	handlers map[string][]registration
	deferred Enqueuer

	delivering int
}

// NewBus creates an empty Bus. A nil logger discards handler failures.
func NewBus(name string, logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Bus{
		name:     name,
		logger:   logger,
		ids:      id.NewSequence(),
		handlers: make(map[string][]registration),
	}
}

// Name returns the name of the bus.
func (b *Bus) Name() string {
	return b.name
}

// DeferTo sets where events emitted during a delivery go.
func (b *Bus) DeferTo(q Enqueuer) {
	b.deferred = q
}

// On registers a handler for the named event.
func (b *Bus) On(name string, h Handler) HandlerID {
	hid := HandlerID(b.ids.Generate())
	b.handlers[name] = append(b.handlers[name], registration{
		id:      hid,
		handler: h,
	})

	return hid
}

// Off unregisters a handler. It returns false if the handler is unknown.
func (b *Bus) Off(hid HandlerID) bool {
	for name, regs := range b.handlers {
		i := slices.IndexFunc(regs, func(r registration) bool {
			return r.id == hid
		})
		if i < 0 {
			continue
		}

		regs = slices.Delete(slices.Clone(regs), i, i+1)
		if len(regs) == 0 {
			delete(b.handlers, name)
		} else {
			b.handlers[name] = regs
		}

		return true
	}

	return false
}

// NumHandlers returns the number of handlers registered for a name.
func (b *Bus) NumHandlers(name string) int {
	return len(b.handlers[name])
}

// IsDelivering tells if a handler of this bus is running.
func (b *Bus) IsDelivering() bool {
	return b.delivering > 0
}

// Emit delivers the event to its handlers in registration order. If a
// handler is already running and a deferred queue is set, the event is
// queued instead.
func (b *Bus) Emit(evt Event) {
	if b.delivering > 0 && b.deferred != nil {
		if !b.deferred.Enqueue(evt) {
			b.logger.Printf("%s: deferred queue is full, dropping %q",
				b.name, evt.Name)
		}

		b.invokeHook(HookPosEventDeferred, evt)

		return
	}

	b.deliver(evt)
}

func (b *Bus) deliver(evt Event) {
	regs := b.handlers[evt.Name]

	b.delivering++
	defer func() { b.delivering-- }()

	for _, r := range regs {
		if err := callHandler(r.handler, evt); err != nil {
			b.logger.Printf("%s: handler %d of %q failed: %v",
				b.name, r.id, evt.Name, err)
		}
	}

	b.invokeHook(HookPosEventDelivered, evt)
}

func callHandler(h Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return h(evt)
}

// Clear drops every handler.
func (b *Bus) Clear() {
	b.handlers = make(map[string][]registration)
}

func (b *Bus) invokeHook(pos *hooking.HookPos, evt Event) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   evt,
	})
}
