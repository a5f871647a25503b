package tracing

import (
	"sync"

	"github.com/tempolab/modchart/event"
	"github.com/tempolab/modchart/sim/hooking"
)

// EventCounter is a hook that counts the events an event bus delivers, per
// event name.
type EventCounter struct {
	lock sync.Mutex

	names  []string
	counts map[string]uint64
}

// NewEventCounter creates a new EventCounter.
func NewEventCounter() *EventCounter {
	return &EventCounter{
		counts: make(map[string]uint64),
	}
}

// Names returns the event names in the order they were first seen.
func (c *EventCounter) Names() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.names...)
}

// Count returns how many times an event has been delivered.
func (c *EventCounter) Count(name string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.counts[name]
}

// Func counts delivered events.
func (c *EventCounter) Func(ctx hooking.HookCtx) {
	if ctx.Pos != event.HookPosEventDelivered {
		return
	}

	evt, ok := ctx.Item.(event.Event)
	if !ok {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.counts[evt.Name]; !ok {
		c.names = append(c.names, evt.Name)
	}

	c.counts[evt.Name]++
}
