package event

import (
	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/sim/queueing"
)

// A DeferredQueue holds events that were constructed during callback
// execution until the frame reaches a point where they can be delivered
// safely.
type DeferredQueue struct {
	buf    *queueing.Buffer[Event]
	target Emitter

	dispatching bool
}

// NewDeferredQueue creates a queue that delivers into target. A capacity of
// queueing.Unbounded never refuses events.
func NewDeferredQueue(name string, target Emitter, capacity int) *DeferredQueue {
	return &DeferredQueue{
		buf:    queueing.NewBuffer[Event](name, capacity),
		target: target,
	}
}

// AcceptHook registers a hook on the underlying buffer. The hook sees
// queueing.HookPosBufPush and queueing.HookPosBufPop.
func (q *DeferredQueue) AcceptHook(hook hooking.Hook) {
	q.buf.AcceptHook(hook)
}

// NumHooks returns the number of hooks registered.
func (q *DeferredQueue) NumHooks() int {
	return q.buf.NumHooks()
}

// Hooks returns the hooks registered.
func (q *DeferredQueue) Hooks() []hooking.Hook {
	return q.buf.Hooks()
}

// Enqueue appends an event. It returns false if the queue is full.
func (q *DeferredQueue) Enqueue(evt Event) bool {
	if !q.buf.CanPush() {
		return false
	}

	q.buf.Push(evt)

	return true
}

// Len returns the number of pending events.
func (q *DeferredQueue) Len() int {
	return q.buf.Size()
}

// Dispatch delivers, in FIFO order, the events that were pending when it was
// called, and returns how many it delivered. Events enqueued while
// dispatching wait for the next call. Calling Dispatch from a handler does
// nothing.
func (q *DeferredQueue) Dispatch() int {
	if q.dispatching {
		return 0
	}

	q.dispatching = true
	defer func() { q.dispatching = false }()

	n := q.buf.Size()
	delivered := 0

	for i := 0; i < n; i++ {
		evt, ok := q.buf.Pop()
		if !ok {
			break
		}

		q.target.Emit(evt)
		delivered++
	}

	return delivered
}

// Clear discards all pending events.
func (q *DeferredQueue) Clear() {
	q.buf.Clear()
}
