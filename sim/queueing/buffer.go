// Package queueing provides the bounded FIFO buffer that backs the deferred
// event queue.
package queueing

import (
	"fmt"

	"github.com/tempolab/modchart/sim/hooking"
)

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &hooking.HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &hooking.HookPos{Name: "Buffer Pop"}

// Unbounded is the capacity of a buffer that never refuses a push.
const Unbounded = int(^uint(0) >> 1)

// A Buffer is a named FIFO queue with a fixed capacity. Pushing into a full
// buffer is a programming error, so callers check CanPush first.
type Buffer[T any] struct {
	hooking.HookableBase

	name     string
	capacity int
	elements []T
}

// NewBuffer creates an empty buffer. A capacity of Unbounded never fills up.
func NewBuffer[T any](name string, capacity int) *Buffer[T] {
	return &Buffer[T]{
		name:     name,
		capacity: capacity,
	}
}

// Name returns the name of the buffer.
func (b *Buffer[T]) Name() string {
	return b.name
}

// CanPush tells if one more element fits.
func (b *Buffer[T]) CanPush() bool {
	return len(b.elements) < b.capacity
}

// Push appends e. It panics if the buffer is full.
func (b *Buffer[T]) Push(e T) {
	if !b.CanPush() {
		panic(fmt.Sprintf("buffer %s overflow", b.name))
	}

	b.elements = append(b.elements, e)
	b.invokeHook(HookPosBufPush, e)
}

// Pop removes and returns the oldest element. The second result is false if
// the buffer is empty.
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T

	if len(b.elements) == 0 {
		return zero, false
	}

	e := b.elements[0]
	b.elements[0] = zero
	b.elements = b.elements[1:]

	b.invokeHook(HookPosBufPop, e)

	return e, true
}

// Peek returns the oldest element without removing it.
func (b *Buffer[T]) Peek() (T, bool) {
	if len(b.elements) == 0 {
		var zero T
		return zero, false
	}

	return b.elements[0], true
}

// Capacity returns the capacity of the buffer.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

// Size returns the number of elements in the buffer.
func (b *Buffer[T]) Size() int {
	return len(b.elements)
}

// Clear drops every element without invoking hooks.
func (b *Buffer[T]) Clear() {
	b.elements = nil
}

func (b *Buffer[T]) invokeHook(pos *hooking.HookPos, e T) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   e,
	})
}
