// Package hooking lets observers attach to well-known positions of the
// scheduler without the scheduler knowing about them.
package hooking

import (
	"fmt"
	"slices"
)

// HookPos names a position at which a hookable invokes its hooks.
type HookPos struct {
	Name string
}

// HookCtx describes the site at which a hook is invoked. What Item and
// Detail hold depends on Pos.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook. Since functions cannot be compared,
// register a *HookFunc when the hook has to be removed later.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f *HookFunc) Func(ctx HookCtx) {
	(*f)(ctx)
}

// A HookableBase keeps the hooks of a Hookable in registration order.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns a copy of the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return slices.Clone(h.hookList)
}

// AcceptHook registers a hook. Registering the same hook twice is a
// programming error and panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	if slices.Contains(h.hookList, hook) {
		panic(fmt.Sprintf("hook %T registered twice", hook))
	}

	h.hookList = append(h.hookList, hook)
}

// RemoveHook unregisters a hook. It returns false if the hook was never
// registered.
func (h *HookableBase) RemoveHook(hook Hook) bool {
	i := slices.Index(h.hookList, hook)
	if i < 0 {
		return false
	}

	h.hookList = slices.Delete(h.hookList, i, i+1)

	return true
}

// InvokeHook calls every hook that was registered when the call started. A
// hook may remove itself or others while it runs.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	if len(h.hookList) == 0 {
		return
	}

	for _, hook := range slices.Clone(h.hookList) {
		hook.Func(ctx)
	}
}
