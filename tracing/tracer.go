// Package tracing records what the trigger manager dispatches so that a
// playback can be inspected after the fact.
package tracing

import "github.com/tempolab/modchart/sim/hooking"

// Kind tells what happened to a vertex.
type Kind string

// The kinds of records.
const (
	KindTrigger Kind = "trigger"
	KindUndo    Kind = "undo"
	KindAdd     Kind = "add"
	KindRemove  Kind = "remove"
)

// A Record is one traced event.
type Record struct {
	Kind       Kind
	Domain     string
	VertexID   int64
	VertexTime int64
	Playhead   int64
	Err        string
}

// A TraceWriter stores records.
type TraceWriter interface {
	Init() error
	Write(r Record) error
	Flush() error
}

// NamedHookable is a hookable that has a name.
type NamedHookable interface {
	hooking.Hookable
	Name() string
}
