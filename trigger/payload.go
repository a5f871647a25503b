package trigger

// A Payload is the effect carried by a vertex.
//
// Undo is expected to be the inverse of Trigger. The manager does not verify
// this, but seeking back and forth only reproduces the same state when it
// holds.
type Payload interface {
	Trigger(v *Vertex) error
	Undo(v *Vertex) error
}

// FuncPayload is a Payload backed by plain functions. Either function may be
// nil.
type FuncPayload struct {
	OnTrigger func(v *Vertex) error
	OnUndo    func(v *Vertex) error
}

// Trigger runs OnTrigger.
func (p FuncPayload) Trigger(v *Vertex) error {
	if p.OnTrigger == nil {
		return nil
	}

	return p.OnTrigger(v)
}

// Undo runs OnUndo.
func (p FuncPayload) Undo(v *Vertex) error {
	if p.OnUndo == nil {
		return nil
	}

	return p.OnUndo(v)
}
