package trigger

import "math"

// Unbounded is the MaxTriggerCount of an interval payload that never stops.
const Unbounded = math.MaxInt

// A Scheduler is the part of a Manager that a self-rescheduling payload
// needs.
type Scheduler interface {
	GenerateNextID() int64
	AddVertex(v *Vertex) bool
	UpdateVertex(v *Vertex) bool
}

// IntervalPayload is a recurring payload. It owns a single vertex slot
// (OccupyID) and moves that slot to its next occurrence every time it fires.
//
// The n-th firing happens at StartTime + Interval*(n-1). By default the
// firing that brings CurrentTriggerCount to MaxTriggerCount is silent, so at
// most MaxTriggerCount-1 firings run OnTrigger. WithInclusiveMax makes all
// MaxTriggerCount firings visible.
//
// Undo decrements CurrentTriggerCount and, while the count stays
// non-negative, runs OnUndo and moves the slot back. That includes undoing a
// silent firing, unless WithSilentUndo is set. An undo that takes the count
// below zero runs nothing and leaves the slot alone; the count stays negative
// so that the matching firing brings it back to zero.
type IntervalPayload struct {
	OccupyID            int64
	StartTime           VTimeInMs
	Interval            VTimeInMs
	MaxTriggerCount     int
	CurrentTriggerCount int

	// IsDynamic is copied onto every vertex the payload registers.
	IsDynamic bool

	// InclusiveMax lets the firing that reaches MaxTriggerCount run
	// OnTrigger too.
	InclusiveMax bool

	// SilentUndo skips OnUndo when the firing being undone was silent.
	SilentUndo bool

	OnTrigger func(v *Vertex) error
	OnUndo    func(v *Vertex) error

	scheduler Scheduler
}

// NewIntervalPayload creates an unbounded interval payload and reserves its
// slot on the scheduler. Call Schedule to register the first occurrence.
func NewIntervalPayload(
	scheduler Scheduler,
	start, interval VTimeInMs,
) *IntervalPayload {
	return &IntervalPayload{
		OccupyID:        scheduler.GenerateNextID(),
		StartTime:       start,
		Interval:        interval,
		MaxTriggerCount: Unbounded,
		scheduler:       scheduler,
	}
}

// WithMaxTriggerCount limits the number of firings.
func (p *IntervalPayload) WithMaxTriggerCount(n int) *IntervalPayload {
	p.MaxTriggerCount = n
	return p
}

// WithInclusiveMax makes the firing that reaches MaxTriggerCount visible.
func (p *IntervalPayload) WithInclusiveMax() *IntervalPayload {
	p.InclusiveMax = true
	return p
}

// WithSilentUndo makes the undo of a silent firing silent as well.
func (p *IntervalPayload) WithSilentUndo() *IntervalPayload {
	p.SilentUndo = true
	return p
}

// WithCallbacks sets the functions that run on visible firings and on their
// undos.
func (p *IntervalPayload) WithCallbacks(
	onTrigger, onUndo func(v *Vertex) error,
) *IntervalPayload {
	p.OnTrigger = onTrigger
	p.OnUndo = onUndo

	return p
}

// AsDynamic makes the registered vertices one-shot.
func (p *IntervalPayload) AsDynamic() *IntervalPayload {
	p.IsDynamic = true
	return p
}

// Schedule registers the first occurrence at StartTime. It returns false if
// the interval is not positive or the scheduler refuses the vertex.
func (p *IntervalPayload) Schedule() bool {
	if p.Interval <= 0 {
		return false
	}

	return p.scheduler.AddVertex(p.vertexAt(p.StartTime))
}

// Trigger counts a firing, runs OnTrigger while under the limit, and moves
// the slot to the next occurrence.
func (p *IntervalPayload) Trigger(v *Vertex) error {
	p.CurrentTriggerCount++
	if p.limitReached() {
		return nil
	}

	var err error
	if p.OnTrigger != nil {
		err = p.OnTrigger(v)
	}

	p.scheduler.UpdateVertex(p.vertexAt(p.nextTime()))

	return err
}

// Undo reverts the last firing and moves the slot back onto it, so that
// playing forward again fires it once more.
func (p *IntervalPayload) Undo(v *Vertex) error {
	wasSilent := p.limitReached()

	p.CurrentTriggerCount--
	if p.CurrentTriggerCount < 0 {
		return nil
	}

	var err error
	if p.OnUndo != nil && !(wasSilent && p.SilentUndo) {
		err = p.OnUndo(v)
	}

	p.scheduler.UpdateVertex(p.vertexAt(p.nextTime()))

	return err
}

func (p *IntervalPayload) limitReached() bool {
	if p.InclusiveMax {
		return p.CurrentTriggerCount > p.MaxTriggerCount
	}

	return p.CurrentTriggerCount >= p.MaxTriggerCount
}

func (p *IntervalPayload) nextTime() VTimeInMs {
	return p.StartTime + p.Interval*VTimeInMs(p.CurrentTriggerCount)
}

func (p *IntervalPayload) vertexAt(t VTimeInMs) *Vertex {
	return &Vertex{
		ID:        p.OccupyID,
		Time:      t,
		IsDynamic: p.IsDynamic,
		Payload:   p,
	}
}
