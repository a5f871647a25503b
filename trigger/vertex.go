// Package trigger schedules point-in-time effects against a playhead that can
// move in both directions.
//
// A Manager keeps its vertices sorted by time and remembers how many of them
// have already fired. Every call to Update compares the new playhead against
// that frontier: vertices that the playhead has passed are triggered in
// order, and vertices that the playhead has moved back over are undone in
// reverse order.
package trigger

import "math"

// VTimeInMs is a point on the playback clock, in milliseconds.
type VTimeInMs = int64

// BeforeAllTime is the playhead of a manager or timeline that has never been
// updated.
const BeforeAllTime VTimeInMs = math.MinInt64

// A Vertex is a payload anchored at a point in time.
type Vertex struct {
	// ID is issued by the manager that owns the vertex and is never reused.
	ID int64

	// Time is the instant the vertex fires at.
	Time VTimeInMs

	// IsDynamic marks a one-shot vertex. A dynamic vertex is removed as soon
	// as it fires and is never undone.
	IsDynamic bool

	Payload Payload
}

// Before reports whether v is ordered before o. Vertices are ordered by time
// and then by ID, so same-time vertices fire in creation order.
func (v *Vertex) Before(o *Vertex) bool {
	if v.Time != o.Time {
		return v.Time < o.Time
	}

	return v.ID < o.ID
}
