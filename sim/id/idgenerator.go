// Package id issues identities for scheduled objects.
package id

import (
	"sync/atomic"

	"github.com/rs/xid"
)

// Sequence generates sequential integer IDs. Each owner keeps its own
// Sequence, so IDs from two owners are never interchangeable.
type Sequence struct {
	last int64
}

// NewSequence returns a Sequence whose first generated ID is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Generate consumes and returns the next ID.
func (s *Sequence) Generate() int64 {
	return atomic.AddInt64(&s.last, 1)
}

// Next returns the ID that the next call to Generate would return, without
// consuming it.
func (s *Sequence) Next() int64 {
	return atomic.LoadInt64(&s.last) + 1
}

// Issued tells if the given ID has been generated by this Sequence.
func (s *Sequence) Issued(v int64) bool {
	return v >= 1 && v < s.Next()
}

// SessionName returns a globally unique name with the given prefix. Names are
// not deterministic and should only be used to label outputs such as trace
// databases.
func SessionName(prefix string) string {
	if prefix == "" {
		return xid.New().String()
	}

	return prefix + "_" + xid.New().String()
}
