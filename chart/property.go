package chart

import (
	"maps"
	"slices"
)

// A PropertySet holds the numeric properties that segments write into. The
// renderer owns what the values mean.
type PropertySet struct {
	values map[string]float64
}

// NewPropertySet creates a PropertySet with initial values.
func NewPropertySet(initial map[string]float64) *PropertySet {
	ps := &PropertySet{values: make(map[string]float64)}
	maps.Copy(ps.values, initial)

	return ps
}

// Set writes a property, creating it if needed.
func (ps *PropertySet) Set(name string, v float64) {
	ps.values[name] = v
}

// Get reads a property.
func (ps *PropertySet) Get(name string) (float64, bool) {
	v, ok := ps.values[name]
	return v, ok
}

// Names returns the property names in sorted order.
func (ps *PropertySet) Names() []string {
	return slices.Sorted(maps.Keys(ps.values))
}

// Snapshot returns a copy of all values.
func (ps *PropertySet) Snapshot() map[string]float64 {
	return maps.Clone(ps.values)
}

// Reset drops all properties.
func (ps *PropertySet) Reset() {
	clear(ps.values)
}
