// Package timeline combines continuous segments and point triggers into one
// object that is advanced once per frame.
package timeline

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"

	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/trigger"
)

// HookPosSegmentEnter is invoked when a segment becomes active.
var HookPosSegmentEnter = &hooking.HookPos{Name: "SegmentEnter"}

// HookPosSegmentExit is invoked when a segment stops being active.
var HookPosSegmentExit = &hooking.HookPos{Name: "SegmentExit"}

// HookPosSegmentUpdate is invoked after the updater of an active segment has
// run. The Detail is the eased progress.
var HookPosSegmentUpdate = &hooking.HookPos{Name: "SegmentUpdate"}

// Builder builds Timelines.
type Builder struct {
	logger *log.Logger
}

// MakeBuilder returns a Builder that logs failures to stderr.
func MakeBuilder() Builder {
	return Builder{
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// WithLogger sets the logger shared by the timeline and its trigger manager.
// A nil logger discards everything.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a Timeline together with its trigger manager.
func (b Builder) Build(name string) *Timeline {
	logger := b.logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Timeline{
		name:   name,
		logger: logger,
		now:    trigger.BeforeAllTime,
		triggers: trigger.MakeBuilder().
			WithLogger(logger).
			Build(name + ".Triggers"),
	}
}

// A Timeline owns the active segments and one trigger manager.
type Timeline struct {
	hooking.HookableBase

	name     string
	logger   *log.Logger
	segments []*Segment
	triggers *trigger.Manager
	now      trigger.VTimeInMs
}

// Name returns the name of the timeline.
func (tl *Timeline) Name() string {
	return tl.name
}

// Triggers returns the manager of point events.
func (tl *Timeline) Triggers() *trigger.Manager {
	return tl.triggers
}

// Now returns the time of the last Advance, or trigger.BeforeAllTime if the
// timeline was never advanced since it was built or cleared.
func (tl *Timeline) Now() trigger.VTimeInMs {
	return tl.now
}

// Segments returns a copy of the segment list in insertion order.
func (tl *Timeline) Segments() []*Segment {
	return slices.Clone(tl.segments)
}

// AddSegment appends a segment. It returns false if the segment ends before
// it starts or already belongs to a timeline.
func (tl *Timeline) AddSegment(s *Segment) bool {
	if s == nil || s.EndTime < s.StartTime || s.owner != nil {
		return false
	}

	s.owner = tl
	s.active = false
	tl.segments = append(tl.segments, s)

	return true
}

// RemoveSegment drops a segment. It returns false if the segment is not part
// of this timeline.
func (tl *Timeline) RemoveSegment(s *Segment) bool {
	if s == nil || s.owner != tl {
		return false
	}

	i := slices.Index(tl.segments, s)
	tl.segments = slices.Delete(tl.segments, i, i+1)
	s.owner = nil
	s.active = false

	return true
}

// Advance moves the timeline to t. Segments are updated first, in insertion
// order, and then the trigger manager is updated.
//
// Segments that stop being active are settled before the active ones run:
// their updater gets one last call with the progress clamped at t, which is
// 1 past the end and 0 before the start.
func (tl *Timeline) Advance(t trigger.VTimeInMs) {
	tl.now = t
	segments := slices.Clone(tl.segments)

	for _, s := range segments {
		if s.owner == tl && s.active && !s.IsActiveAt(t) {
			tl.update(s, t)
			s.active = false
			tl.invokeHook(HookPosSegmentExit, s, nil)
		}
	}

	for _, s := range segments {
		if s.owner != tl || !s.IsActiveAt(t) {
			continue
		}

		if !s.active {
			s.active = true
			tl.invokeHook(HookPosSegmentEnter, s, nil)
		}

		tl.update(s, t)
	}

	tl.triggers.Update(t)
}

func (tl *Timeline) update(s *Segment, t trigger.VTimeInMs) {
	progress := s.EasedProgressAt(t)
	if err := callUpdater(s, progress); err != nil {
		tl.logger.Printf("%s: segment [%d, %d) failed at %d: %v",
			tl.name, s.StartTime, s.EndTime, t, err)
	}

	tl.invokeHook(HookPosSegmentUpdate, s, progress)
}

func callUpdater(s *Segment, progress float64) (err error) {
	if s.Updater == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("updater panicked: %v", r)
		}
	}()

	return s.Updater(progress)
}

// Clear drops all segments and all triggers. Nothing is undone.
func (tl *Timeline) Clear() {
	for _, s := range tl.segments {
		s.owner = nil
		s.active = false
	}

	tl.segments = nil
	tl.triggers.Clear()
	tl.now = trigger.BeforeAllTime
}

func (tl *Timeline) invokeHook(
	pos *hooking.HookPos,
	s *Segment,
	detail interface{},
) {
	if tl.NumHooks() == 0 {
		return
	}

	tl.InvokeHook(hooking.HookCtx{
		Domain: tl,
		Pos:    pos,
		Item:   s,
		Detail: detail,
	})
}
