package chart

import (
	"fmt"

	"github.com/tempolab/modchart/event"
	"github.com/tempolab/modchart/timeline"
	"github.com/tempolab/modchart/trigger"
)

// UndoSuffix is appended to the event name raised when a trigger is undone.
const UndoSuffix = ".undo"

// A Target is what a chart is applied onto.
type Target interface {
	Timeline() *timeline.Timeline
	Queue() *event.DeferredQueue
	Properties() *PropertySet
	RunScript(src, name string) error
}

// Apply registers the whole chart onto target. Properties are initialized
// first and the script runs last.
func Apply(c *Chart, target Target) error {
	if err := c.Validate(); err != nil {
		return err
	}

	tl := target.Timeline()
	props := target.Properties()

	for name, v := range c.Properties {
		props.Set(name, v)
	}

	tw := tweens{}

	for _, s := range c.Segments {
		if err := tw.add(tl, props, s); err != nil {
			return err
		}
	}

	for _, p := range c.Presets {
		base, _ := props.Get(p.Property)

		segs, err := ExpandPreset(p, base)
		if err != nil {
			return err
		}

		for _, s := range segs {
			if err := tw.add(tl, props, s); err != nil {
				return err
			}
		}
	}

	m := tl.Triggers()
	q := target.Queue()

	for _, t := range c.Triggers {
		addTrigger(m, q, t)
	}

	for i, iv := range c.Intervals {
		if !addInterval(m, q, iv) {
			return fmt.Errorf("%w: intervals[%d] could not be scheduled",
				ErrInvalidChart, i)
		}
	}

	if c.Script == "" {
		return nil
	}

	name := c.ScriptFile
	if name == "" {
		name = "chart script"
	}

	if err := target.RunScript(c.Script, name); err != nil {
		return fmt.Errorf("apply chart: %w", err)
	}

	return nil
}

// tweens groups the timeline segments of a chart by property.
type tweens map[string][]*timeline.Segment

// add adds the segment and two anchors. The anchor on the last instant of
// the segment writes To once the playhead reaches End, even by a jump. The
// anchor at Start writes From back when the playhead rewinds before it.
// Neither anchor writes while another segment of the same property is
// active, since that segment owns the value.
func (tw tweens) add(
	tl *timeline.Timeline,
	props *PropertySet,
	s Segment,
) error {
	ease, ok := timeline.EasingByName(s.Easing)
	if !ok {
		return fmt.Errorf("%w: unknown easing %q", ErrInvalidChart, s.Easing)
	}

	seg := timeline.NewSegment(
		trigger.VTimeInMs(s.Start),
		trigger.VTimeInMs(s.End),
		func(progress float64) error {
			props.Set(s.Property, timeline.Lerp(s.From, s.To, progress))
			return nil
		},
	)
	seg.Ease = ease

	if !tl.AddSegment(seg) {
		return fmt.Errorf("%w: segment [%d, %d) rejected",
			ErrInvalidChart, s.Start, s.End)
	}

	tw[s.Property] = append(tw[s.Property], seg)

	anchor := func(v float64) func(*trigger.Vertex) error {
		return func(*trigger.Vertex) error {
			if !tw.othersActive(s.Property, seg, tl.Now()) {
				props.Set(s.Property, v)
			}

			return nil
		}
	}

	m := tl.Triggers()
	m.AddVertex(m.NewVertex(trigger.VTimeInMs(s.Start), trigger.FuncPayload{
		OnUndo: anchor(s.From),
	}))
	m.AddVertex(m.NewVertex(trigger.VTimeInMs(s.End-1), trigger.FuncPayload{
		OnTrigger: anchor(s.To),
	}))

	return nil
}

func (tw tweens) othersActive(
	property string,
	self *timeline.Segment,
	t trigger.VTimeInMs,
) bool {
	for _, seg := range tw[property] {
		if seg != self && seg.IsActiveAt(t) {
			return true
		}
	}

	return false
}

func addTrigger(m *trigger.Manager, q *event.DeferredQueue, t Trigger) {
	p := trigger.FuncPayload{
		OnTrigger: func(*trigger.Vertex) error {
			return enqueue(q, event.Event{Name: t.Event, Args: t.Args})
		},
	}

	if !t.Once {
		p.OnUndo = func(*trigger.Vertex) error {
			return enqueue(q, event.Event{
				Name: t.Event + UndoSuffix,
				Args: t.Args,
			})
		}
	}

	v := m.NewVertex(trigger.VTimeInMs(t.Time), p)
	v.IsDynamic = t.Once
	m.AddVertex(v)
}

func addInterval(
	m *trigger.Manager,
	q *event.DeferredQueue,
	iv Interval,
) bool {
	p := trigger.NewIntervalPayload(m,
		trigger.VTimeInMs(iv.Start), trigger.VTimeInMs(iv.Interval))

	if iv.MaxCount > 0 {
		p.WithMaxTriggerCount(iv.MaxCount)
	}

	if iv.Inclusive {
		p.WithInclusiveMax()
	}

	if iv.SilentUndo {
		p.WithSilentUndo()
	}

	p.WithCallbacks(
		func(v *trigger.Vertex) error {
			return enqueue(q, event.Event{
				Name: iv.Event,
				Args: []any{int64(v.Time)},
			})
		},
		func(v *trigger.Vertex) error {
			return enqueue(q, event.Event{
				Name: iv.Event + UndoSuffix,
				Args: []any{int64(v.Time)},
			})
		},
	)

	return p.Schedule()
}

func enqueue(q *event.DeferredQueue, evt event.Event) error {
	if !q.Enqueue(evt) {
		return fmt.Errorf("deferred queue is full, dropping %q", evt.Name)
	}

	return nil
}
