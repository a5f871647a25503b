// Package session wires a timeline, an event bus, its deferred queue, the
// chart properties and an optional script runtime into one explicitly owned
// unit that a host drives frame by frame.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/tempolab/modchart/chart"
	"github.com/tempolab/modchart/event"
	"github.com/tempolab/modchart/script"
	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/sim/queueing"
	"github.com/tempolab/modchart/timeline"
	"github.com/tempolab/modchart/trigger"
)

// HookPosFrame is invoked at the end of every frame. The Item is the
// playhead and the Detail is the number of deferred events dispatched.
var HookPosFrame = &hooking.HookPos{Name: "Frame"}

// HookPosSeek is invoked before a seek is applied. The Item is the target
// playhead and the Detail is the playhead before the seek.
var HookPosSeek = &hooking.HookPos{Name: "Seek"}

// Builder builds Sessions.
type Builder struct {
	logger        *log.Logger
	queueCapacity int
	scriptTimeout time.Duration
	frameInterval time.Duration
}

// MakeBuilder returns a Builder with an unbounded deferred queue that logs
// to stderr.
func MakeBuilder() Builder {
	return Builder{
		logger:        log.New(os.Stderr, "", log.LstdFlags),
		queueCapacity: queueing.Unbounded,
		scriptTimeout: script.DefaultTimeout,
	}
}

// WithLogger sets the logger shared by every part of the session. A nil
// logger discards everything.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithQueueCapacity limits the number of pending deferred events.
func (b Builder) WithQueueCapacity(n int) Builder {
	b.queueCapacity = n
	return b
}

// WithScriptTimeout bounds every script run and callback.
func (b Builder) WithScriptTimeout(d time.Duration) Builder {
	b.scriptTimeout = d
	return b
}

// WithFrameInterval sets the wall-clock time Play waits between frames.
// Zero plays as fast as possible.
func (b Builder) WithFrameInterval(d time.Duration) Builder {
	b.frameInterval = d
	return b
}

// Build creates a Session.
func (b Builder) Build(name string) *Session {
	logger := b.logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	bus := event.NewBus(name+".Bus", logger)
	queue := event.NewDeferredQueue(name+".Deferred", bus, b.queueCapacity)
	bus.DeferTo(queue)

	return &Session{
		name:          name,
		logger:        logger,
		timeline:      timeline.MakeBuilder().WithLogger(logger).Build(name),
		bus:           bus,
		queue:         queue,
		props:         chart.NewPropertySet(nil),
		scriptTimeout: b.scriptTimeout,
		frameInterval: b.frameInterval,
	}
}

// A Session is one playable chart. It is not safe for concurrent use.
type Session struct {
	hooking.HookableBase

	name          string
	logger        *log.Logger
	timeline      *timeline.Timeline
	bus           *event.Bus
	queue         *event.DeferredQueue
	props         *chart.PropertySet
	script        *script.Runtime
	scriptTimeout time.Duration
	frameInterval time.Duration

	closed bool
}

// Name returns the name of the session.
func (s *Session) Name() string {
	return s.name
}

// Timeline returns the timeline of the session.
func (s *Session) Timeline() *timeline.Timeline {
	return s.timeline
}

// Triggers returns the trigger manager of the timeline.
func (s *Session) Triggers() *trigger.Manager {
	return s.timeline.Triggers()
}

// Bus returns the event bus.
func (s *Session) Bus() *event.Bus {
	return s.bus
}

// Queue returns the deferred event queue.
func (s *Session) Queue() *event.DeferredQueue {
	return s.queue
}

// Properties returns the properties that segments write into.
func (s *Session) Properties() *chart.PropertySet {
	return s.props
}

// Script returns the script runtime, or nil if no script has run.
func (s *Session) Script() *script.Runtime {
	return s.script
}

// Now returns the playhead of the last frame, or trigger.BeforeAllTime
// before the first one.
func (s *Session) Now() trigger.VTimeInMs {
	return s.timeline.Now()
}

// Playhead is Now, except that it reads 0 before the first frame. Use it to
// show the playhead or to step relative to it.
func (s *Session) Playhead() trigger.VTimeInMs {
	if now := s.Now(); now != trigger.BeforeAllTime {
		return now
	}

	return 0
}

// IsClosed tells if Close has been called.
func (s *Session) IsClosed() bool {
	return s.closed
}

// RunScript runs src on the session's script runtime, creating the runtime
// on first use.
func (s *Session) RunScript(src, name string) error {
	if s.closed {
		return fmt.Errorf("session %s is closed", s.name)
	}

	if s.script == nil {
		s.script = script.MakeBuilder().
			WithLogger(s.logger).
			WithTimeout(s.scriptTimeout).
			WithTimeline(s.timeline).
			WithBus(s.bus).
			WithQueue(s.queue).
			WithProperties(s.props).
			Build(s.name + ".Script")
	}

	return s.script.Run(src, name)
}

// ApplyChart registers a chart onto the session.
func (s *Session) ApplyChart(c *chart.Chart) error {
	if s.closed {
		return fmt.Errorf("session %s is closed", s.name)
	}

	return chart.Apply(c, s)
}

// Frame advances the timeline to t and then dispatches the events that were
// deferred so far. It returns the number of events dispatched.
func (s *Session) Frame(t trigger.VTimeInMs) int {
	if s.closed {
		return 0
	}

	s.timeline.Advance(t)
	n := s.queue.Dispatch()

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosFrame,
			Item:   t,
			Detail: n,
		})
	}

	return n
}

// Seek jumps the playhead to t in either direction. Everything between the
// old and the new playhead is triggered or undone in order within one
// frame.
func (s *Session) Seek(t trigger.VTimeInMs) int {
	if s.closed {
		return 0
	}

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosSeek,
			Item:   t,
			Detail: s.Now(),
		})
	}

	return s.Frame(t)
}

// Play runs frames from from to to, step apart, including to. A negative
// step plays backward. Play stops early when ctx is done.
func (s *Session) Play(
	ctx context.Context,
	from, to, step trigger.VTimeInMs,
) error {
	if step == 0 || (step > 0 && to < from) || (step < 0 && to > from) {
		return fmt.Errorf("cannot play from %d to %d in steps of %d",
			from, to, step)
	}

	var ticker *time.Ticker
	if s.frameInterval > 0 {
		ticker = time.NewTicker(s.frameInterval)
		defer ticker.Stop()
	}

	t := from
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if (step > 0 && t > to) || (step < 0 && t < to) {
			t = to
		}

		s.Frame(t)

		if t == to {
			return nil
		}

		t += step

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// Close tears the session down. Pending events are discarded, nothing is
// undone, and the script runtime stops reacting.
func (s *Session) Close() {
	if s.closed {
		return
	}

	s.queue.Clear()
	s.timeline.Clear()

	if s.script != nil {
		s.script.Detach()
	}

	s.bus.Clear()
	s.closed = true
}
