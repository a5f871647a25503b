// Package script embeds a JavaScript runtime that authors effects onto a
// timeline.
//
// Scripts see these globals:
//
//	at(time, onTrigger[, onUndo])                        -> id
//	once(time, fn)                                       -> id
//	every(start, interval, maxCount, onTrigger[, onUndo]) -> id
//	tween(start, end, fn[, easing])                      -> bool
//	move(id, time)                                       -> bool
//	remove(id)                                           -> bool
//	emit(name, ...args)                                  -> bool
//	on(name, fn)                                         -> handler id
//	off(handlerId)                                       -> bool
//	set(property, value)
//	get(property)                                        -> number | undefined
//	log(...values)
//
// Trigger callbacks receive the vertex time and ID. Interval callbacks
// receive the time and the firing count. Tween callbacks receive the eased
// progress. Event handlers receive the event arguments.
package script

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/tempolab/modchart/chart"
	"github.com/tempolab/modchart/event"
	"github.com/tempolab/modchart/timeline"
	"github.com/tempolab/modchart/trigger"
)

// DefaultTimeout bounds a single script run or callback.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a script runs longer than its timeout.
var ErrTimeout = errors.New("script timed out")

// Builder builds Runtimes.
type Builder struct {
	logger  *log.Logger
	timeout time.Duration
	tl      *timeline.Timeline
	bus     *event.Bus
	queue   *event.DeferredQueue
	props   *chart.PropertySet
}

// MakeBuilder returns a Builder with the default timeout that logs to
// stderr.
func MakeBuilder() Builder {
	return Builder{
		logger:  log.New(os.Stderr, "", log.LstdFlags),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets where log() and failures go. A nil logger discards them.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithTimeout sets the wall-clock limit of a run. Zero disables it.
func (b Builder) WithTimeout(d time.Duration) Builder {
	b.timeout = d
	return b
}

// WithTimeline sets the timeline that scripts schedule onto.
func (b Builder) WithTimeline(tl *timeline.Timeline) Builder {
	b.tl = tl
	return b
}

// WithBus sets the bus that on() and off() register handlers with.
func (b Builder) WithBus(bus *event.Bus) Builder {
	b.bus = bus
	return b
}

// WithQueue sets the queue that emit() defers events into.
func (b Builder) WithQueue(q *event.DeferredQueue) Builder {
	b.queue = q
	return b
}

// WithProperties sets the properties that set() and get() access.
func (b Builder) WithProperties(props *chart.PropertySet) Builder {
	b.props = props
	return b
}

// Build creates a Runtime. The timeline, bus, queue and properties must be
// set.
func (b Builder) Build(name string) *Runtime {
	if b.tl == nil || b.bus == nil || b.queue == nil || b.props == nil {
		panic("script runtime needs a timeline, a bus, a queue and properties")
	}

	logger := b.logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	r := &Runtime{
		name:    name,
		vm:      goja.New(),
		tl:      b.tl,
		bus:     b.bus,
		queue:   b.queue,
		props:   b.props,
		logger:  logger,
		timeout: b.timeout,
	}
	r.install()

	return r
}

// A Runtime is one JavaScript VM bound to a session. It must only be used
// from the goroutine that advances the timeline.
type Runtime struct {
	name    string
	vm      *goja.Runtime
	tl      *timeline.Timeline
	bus     *event.Bus
	queue   *event.DeferredQueue
	props   *chart.PropertySet
	logger  *log.Logger
	timeout time.Duration

	handlers []event.HandlerID
	depth    int
	detached bool
}

// Name returns the name of the runtime.
func (r *Runtime) Name() string {
	return r.name
}

// Run executes src. The name is used in stack traces and errors.
func (r *Runtime) Run(src, name string) error {
	if r.detached {
		return fmt.Errorf("run script %s: runtime %s is detached", name, r.name)
	}

	err := r.guard(func() error {
		_, err := r.vm.RunScript(name, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("run script %s: %w", name, err)
	}

	return nil
}

// Detach unregisters the handlers the scripts added and turns every
// callback they scheduled into a no-op.
func (r *Runtime) Detach() {
	for _, hid := range r.handlers {
		r.bus.Off(hid)
	}

	r.handlers = nil
	r.detached = true
}

// IsDetached tells if Detach has been called.
func (r *Runtime) IsDetached() bool {
	return r.detached
}

// guard runs f under the timeout. Nested calls share the outermost timer.
func (r *Runtime) guard(f func() error) error {
	r.depth++
	defer func() { r.depth-- }()

	if r.depth > 1 || r.timeout <= 0 {
		return f()
	}

	fired := make(chan struct{})
	timer := time.AfterFunc(r.timeout, func() {
		r.vm.Interrupt(ErrTimeout)
		close(fired)
	})

	err := f()

	if !timer.Stop() {
		<-fired
		r.vm.ClearInterrupt()
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w after %v", ErrTimeout, r.timeout)
	}

	return err
}

// call invokes a script function with Go arguments.
func (r *Runtime) call(fn goja.Callable, args ...any) error {
	if fn == nil || r.detached {
		return nil
	}

	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = r.vm.ToValue(a)
	}

	return r.guard(func() error {
		_, err := fn(goja.Undefined(), vals...)
		return err
	})
}

func (r *Runtime) install() {
	globals := map[string]func(goja.FunctionCall) goja.Value{
		"at":     r.at,
		"once":   r.once,
		"every":  r.every,
		"tween":  r.tween,
		"move":   r.move,
		"remove": r.remove,
		"emit":   r.emit,
		"on":     r.on,
		"off":    r.off,
		"set":    r.set,
		"get":    r.get,
		"log":    r.log,
	}

	for name, f := range globals {
		if err := r.vm.Set(name, f); err != nil {
			panic(err)
		}
	}
}

func (r *Runtime) timeArg(call goja.FunctionCall, i int, fn string) trigger.VTimeInMs {
	arg := call.Argument(i)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		panic(r.vm.NewTypeError("%s: argument %d must be a time", fn, i+1))
	}

	return trigger.VTimeInMs(arg.ToInteger())
}

func (r *Runtime) funcArg(
	call goja.FunctionCall,
	i int,
	fn, param string,
	required bool,
) goja.Callable {
	arg := call.Argument(i)
	if !required && (goja.IsUndefined(arg) || goja.IsNull(arg)) {
		return nil
	}

	f, ok := goja.AssertFunction(arg)
	if !ok {
		panic(r.vm.NewTypeError("%s: %s is not a function", fn, param))
	}

	return f
}

func (r *Runtime) stringArg(call goja.FunctionCall, i int, fn string) string {
	arg := call.Argument(i)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		panic(r.vm.NewTypeError("%s: argument %d must be a string", fn, i+1))
	}

	return arg.String()
}

func (r *Runtime) at(call goja.FunctionCall) goja.Value {
	t := r.timeArg(call, 0, "at")
	onTrigger := r.funcArg(call, 1, "at", "onTrigger", true)
	onUndo := r.funcArg(call, 2, "at", "onUndo", false)

	m := r.tl.Triggers()
	v := m.NewVertex(t, r.vertexPayload(onTrigger, onUndo))
	m.AddVertex(v)

	return r.vm.ToValue(v.ID)
}

func (r *Runtime) once(call goja.FunctionCall) goja.Value {
	t := r.timeArg(call, 0, "once")
	fn := r.funcArg(call, 1, "once", "fn", true)

	m := r.tl.Triggers()
	v := m.NewVertex(t, r.vertexPayload(fn, nil))
	v.IsDynamic = true
	m.AddVertex(v)

	return r.vm.ToValue(v.ID)
}

func (r *Runtime) vertexPayload(onTrigger, onUndo goja.Callable) trigger.Payload {
	p := trigger.FuncPayload{
		OnTrigger: func(v *trigger.Vertex) error {
			return r.call(onTrigger, int64(v.Time), v.ID)
		},
	}

	if onUndo != nil {
		p.OnUndo = func(v *trigger.Vertex) error {
			return r.call(onUndo, int64(v.Time), v.ID)
		}
	}

	return p
}

func (r *Runtime) every(call goja.FunctionCall) goja.Value {
	start := r.timeArg(call, 0, "every")
	interval := r.timeArg(call, 1, "every")
	maxCount := call.Argument(2).ToInteger()
	onTrigger := r.funcArg(call, 3, "every", "onTrigger", true)
	onUndo := r.funcArg(call, 4, "every", "onUndo", false)

	if interval <= 0 {
		panic(r.vm.NewTypeError("every: interval must be positive"))
	}

	p := trigger.NewIntervalPayload(r.tl.Triggers(), start, interval)
	if maxCount > 0 {
		p.WithMaxTriggerCount(int(maxCount))
	}

	p.WithCallbacks(
		func(v *trigger.Vertex) error {
			return r.call(onTrigger, int64(v.Time), p.CurrentTriggerCount)
		},
		func(v *trigger.Vertex) error {
			return r.call(onUndo, int64(v.Time), p.CurrentTriggerCount)
		},
	)
	p.Schedule()

	return r.vm.ToValue(p.OccupyID)
}

func (r *Runtime) tween(call goja.FunctionCall) goja.Value {
	start := r.timeArg(call, 0, "tween")
	end := r.timeArg(call, 1, "tween")
	fn := r.funcArg(call, 2, "tween", "fn", true)

	var ease timeline.EasingFunc = timeline.Linear
	if arg := call.Argument(3); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		var ok bool
		if ease, ok = timeline.EasingByName(arg.String()); !ok {
			panic(r.vm.NewTypeError("tween: unknown easing %q", arg.String()))
		}
	}

	s := timeline.NewSegment(start, end, func(progress float64) error {
		return r.call(fn, progress)
	})
	s.Ease = ease

	return r.vm.ToValue(r.tl.AddSegment(s))
}

func (r *Runtime) move(call goja.FunctionCall) goja.Value {
	vid := call.Argument(0).ToInteger()
	t := r.timeArg(call, 1, "move")

	m := r.tl.Triggers()

	v, ok := m.Lookup(vid)
	if !ok {
		return r.vm.ToValue(false)
	}

	moved := *v
	moved.Time = t

	return r.vm.ToValue(m.UpdateVertex(&moved))
}

func (r *Runtime) remove(call goja.FunctionCall) goja.Value {
	vid := call.Argument(0).ToInteger()
	return r.vm.ToValue(r.tl.Triggers().RemoveID(vid))
}

func (r *Runtime) emit(call goja.FunctionCall) goja.Value {
	name := r.stringArg(call, 0, "emit")

	var args []any
	for _, a := range call.Arguments[1:] {
		args = append(args, a.Export())
	}

	return r.vm.ToValue(r.queue.Enqueue(event.Event{Name: name, Args: args}))
}

func (r *Runtime) on(call goja.FunctionCall) goja.Value {
	name := r.stringArg(call, 0, "on")
	fn := r.funcArg(call, 1, "on", "fn", true)

	hid := r.bus.On(name, func(evt event.Event) error {
		return r.call(fn, evt.Args...)
	})
	r.handlers = append(r.handlers, hid)

	return r.vm.ToValue(int64(hid))
}

func (r *Runtime) off(call goja.FunctionCall) goja.Value {
	hid := event.HandlerID(call.Argument(0).ToInteger())

	for i, h := range r.handlers {
		if h == hid {
			r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
			return r.vm.ToValue(r.bus.Off(hid))
		}
	}

	return r.vm.ToValue(false)
}

func (r *Runtime) set(call goja.FunctionCall) goja.Value {
	name := r.stringArg(call, 0, "set")
	r.props.Set(name, call.Argument(1).ToFloat())

	return goja.Undefined()
}

func (r *Runtime) get(call goja.FunctionCall) goja.Value {
	name := r.stringArg(call, 0, "get")

	v, ok := r.props.Get(name)
	if !ok {
		return goja.Undefined()
	}

	return r.vm.ToValue(v)
}

func (r *Runtime) log(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		parts[i] = a.String()
	}

	r.logger.Printf("%s: %s", r.name, strings.Join(parts, " "))

	return goja.Undefined()
}
