package tracing

import (
	"fmt"
	"io"
	"log"
	"reflect"

	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/trigger"
)

// CollectTrace lets a DispatchTracer write the dispatches of domain into w.
// It panics if domain already writes into w.
func CollectTrace(domain NamedHookable, w TraceWriter, logger *log.Logger) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*DispatchTracer)
		if ok && hook.w == w {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(w)))
		}
	}

	domain.AcceptHook(NewDispatchTracer(w, logger))
}

// A DispatchTracer is a hook that turns trigger manager hook positions into
// records.
type DispatchTracer struct {
	w      TraceWriter
	logger *log.Logger
}

// NewDispatchTracer creates a DispatchTracer. Write failures go to logger. A
// nil logger discards them.
func NewDispatchTracer(w TraceWriter, logger *log.Logger) *DispatchTracer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &DispatchTracer{w: w, logger: logger}
}

// Func writes a record for after-dispatch, add and remove positions.
func (t *DispatchTracer) Func(ctx hooking.HookCtx) {
	var kind Kind

	switch ctx.Pos {
	case trigger.HookPosAfterTrigger:
		kind = KindTrigger
	case trigger.HookPosAfterUndo:
		kind = KindUndo
	case trigger.HookPosVertexAdded:
		kind = KindAdd
	case trigger.HookPosVertexRemoved:
		kind = KindRemove
	default:
		return
	}

	v, ok := ctx.Item.(*trigger.Vertex)
	if !ok {
		return
	}

	r := Record{
		Kind:       kind,
		VertexID:   v.ID,
		VertexTime: int64(v.Time),
	}

	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		r.Domain = named.Name()
	}

	if m, ok := ctx.Domain.(*trigger.Manager); ok {
		r.Playhead = int64(m.Now())
	}

	if detail, ok := ctx.Detail.(*trigger.DispatchDetail); ok {
		r.Playhead = int64(detail.Playhead)
		if detail.Err != nil {
			r.Err = detail.Err.Error()
		}
	}

	if err := t.w.Write(r); err != nil {
		t.logger.Printf("tracing: %v", err)
	}
}
