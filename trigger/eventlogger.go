package trigger

import (
	"log"

	"github.com/tempolab/modchart/sim/hooking"
)

// EventLogger is a hook that prints every trigger and undo.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger returns a new EventLogger which will write in to the logger
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)

	h.logger = logger

	return h
}

// Func writes the dispatch information into the logger
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosAfterTrigger && ctx.Pos != HookPosAfterUndo {
		return
	}

	v, ok := ctx.Item.(*Vertex)
	if !ok {
		return
	}

	detail, _ := ctx.Detail.(*DispatchDetail)
	if detail == nil {
		detail = &DispatchDetail{}
	}

	if detail.Err != nil {
		h.logger.Printf("%d, %s, vertex %d @ %d, error: %v",
			detail.Playhead, ctx.Pos.Name, v.ID, v.Time, detail.Err)
		return
	}

	h.logger.Printf("%d, %s, vertex %d @ %d",
		detail.Playhead, ctx.Pos.Name, v.ID, v.Time)
}
