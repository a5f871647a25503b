package monitoring

import (
	"sync"
	"time"

	"github.com/tempolab/modchart/session"
	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/sim/id"
	"github.com/tempolab/modchart/trigger"
)

// A ProgressBar tracks how far a playback has gone.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// NewProgressBar creates a ProgressBar that starts now.
func NewProgressBar(name string, total uint64) *ProgressBar {
	return &ProgressBar{
		ID:        id.SessionName("bar"),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}
}

// SetFinished sets the finished amount, for example to the playhead.
func (b *ProgressBar) SetFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished = amount
}

type progressRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) snapshot() progressRsp {
	b.Lock()
	defer b.Unlock()

	return progressRsp{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// playbackTracker moves a progress bar along with the frames of a session.
type playbackTracker struct {
	bar      *ProgressBar
	from, to trigger.VTimeInMs
}

func (h *playbackTracker) Func(ctx hooking.HookCtx) {
	if ctx.Pos != session.HookPosFrame {
		return
	}

	t, ok := ctx.Item.(trigger.VTimeInMs)
	if !ok {
		return
	}

	h.bar.SetFinished(distance(h.from, clampBetween(t, h.from, h.to)))
}

func distance(a, b trigger.VTimeInMs) uint64 {
	if a > b {
		return uint64(a - b)
	}

	return uint64(b - a)
}

func clampBetween(t, a, b trigger.VTimeInMs) trigger.VTimeInMs {
	lo, hi := min(a, b), max(a, b)

	return min(max(t, lo), hi)
}
