package timeline

import "github.com/tempolab/modchart/trigger"

// A Segment is a continuous effect over [StartTime, EndTime).
type Segment struct {
	StartTime trigger.VTimeInMs
	EndTime   trigger.VTimeInMs

	// Updater receives the eased progress once per frame while the segment
	// is active, and once more on the frame that leaves it.
	Updater func(progress float64) error

	// Ease shapes the progress passed to Updater. Nil means linear.
	Ease EasingFunc

	active bool
	owner  *Timeline
}

// NewSegment creates a linear segment.
func NewSegment(
	start, end trigger.VTimeInMs,
	updater func(progress float64) error,
) *Segment {
	return &Segment{
		StartTime: start,
		EndTime:   end,
		Updater:   updater,
	}
}

// IsActiveAt tells if t is in [StartTime, EndTime).
func (s *Segment) IsActiveAt(t trigger.VTimeInMs) bool {
	return s.StartTime <= t && t < s.EndTime
}

// ProgressAt returns the linear progress at t clamped to [0, 1].
func (s *Segment) ProgressAt(t trigger.VTimeInMs) float64 {
	if s.EndTime <= s.StartTime {
		if t < s.StartTime {
			return 0
		}

		return 1
	}

	p := float64(t-s.StartTime) / float64(s.EndTime-s.StartTime)

	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// EasedProgressAt applies Ease to ProgressAt.
func (s *Segment) EasedProgressAt(t trigger.VTimeInMs) float64 {
	p := s.ProgressAt(t)
	if s.Ease == nil {
		return p
	}

	return s.Ease(p)
}

// IsActive tells if the segment was active at the last advance of its
// timeline.
func (s *Segment) IsActive() bool {
	return s.active
}
