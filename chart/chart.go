// Package chart reads mod-chart files and registers their effects onto a
// running session.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tempolab/modchart/timeline"
)

// SupportedVersion is the chart format version this package understands.
const SupportedVersion = "1"

// ErrInvalidChart is wrapped by every validation failure.
var ErrInvalidChart = errors.New("invalid chart")

// Chart is the content of a chart file.
type Chart struct {
	Version    string             `yaml:"version"`
	Script     string             `yaml:"script,omitempty"`
	ScriptFile string             `yaml:"scriptFile,omitempty"`
	Properties map[string]float64 `yaml:"properties,omitempty"`
	Triggers   []Trigger          `yaml:"triggers,omitempty"`
	Intervals  []Interval         `yaml:"intervals,omitempty"`
	Segments   []Segment          `yaml:"segments,omitempty"`
	Presets    []Preset           `yaml:"presets,omitempty"`
}

// Trigger raises an event when the playhead crosses Time. A Once trigger is
// one-shot and raises nothing when rewound.
type Trigger struct {
	Time  int64  `yaml:"time"`
	Once  bool   `yaml:"once,omitempty"`
	Event string `yaml:"event"`
	Args  []any  `yaml:"args,omitempty"`
}

// Interval raises an event every Interval milliseconds from Start.
// SilentUndo skips the undo event of the silent last firing.
type Interval struct {
	Start      int64  `yaml:"start"`
	Interval   int64  `yaml:"interval"`
	MaxCount   int    `yaml:"maxCount,omitempty"` // 0 means unbounded
	Inclusive  bool   `yaml:"inclusive,omitempty"`
	SilentUndo bool   `yaml:"silentUndo,omitempty"`
	Event      string `yaml:"event"`
}

// Segment tweens a property from From to To between Start and End.
type Segment struct {
	Start    int64   `yaml:"start"`
	End      int64   `yaml:"end"`
	Property string  `yaml:"property"`
	From     float64 `yaml:"from"`
	To       float64 `yaml:"to"`
	Easing   string  `yaml:"easing,omitempty"`
}

// Preset names a built-in effect. See ExpandPreset.
type Preset struct {
	Name     string  `yaml:"name"`
	Start    int64   `yaml:"start"`
	Duration int64   `yaml:"duration"`
	Property string  `yaml:"property"`
	Amount   float64 `yaml:"amount"`
}

// Load reads and validates a chart file. A scriptFile is resolved relative
// to the chart file.
func Load(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chart %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load chart %s: %w", path, err)
	}

	if err := c.ResolveScript(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("load chart %s: %w", path, err)
	}

	return c, nil
}

// Parse decodes and validates chart data. Unknown fields are rejected.
func Parse(data []byte) (*Chart, error) {
	c := &Chart{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode chart: %w", err)
	}

	if c.Version == "" {
		c.Version = SupportedVersion
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// ResolveScript loads ScriptFile, relative to dir, into Script.
func (c *Chart) ResolveScript(dir string) error {
	if c.ScriptFile == "" {
		return nil
	}

	path := c.ScriptFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}

	c.Script = string(src)

	return nil
}

// Validate reports every problem of the chart at once.
func (c *Chart) Validate() error {
	var errs []error

	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format,
			append([]any{ErrInvalidChart}, args...)...))
	}

	if c.Version != SupportedVersion {
		invalid("unsupported version %q", c.Version)
	}

	if c.Script != "" && c.ScriptFile != "" {
		invalid("script and scriptFile cannot both be set")
	}

	for i, t := range c.Triggers {
		if t.Event == "" {
			invalid("triggers[%d]: missing event", i)
		}
	}

	for i, iv := range c.Intervals {
		if iv.Interval <= 0 {
			invalid("intervals[%d]: interval must be positive", i)
		}

		if iv.MaxCount < 0 {
			invalid("intervals[%d]: negative maxCount", i)
		}

		if iv.Event == "" {
			invalid("intervals[%d]: missing event", i)
		}
	}

	for i, s := range c.Segments {
		if s.End < s.Start {
			invalid("segments[%d]: end %d before start %d", i, s.End, s.Start)
		}

		if s.Property == "" {
			invalid("segments[%d]: missing property", i)
		}

		if _, ok := timeline.EasingByName(s.Easing); !ok {
			invalid("segments[%d]: unknown easing %q", i, s.Easing)
		}
	}

	for i, p := range c.Presets {
		if _, ok := presets[p.Name]; !ok {
			invalid("presets[%d]: unknown preset %q", i, p.Name)
		}

		if p.Duration <= 0 {
			invalid("presets[%d]: duration must be positive", i)
		}

		if p.Property == "" {
			invalid("presets[%d]: missing property", i)
		}
	}

	return errors.Join(errs...)
}

// End returns the latest time at which the chart still changes something.
// Unbounded intervals only count their first occurrence.
func (c *Chart) End() int64 {
	var end int64

	for _, t := range c.Triggers {
		end = max(end, t.Time)
	}

	for _, iv := range c.Intervals {
		last := iv.Start
		if iv.MaxCount > 1 {
			last += iv.Interval * int64(iv.MaxCount-1)
		}

		end = max(end, last)
	}

	for _, s := range c.Segments {
		end = max(end, s.End)
	}

	for _, p := range c.Presets {
		end = max(end, p.Start+p.Duration)
	}

	return end
}
