package chart

import "fmt"

type presetFunc func(p Preset, base float64) []Segment

var presets = map[string]presetFunc{
	"pulse": pulse,
	"shake": shake,
	"fade":  fade,
}

// ExpandPreset turns a preset into segments. base is the value the property
// has before the preset starts.
//
//   - pulse raises the property by Amount and brings it back.
//   - shake swings the property Amount to each side and settles on base.
//   - fade moves the property to Amount.
func ExpandPreset(p Preset, base float64) ([]Segment, error) {
	f, ok := presets[p.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidChart, p.Name)
	}

	if p.Duration <= 0 {
		return nil, fmt.Errorf("%w: preset %q has no duration",
			ErrInvalidChart, p.Name)
	}

	return f(p, base), nil
}

func pulse(p Preset, base float64) []Segment {
	mid := p.Start + p.Duration/2
	peak := base + p.Amount

	return []Segment{
		{
			Start: p.Start, End: mid, Property: p.Property,
			From: base, To: peak, Easing: "outquad",
		},
		{
			Start: mid, End: p.Start + p.Duration, Property: p.Property,
			From: peak, To: base, Easing: "inquad",
		},
	}
}

func shake(p Preset, base float64) []Segment {
	stops := []float64{
		base,
		base + p.Amount,
		base - p.Amount,
		base + p.Amount/2,
		base,
	}

	segs := make([]Segment, 0, len(stops)-1)
	for i := 0; i < len(stops)-1; i++ {
		start := p.Start + p.Duration*int64(i)/int64(len(stops)-1)
		end := p.Start + p.Duration*int64(i+1)/int64(len(stops)-1)

		segs = append(segs, Segment{
			Start: start, End: end, Property: p.Property,
			From: stops[i], To: stops[i+1], Easing: "linear",
		})
	}

	return segs
}

func fade(p Preset, base float64) []Segment {
	return []Segment{
		{
			Start: p.Start, End: p.Start + p.Duration, Property: p.Property,
			From: base, To: p.Amount, Easing: "inoutcubic",
		},
	}
}
