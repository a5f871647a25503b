package timeline

import "strings"

// An EasingFunc maps linear progress in [0, 1] onto eased progress.
type EasingFunc func(t float64) float64

// Linear returns t unchanged.
func Linear(t float64) float64 {
	return t
}

// EaseInQuad starts slow and accelerates.
func EaseInQuad(t float64) float64 {
	return t * t
}

// EaseOutQuad starts fast and decelerates.
func EaseOutQuad(t float64) float64 {
	return t * (2 - t)
}

// EaseInOutCubic accelerates until the middle and decelerates afterwards.
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}

	return 1 - pow(-2*t+2, 3)/2
}

func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}

	return result
}

var easings = map[string]EasingFunc{
	"linear":      Linear,
	"inquad":      EaseInQuad,
	"outquad":     EaseOutQuad,
	"inoutcubic":  EaseInOutCubic,
	"smooth":      EaseInOutCubic,
	"ease-in":     EaseInQuad,
	"ease-out":    EaseOutQuad,
	"ease-in-out": EaseInOutCubic,
}

// EasingByName looks up an easing function. Names are case insensitive and
// the empty name is linear.
func EasingByName(name string) (EasingFunc, bool) {
	if name == "" {
		return Linear, true
	}

	f, ok := easings[strings.ToLower(name)]

	return f, ok
}

// Lerp interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
