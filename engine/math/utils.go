package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Align rounds v up to the next multiple of alignment. An alignment of zero
// returns v unchanged; alignment must otherwise be a power of two.
func Align[T constraints.Unsigned](v, alignment T) T {
	if alignment == 0 {
		return v
	}
	return (v + alignment - 1) &^ (alignment - 1)
}

func DegToRad(deg float32) float32 {
	return deg * (3.14159265358979323846 / 180.0)
}
