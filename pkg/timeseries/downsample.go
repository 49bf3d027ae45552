// Package timeseries bounds long ordered series to a renderable number of
// points without losing trend shape or boundary values.
package timeseries

// Downsample keeps at most max elements of points by walking a uniform
// stride, preserving order and exact values. The final input element is
// always part of the output: when the stride walk does not land on it, it is
// appended (detected by comparing keys). Inputs of length <= max are returned
// unchanged. It never interpolates.
func Downsample[P any](points []P, max int, key func(P) string) []P {
	if max <= 0 || len(points) <= max {
		return points
	}

	stride := (len(points) + max - 1) / max
	out := make([]P, 0, max+1)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}

	// The true last point must survive. Replace the final kept point when the
	// budget is already spent so the output never exceeds max.
	last := points[len(points)-1]
	if key(out[len(out)-1]) != key(last) {
		if len(out) == max {
			out[len(out)-1] = last
		} else {
			out = append(out, last)
		}
	}
	return out
}
