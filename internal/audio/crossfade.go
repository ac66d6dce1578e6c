package audio

// Smoothstep eases t from 0 to 1 as 3t^2 - 2t^3, clamped outside [0,1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// blend writes the smoothstep mix of outgoing and incoming at progress into
// dst. progress 0 is all outgoing. dst may alias incoming; all three slices
// share a length.
func blend(dst, outgoing, incoming []int16, progress float64) {
	gain := Smoothstep(progress)
	for i := range dst {
		dst[i] = mix(outgoing[i], incoming[i], gain)
	}
}

// mix weights out by 1-gain and in by gain, clipping to int16.
func mix(out, in int16, gain float64) int16 {
	mixed := float64(out)*(1-gain) + float64(in)*gain
	if mixed > 32767 {
		mixed = 32767
	} else if mixed < -32768 {
		mixed = -32768
	}
	return int16(mixed)
}
