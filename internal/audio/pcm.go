package audio

import (
	"math/rand/v2"
	"time"
)

// Dither fills frame with triangular noise peaking at amp.
func Dither(r *rand.Rand, frame []int16, amp int) {
	for i := range frame {
		frame[i] = int16(r.IntN(amp+1) - r.IntN(amp+1))
	}
}

// Clip renders d of keepalive noise, rounded up to whole frames. The
// level is constant so the clip loops without a seam.
func Clip(d time.Duration, seed uint64) []int16 {
	frames := int((d + FrameDuration - 1) / FrameDuration)
	if frames < 1 {
		frames = 1
	}
	samples := make([]int16, frames*FrameSamples)
	Dither(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), samples, DitherAmplitude)
	return samples
}
