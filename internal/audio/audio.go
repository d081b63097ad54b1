// Package audio produces the keepalive signal: real-time paced,
// near-silent 48 kHz stereo PCM.
package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// DitherAmplitude is the peak of the keepalive noise floor, roughly
// -72 dBFS. Hosts treat digital zero as silence and may suspend the
// element, so the floor is never zero.
const DitherAmplitude = 8
