// Package liquidsfz holds the types shared by the sampler, its sample decoders and its transports.
package liquidsfz

import (
	"errors"
	"fmt"
	"math"
)

// BitDepth represents the bit depth of integer PCM samples.
type BitDepth uint

// Supported PCM bit depths.
const (
	Depth8  BitDepth = 8
	Depth16 BitDepth = 16
	Depth24 BitDepth = 24
	Depth32 BitDepth = 32
)

// BytesPerSample returns the number of bytes needed to store one sample.
func (d BitDepth) BytesPerSample() int {
	switch d {
	case Depth8:
		return 1
	case Depth16:
		return 2
	case Depth24:
		return 3
	case Depth32:
		return 4
	default:
		panic(fmt.Sprintf("liquidsfz: BytesPerSample called with unsupported bit depth %d", d))
	}
}

// PCMFormat describes the format of raw integer PCM audio data.
type PCMFormat struct {
	SampleRate int
	BitDepth   BitDepth
	Channels   uint
}

var errUnsupportedBitDepth = errors.New("unsupported bit depth")

// ToBitDepth converts a numeric bit depth to the BitDepth type.
func ToBitDepth(bps uint8) (BitDepth, error) {
	switch BitDepth(bps) {
	case Depth8:
		return Depth8, nil
	case Depth16:
		return Depth16, nil
	case Depth24:
		return Depth24, nil
	case Depth32:
		return Depth32, nil
	default:
		return 0, fmt.Errorf("%d-bit: %w", bps, errUnsupportedBitDepth)
	}
}

// Sample is decoded audio held as interleaved float32 frames in [-1, 1].
type Sample struct {
	SampleRate int
	Channels   int
	Data       []float32
}

// Frames returns the number of frames (samples per channel).
func (s *Sample) Frames() int {
	if s == nil || s.Channels <= 0 {
		return 0
	}

	return len(s.Data) / s.Channels
}

// DefaultPolyphony is the voice count used when Settings.Polyphony is zero.
const DefaultPolyphony = 64

// Settings configures a synthesis engine. It plays the role of the engine's global
// settings object: it is filled in once the output sample rate is known and handed
// to the engine constructor.
type Settings struct {
	SampleRate   int
	Gain         float64 // linear output gain
	ReverbActive bool
	ChorusActive bool
	Polyphony    int
}

// Voices returns the configured polyphony, falling back to DefaultPolyphony.
func (s Settings) Voices() int {
	if s.Polyphony <= 0 {
		return DefaultPolyphony
	}

	return s.Polyphony
}

// DBToFactor converts a level in decibels to a linear amplitude factor.
func DBToFactor(db float64) float64 {
	return math.Pow(10, db/20)
}
