// Package flac decodes FLAC sample files to float32.
package flac

import (
	"errors"
	"fmt"
	"io"

	goflac "github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/mycophonic/primordium/fault"

	"github.com/mycophonic/liquidsfz"
)

// ErrBitDepth is returned when a FLAC stream has an unsupported bit depth.
var ErrBitDepth = errors.New("unsupported bit depth")

// Decode reads a FLAC stream and decodes it to interleaved float32 samples in [-1, 1].
func Decode(rs io.ReadSeeker) (*liquidsfz.Sample, error) {
	stream, err := goflac.New(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer stream.Close()

	info := stream.Info
	nChannels := int(info.NChannels)

	if info.BitsPerSample < 4 || info.BitsPerSample > 32 {
		return nil, fmt.Errorf("%w: %d", ErrBitDepth, info.BitsPerSample)
	}

	scale := 1 / float32(uint64(1)<<(info.BitsPerSample-1))

	// Pre-allocate when the total sample count is known.
	var data []float32
	if info.NSamples > 0 {
		data = make([]float32, 0, int(info.NSamples)*nChannels) //nolint:gosec // sample counts of instrument samples fit in int
	}

	for {
		audioFrame, parseErr := stream.ParseNext()
		if errors.Is(parseErr, io.EOF) {
			break
		}

		if parseErr != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, parseErr)
		}

		data = interleave(data, audioFrame.Subframes, int(audioFrame.BlockSize), nChannels, scale)
	}

	return &liquidsfz.Sample{
		SampleRate: int(info.SampleRate),
		Channels:   nChannels,
		Data:       data,
	}, nil
}

// interleave appends the decoded subframe samples of one frame to dst, scaled to float32.
func interleave(dst []float32, subframes []*frame.Subframe, blockSize, nChannels int, scale float32) []float32 {
	if nChannels == 2 {
		left := subframes[0].Samples
		right := subframes[1].Samples

		for i := range blockSize {
			dst = append(dst, float32(left[i])*scale, float32(right[i])*scale)
		}

		return dst
	}

	for i := range blockSize {
		for ch := range nChannels {
			dst = append(dst, float32(subframes[ch].Samples[i])*scale)
		}
	}

	return dst
}
