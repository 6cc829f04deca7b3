// Package vorbis decodes Ogg Vorbis sample files to float32.
package vorbis

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/mycophonic/primordium/fault"

	"github.com/mycophonic/liquidsfz"
)

// Decode reads an Ogg Vorbis stream and returns its interleaved float32 samples.
func Decode(rs io.ReadSeeker) (*liquidsfz.Sample, error) {
	samples, format, err := oggvorbis.ReadAll(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding vorbis: %w", fault.ErrReadFailure, err)
	}

	return &liquidsfz.Sample{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Data:       samples,
	}, nil
}
