// Package mp3 decodes MP3 sample files to float32 using a pure-Go decoder.
package mp3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/mycophonic/primordium/fault"

	"github.com/mycophonic/liquidsfz"
)

const channels = 2 // go-mp3 always decodes to stereo

// Decode reads an MP3 stream and returns interleaved stereo float32 samples at the source sample rate.
func Decode(rs io.ReadSeeker) (*liquidsfz.Sample, error) {
	decoder, err := gomp3.NewDecoder(rs)
	if err != nil {
		return nil, fmt.Errorf("%w: creating mp3 decoder: %w", fault.ErrReadFailure, err)
	}

	// Pre-allocate output buffer when total length is known (in bytes of s16le).
	var data []float32
	if length := decoder.Length(); length > 0 {
		data = make([]float32, 0, length/2)
	}

	chunk := make([]byte, 32*1024)

	// A read may end in the middle of a sample; carry the odd byte over.
	var pending []byte

	for {
		readN, readErr := decoder.Read(chunk)
		if readN > 0 {
			buf := append(pending, chunk[:readN]...) //nolint:gocritic // pending is reset below
			even := len(buf) &^ 1

			for i := 0; i < even; i += 2 {
				data = append(data, float32(int16(binary.LittleEndian.Uint16(buf[i:])))/(1<<15)) //nolint:gosec // s16le
			}

			pending = append(pending[:0], buf[even:]...)
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("%w: decoding mp3: %w", fault.ErrReadFailure, readErr)
		}
	}

	return &liquidsfz.Sample{
		SampleRate: decoder.SampleRate(),
		Channels:   channels,
		Data:       data,
	}, nil
}
