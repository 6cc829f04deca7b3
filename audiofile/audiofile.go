// Package audiofile decodes instrument sample files of any supported codec.
package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/detect"
	"github.com/mycophonic/liquidsfz/flac"
	"github.com/mycophonic/liquidsfz/mp3"
	"github.com/mycophonic/liquidsfz/vorbis"
	"github.com/mycophonic/liquidsfz/wav"
)

// ErrUnsupportedFormat is returned for files that are not a supported sample codec.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

var errEmptySample = errors.New("sample contains no audio")

type decodeFunc func(io.ReadSeeker) (*liquidsfz.Sample, error)

// Load opens and decodes the sample file at path.
func Load(path string) (*liquidsfz.Sample, error) {
	file, err := os.Open(path) //nolint:gosec // sample paths come from the instrument file
	if err != nil {
		return nil, fmt.Errorf("opening sample: %w", err)
	}
	defer file.Close()

	sample, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return sample, nil
}

// Decode identifies the codec of rs and decodes it.
func Decode(rs io.ReadSeeker) (*liquidsfz.Sample, error) {
	format, err := detect.Identify(rs)
	if err != nil {
		return nil, fmt.Errorf("detecting codec: %w", err)
	}

	var decode decodeFunc

	switch format {
	case detect.WAV:
		decode = wav.Decode
	case detect.FLAC:
		decode = flac.Decode
	case detect.Vorbis:
		decode = vorbis.Decode
	case detect.MP3:
		decode = mp3.Decode
	case detect.Unknown, detect.SoundFont:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	sample, err := decode(rs)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}

	if sample.Frames() == 0 {
		return nil, errEmptySample
	}

	return sample, nil
}
