// Package wav reads RIFF/WAVE sample files and writes rendered audio as WAV.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mycophonic/primordium/fault"

	"github.com/mycophonic/liquidsfz"
)

// WAV format constants.
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// GUIDs for the sub formats of WAVEFORMATEXTENSIBLE.
var (
	wavGUIDPCM = [16]byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71,
	}
	wavGUIDFloat = [16]byte{
		0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71,
	}
)

var (
	ErrNotWAV          = errors.New("not a WAV file")
	ErrUnsupportedFmt  = errors.New("unsupported WAV format")
	ErrNoFmtChunk      = errors.New("missing fmt chunk")
	ErrNoDataChunk     = errors.New("missing data chunk")
	ErrInvalidBitDepth = errors.New("invalid bit depth")
)

// fmtInfo is the subset of the fmt chunk needed to convert samples.
type fmtInfo struct {
	float         bool
	channels      int
	sampleRate    int
	bitsPerSample int
}

// Decode reads a WAV file and returns its samples converted to float32.
// Integer PCM of 8, 16, 24 and 32 bits and IEEE float of 32 and 64 bits are supported.
func Decode(rs io.ReadSeeker) (*liquidsfz.Sample, error) {
	// Read RIFF header
	var riffHeader [12]byte
	if _, err := io.ReadFull(rs, riffHeader[:]); err != nil {
		return nil, fmt.Errorf("%w: reading RIFF header: %w", fault.ErrReadFailure, err)
	}

	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		info     fmtInfo
		raw      []byte
		fmtFound bool
	)

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(rs, chunkHeader[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, fmt.Errorf("%w: reading chunk header: %w", fault.ErrReadFailure, err)
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			parsed, err := parseFmtChunk(rs, chunkSize)
			if err != nil {
				return nil, err
			}

			info = parsed
			fmtFound = true

		case "data":
			raw = make([]byte, chunkSize)
			if _, err := io.ReadFull(rs, raw); err != nil {
				return nil, fmt.Errorf("%w: reading sample data: %w", fault.ErrReadFailure, err)
			}

		default:
			// Skip unknown chunks
			if _, err := rs.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("skipping chunk %s: %w", chunkID, err)
			}
		}

		// Chunks are word-aligned (pad byte if odd size)
		if chunkSize%2 == 1 {
			if _, err := rs.Seek(1, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("seeking past pad byte: %w", err)
			}
		}
	}

	if !fmtFound {
		return nil, ErrNoFmtChunk
	}

	if raw == nil {
		return nil, ErrNoDataChunk
	}

	return &liquidsfz.Sample{
		SampleRate: info.sampleRate,
		Channels:   info.channels,
		Data:       toFloat(raw, info),
	}, nil
}

func parseFmtChunk(rs io.ReadSeeker, size uint32) (fmtInfo, error) {
	var info fmtInfo

	if size < 16 {
		return info, ErrUnsupportedFmt
	}

	var buf [40]byte // Max size for WAVEFORMATEXTENSIBLE

	toRead := min(size, 40)

	if _, err := io.ReadFull(rs, buf[:toRead]); err != nil {
		return info, fmt.Errorf("%w: reading fmt chunk: %w", fault.ErrReadFailure, err)
	}

	// Skip remaining bytes if chunk is larger than what we consumed.
	if size > 40 {
		if _, err := rs.Seek(int64(size-40), io.SeekCurrent); err != nil {
			return info, fmt.Errorf("skipping fmt chunk tail: %w", err)
		}
	}

	audioFormat := binary.LittleEndian.Uint16(buf[0:2])
	info.channels = int(binary.LittleEndian.Uint16(buf[2:4]))
	info.sampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
	info.bitsPerSample = int(binary.LittleEndian.Uint16(buf[14:16]))

	switch audioFormat {
	case wavFormatPCM:
	case wavFormatIEEEFloat:
		info.float = true
	case wavFormatExtensible:
		if size < 40 {
			return info, ErrUnsupportedFmt
		}

		var subFormat [16]byte
		copy(subFormat[:], buf[24:40])

		switch subFormat {
		case wavGUIDPCM:
		case wavGUIDFloat:
			info.float = true
		default:
			return info, ErrUnsupportedFmt
		}
	default:
		return info, ErrUnsupportedFmt
	}

	if info.channels == 0 {
		return info, ErrUnsupportedFmt
	}

	switch {
	case info.float && (info.bitsPerSample == 32 || info.bitsPerSample == 64):
	case !info.float && info.bitsPerSample%8 == 0 && info.bitsPerSample >= 8 && info.bitsPerSample <= 32:
	default:
		return info, fmt.Errorf("%w: %d", ErrInvalidBitDepth, info.bitsPerSample)
	}

	return info, nil
}

// toFloat converts little-endian sample bytes to float32 in [-1, 1].
// A trailing partial frame is dropped.
func toFloat(raw []byte, info fmtInfo) []float32 {
	width := info.bitsPerSample / 8
	frameBytes := width * info.channels
	count := (len(raw) / frameBytes) * info.channels
	out := make([]float32, count)

	for i := range count {
		b := raw[i*width:]

		switch {
		case info.float && width == 4:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		case info.float:
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		case width == 1:
			// 8-bit WAV is unsigned.
			out[i] = float32(int(b[0])-128) / 128
		case width == 2:
			out[i] = float32(int16(binary.LittleEndian.Uint16(b))) / (1 << 15) //nolint:gosec // reinterpretation of two's complement
		case width == 3:
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16 //nolint:gosec // sign extension of the top byte
			out[i] = float32(v) / (1 << 23)
		default:
			out[i] = float32(int32(binary.LittleEndian.Uint32(b))) / (1 << 31) //nolint:gosec // reinterpretation of two's complement
		}
	}

	return out
}
