package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/mycophonic/liquidsfz"
)

// Encode writes PCM samples as a WAV file.
func Encode(w io.Writer, pcm []byte, format liquidsfz.PCMFormat) error {
	switch format.BitDepth {
	case 16, 24, 32:
		// Valid
	default:
		return fmt.Errorf("%w: %d (must be 16, 24, or 32)", ErrInvalidBitDepth, format.BitDepth)
	}

	//nolint:gosec // channel count, sample rate and depth are small positive values
	channels, sampleRate, bitsPerSample := uint16(format.Channels), uint32(format.SampleRate), uint16(format.BitDepth)
	byteRate := sampleRate * uint32(channels) * uint32(bitsPerSample) / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := uint32(len(pcm)) //nolint:gosec // WAV cannot hold more than 4 GiB anyway

	// Use WAVEFORMATEXTENSIBLE for >2 channels or >16 bits
	if channels > 2 || bitsPerSample > 16 {
		return writeWAVExtensible(w, pcm, channels, sampleRate, bitsPerSample, byteRate, blockAlign, dataSize)
	}

	return writeWAVSimple(w, pcm, channels, sampleRate, bitsPerSample, byteRate, blockAlign, dataSize)
}

// EncodeFloat quantizes interleaved float32 frames to the given bit depth and writes them as a WAV file.
// Samples outside [-1, 1] are clipped.
func EncodeFloat(w io.Writer, interleaved []float32, sampleRate int, channels uint, depth liquidsfz.BitDepth) error {
	format := liquidsfz.PCMFormat{SampleRate: sampleRate, BitDepth: depth, Channels: channels}

	switch depth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d (must be 16, 24, or 32)", ErrInvalidBitDepth, depth)
	}

	return Encode(w, Quantize(interleaved, depth), format)
}

// Quantize converts float32 samples to little-endian signed integer PCM of the given depth.
func Quantize(samples []float32, depth liquidsfz.BitDepth) []byte {
	width := depth.BytesPerSample()
	scale := float64(int64(1)<<(depth-1)) - 1
	out := make([]byte, len(samples)*width)

	for i, s := range samples {
		v := int32(math.Round(max(-1, min(1, float64(s))) * scale)) //nolint:gosec // clamped to the target range
		pos := i * width

		switch width {
		case 2:
			binary.LittleEndian.PutUint16(out[pos:], uint16(int16(v))) //nolint:gosec // clamped to int16 range
		case 3:
			out[pos] = byte(v)
			out[pos+1] = byte(v >> 8)
			out[pos+2] = byte(v >> 16)
		case 4:
			binary.LittleEndian.PutUint32(out[pos:], uint32(v)) //nolint:gosec // two's complement bit pattern
		default:
			out[pos] = byte(v + 128)
		}
	}

	return out
}

func writeWAVSimple(
	w io.Writer,
	pcm []byte,
	channels uint16,
	sampleRate uint32,
	bitsPerSample uint16,
	byteRate uint32,
	blockAlign uint16,
	dataSize uint32,
) error {
	var header [44]byte

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], dataSize+36)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing WAV header: %w", err)
	}

	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("writing PCM data: %w", err)
	}

	return nil
}

func writeWAVExtensible(
	w io.Writer,
	pcm []byte,
	channels uint16,
	sampleRate uint32,
	bitsPerSample uint16,
	byteRate uint32,
	blockAlign uint16,
	dataSize uint32,
) error {
	// fmt chunk is 40 bytes instead of 16
	const fmtChunkSize = 40

	var header [68]byte // RIFF + fmt header + fmt data + data header

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 60+dataSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatExtensible)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	binary.LittleEndian.PutUint16(header[36:38], 22) // cbSize

	binary.LittleEndian.PutUint16(header[38:40], bitsPerSample) // validBitsPerSample
	binary.LittleEndian.PutUint32(header[40:44], channelMask(channels))
	copy(header[44:60], wavGUIDPCM[:])

	copy(header[60:64], "data")
	binary.LittleEndian.PutUint32(header[64:68], dataSize)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing WAV header: %w", err)
	}

	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("writing PCM data: %w", err)
	}

	return nil
}

// channelMask returns the speaker mask for mono and stereo, unspecified otherwise.
func channelMask(channels uint16) uint32 {
	switch channels {
	case 1:
		return 0x4 // FC
	case 2:
		return 0x3 // FL | FR
	default:
		return 0
	}
}
