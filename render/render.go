package render

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/mycophonic/liquidsfz/synth"
)

// blockSize is the number of frames rendered per Process call, a typical server period.
const blockSize = 512

// TailFrames converts a tail duration to frames at sampleRate.
func TailFrames(tail time.Duration, sampleRate int) uint64 {
	if tail <= 0 {
		return 0
	}

	return uint64(tail.Seconds() * float64(sampleRate))
}

// Offline renders the whole sequence plus tailFrames of release time and returns
// interleaved stereo samples.
func Offline(s *synth.Synth, seq *Sequence, tailFrames uint64) []float32 {
	s.MIDIInput = seq

	total := seq.Frames() + tailFrames
	out := make([]float32, 0, total*2)
	left, right := make([]float32, blockSize), make([]float32, blockSize)

	for done := uint64(0); done < total; {
		n := uint32(min(blockSize, total-done)) //nolint:gosec // bounded by blockSize

		s.Process([2][]float32{left, right}, n)

		for i := range n {
			out = append(out, left[i], right[i])
		}

		done += uint64(n)
	}

	return out
}

// Stream renders a sequence on demand as interleaved little-endian float32 stereo.
type Stream struct {
	synth     *synth.Synth
	remaining uint64

	left, right []float32
	buf         []byte
	off         int
}

// NewStream returns a reader rendering seq followed by tailFrames of silence input.
func NewStream(s *synth.Synth, seq *Sequence, tailFrames uint64) *Stream {
	s.MIDIInput = seq

	return &Stream{
		synth:     s,
		remaining: seq.Frames() + tailFrames,
		left:      make([]float32, blockSize),
		right:     make([]float32, blockSize),
		buf:       make([]byte, 0, blockSize*2*4),
	}
}

// Read implements io.Reader.
func (st *Stream) Read(p []byte) (int, error) {
	if st.off >= len(st.buf) {
		if st.remaining == 0 {
			return 0, io.EOF
		}

		st.fill()
	}

	n := copy(p, st.buf[st.off:])
	st.off += n

	return n, nil
}

func (st *Stream) fill() {
	n := uint32(min(blockSize, st.remaining)) //nolint:gosec // bounded by blockSize

	st.synth.Process([2][]float32{st.left, st.right}, n)
	st.remaining -= uint64(n)

	st.buf = st.buf[:0]
	st.off = 0

	for i := range n {
		st.buf = binary.LittleEndian.AppendUint32(st.buf, math.Float32bits(st.left[i]))
		st.buf = binary.LittleEndian.AppendUint32(st.buf, math.Float32bits(st.right[i]))
	}
}

// Remaining returns the frames not yet rendered.
func (st *Stream) Remaining() uint64 {
	return st.remaining
}
