// Package render plays Standard MIDI Files through a Synth without an audio server.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/mycophonic/liquidsfz/synth"
)

// defaultTempo is 120 BPM in microseconds per quarter note.
const defaultTempo = 500000

// ErrTimeFormat is returned for files that do not use metric (ticks per quarter note) timing.
var ErrTimeFormat = errors.New("unsupported SMF time format")

type timedEvent struct {
	frame uint64
	data  []byte
}

// Sequence is a MIDI file flattened to channel messages stamped with output frames.
// It implements synth.EventSource, handing out events cycle by cycle.
type Sequence struct {
	events []timedEvent
	next   int
	pos    uint64
}

// LoadSMF reads a Standard MIDI File and schedules its channel messages at sampleRate.
// Tempo changes from any track apply to all tracks.
func LoadSMF(r io.Reader, sampleRate int) (*Sequence, error) {
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}

	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrTimeFormat, file.TimeFormat)
	}

	type tickEvent struct {
		tick uint64
		msg  []byte
	}

	var all []tickEvent

	for _, track := range file.Tracks {
		var tick uint64

		for _, ev := range track {
			tick += uint64(ev.Delta)
			all = append(all, tickEvent{tick: tick, msg: ev.Message})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].tick < all[j].tick })

	var (
		seconds  float64
		lastTick uint64
		tempo    = float64(defaultTempo)
		perTick  = 1 / (float64(ticks.Resolution()) * 1e6)
		seq      = &Sequence{}
	)

	for _, ev := range all {
		seconds += float64(ev.tick-lastTick) * tempo * perTick
		lastTick = ev.tick

		msg := ev.msg

		// Tempo meta message: FF 51 03 tt tt tt.
		if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
			if micros := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5]); micros > 0 {
				tempo = float64(micros)
			}

			continue
		}

		if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
			continue
		}

		seq.events = append(seq.events, timedEvent{
			frame: uint64(math.Round(seconds * float64(sampleRate))),
			data:  append([]byte(nil), msg...),
		})
	}

	return seq, nil
}

// MIDIEvents implements synth.EventSource.
func (s *Sequence) MIDIEvents(nframes uint32, dst []synth.Event) []synth.Event {
	end := s.pos + uint64(nframes)

	for s.next < len(s.events) && s.events[s.next].frame < end {
		ev := s.events[s.next]
		dst = append(dst, synth.Event{Frame: uint32(ev.frame - s.pos), Data: ev.data}) //nolint:gosec // below nframes
		s.next++
	}

	s.pos = end

	return dst
}

// Len returns the number of scheduled events.
func (s *Sequence) Len() int {
	return len(s.events)
}

// Frames returns the frame of the last event, i.e. the length of the sequence without any tail.
func (s *Sequence) Frames() uint64 {
	if len(s.events) == 0 {
		return 0
	}

	return s.events[len(s.events)-1].frame + 1
}
