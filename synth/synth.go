// Package synth couples a MIDI event source to a synthesis engine and renders audio buffers.
package synth

import (
	"gitlab.com/gomidi/midi/v2"
)

// VolumeHeadroomDB is the master gain applied to every engine, leaving room for polyphonic peaks.
const VolumeHeadroomDB = -12

// maxEvents is the event capacity reserved up front so a cycle does not allocate.
const maxEvents = 512

// MIDI status nibbles passed to Engine.ProcessMidiMessage.
const (
	NoteOff       = 0x80
	NoteOn        = 0x90
	ControlChange = 0xB0
	ProgramChange = 0xC0
	PitchBend     = 0xE0
)

// Event is a raw MIDI message stamped with its frame offset inside the current cycle.
type Event struct {
	Frame uint32
	Data  []byte
}

// EventSource supplies the MIDI events of one processing cycle.
type EventSource interface {
	// MIDIEvents appends the events falling inside the next nframes frames to dst, ordered by frame.
	MIDIEvents(nframes uint32, dst []Event) []Event
}

// Processor renders one cycle of stereo output. It is what the audio transport calls back into.
type Processor interface {
	Process(outputs [2][]float32, nframes uint32) int
}

// Engine produces audio from channel messages.
type Engine interface {
	// ProcessMidiMessage handles one channel message. channel is 0-based, command is the status nibble.
	ProcessMidiMessage(channel, command, data1, data2 int32)
	// Render overwrites left and right with the next len(left) frames.
	Render(left, right []float32)
	Close() error
}

// Synth renders an Engine, driven by MIDIInput, into the transport's output buffers.
type Synth struct {
	// MIDIInput is read on every Process call. A nil source means no events.
	MIDIInput EventSource

	engine Engine
	events []Event
}

// New returns a Synth with no engine; it outputs silence until Start is called.
func New() *Synth {
	return &Synth{events: make([]Event, 0, maxEvents)}
}

// Start installs the engine. It must happen before the transport is activated and is not safe
// to call concurrently with Process.
func (s *Synth) Start(engine Engine) {
	s.engine = engine
}

// Process renders nframes into both outputs, applying each event at its frame offset. It always returns 0.
func (s *Synth) Process(outputs [2][]float32, nframes uint32) int {
	left := outputs[0][:nframes]
	right := outputs[1][:nframes]

	clear(left)
	clear(right)

	if s.MIDIInput != nil {
		s.events = s.MIDIInput.MIDIEvents(nframes, s.events[:0])
	}

	if s.engine == nil {
		return 0
	}

	var pos uint32

	for _, ev := range s.events {
		frame := min(ev.Frame, nframes)
		if frame > pos {
			s.engine.Render(left[pos:frame], right[pos:frame])
			pos = frame
		}

		s.dispatch(midi.Message(ev.Data))
	}

	if pos < nframes {
		s.engine.Render(left[pos:], right[pos:])
	}

	return 0
}

func (s *Synth) dispatch(msg midi.Message) {
	var (
		channel, key, velocity, controller, value, program uint8
		relative                                           int16
		absolute                                           uint16
	)

	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		s.engine.ProcessMidiMessage(int32(channel), NoteOn, int32(key), int32(velocity))
	case msg.GetNoteEnd(&channel, &key):
		s.engine.ProcessMidiMessage(int32(channel), NoteOff, int32(key), 0)
	case msg.GetControlChange(&channel, &controller, &value):
		s.engine.ProcessMidiMessage(int32(channel), ControlChange, int32(controller), int32(value))
	case msg.GetProgramChange(&channel, &program):
		s.engine.ProcessMidiMessage(int32(channel), ProgramChange, int32(program), 0)
	case msg.GetPitchBend(&channel, &relative, &absolute):
		s.engine.ProcessMidiMessage(int32(channel), PitchBend, int32(absolute&0x7f), int32(absolute>>7))
	}
}
