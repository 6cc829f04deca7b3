package render_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/mycophonic/liquidsfz/render"
	"github.com/mycophonic/liquidsfz/synth"
)

const rate = 1000

func tempo(bpm float64) smf.Message {
	micros := uint32(60000000 / bpm)

	return smf.Message([]byte{0xFF, 0x51, 0x03, byte(micros >> 16), byte(micros >> 8), byte(micros)})
}

// song is one quarter of silence at 120 BPM, a quarter note at 60 BPM, and a second track
// holding a control change two quarters in.
func song(t *testing.T) []byte {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)

	var conductor smf.Track

	conductor.Add(0, tempo(120))
	conductor.Add(480, tempo(60))
	conductor.Close(0)

	var notes smf.Track

	notes.Add(480, midi.NoteOn(0, 60, 100))
	notes.Add(480, midi.NoteOff(0, 60))
	notes.Close(0)

	var controls smf.Track

	controls.Add(960, midi.ControlChange(1, 64, 127))
	controls.Close(0)

	for _, track := range []smf.Track{conductor, notes, controls} {
		if err := s.Add(track); err != nil {
			t.Fatalf("adding track: %v", err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("writing smf: %v", err)
	}

	return buf.Bytes()
}

func TestLoadSMFTiming(t *testing.T) {
	t.Parallel()

	seq, err := render.LoadSMF(bytes.NewReader(song(t)), rate)
	if err != nil {
		t.Fatalf("LoadSMF: %v", err)
	}

	if seq.Len() != 3 {
		t.Fatalf("Len = %d, want 3 channel messages", seq.Len())
	}

	// 480 ticks at 120 BPM is 500ms; the next 480 ticks at 60 BPM take a second.
	events := seq.MIDIEvents(2000, nil)

	var channel, key, controller, value uint8

	checks := []struct {
		frame uint32
		is    func(midi.Message) bool
	}{
		{500, func(m midi.Message) bool { return m.GetNoteStart(&channel, &key, &value) && key == 60 }},
		{1500, func(m midi.Message) bool { return m.GetNoteEnd(&channel, &key) && key == 60 }},
		{1500, func(m midi.Message) bool { return m.GetControlChange(&channel, &controller, &value) && channel == 1 }},
	}

	if len(events) != len(checks) {
		t.Fatalf("got %d events, want %d", len(events), len(checks))
	}

	for i, c := range checks {
		if events[i].Frame != c.frame || !c.is(midi.Message(events[i].Data)) {
			t.Errorf("event %d = frame %d % X, want frame %d", i, events[i].Frame, events[i].Data, c.frame)
		}
	}

	if seq.Frames() != 1501 {
		t.Errorf("Frames = %d, want 1501", seq.Frames())
	}
}

func TestSequenceCycles(t *testing.T) {
	t.Parallel()

	seq, err := render.LoadSMF(bytes.NewReader(song(t)), rate)
	if err != nil {
		t.Fatalf("LoadSMF: %v", err)
	}

	var got []uint32

	for cycle := range 4 {
		for _, ev := range seq.MIDIEvents(512, nil) {
			got = append(got, uint32(cycle)*512+ev.Frame)
		}
	}

	if len(got) != 3 || got[0] != 500 || got[1] != 1500 || got[2] != 1500 {
		t.Errorf("absolute event frames = %v, want [500 1500 1500]", got)
	}

	if events := seq.MIDIEvents(512, nil); len(events) != 0 {
		t.Errorf("exhausted sequence returned %d events", len(events))
	}
}

func TestLoadSMFErrors(t *testing.T) {
	t.Parallel()

	if _, err := render.LoadSMF(bytes.NewReader([]byte("not a midi file")), rate); err == nil {
		t.Error("expected an error for garbage input")
	}
}

// counter is an engine that counts note ons and renders a constant while any note is held.
type counter struct {
	held, notes int
}

func (c *counter) ProcessMidiMessage(_, command, _, _ int32) {
	switch command {
	case synth.NoteOn:
		c.held++
		c.notes++
	case synth.NoteOff:
		c.held--
	}
}

func (c *counter) Render(left, right []float32) {
	for i := range left {
		if c.held > 0 {
			left[i], right[i] = 0.25, -0.25
		} else {
			left[i], right[i] = 0, 0
		}
	}
}

func (c *counter) Close() error { return nil }

func TestOffline(t *testing.T) {
	t.Parallel()

	seq, err := render.LoadSMF(bytes.NewReader(song(t)), rate)
	if err != nil {
		t.Fatalf("LoadSMF: %v", err)
	}

	engine := &counter{}
	s := synth.New()
	s.Start(engine)

	out := render.Offline(s, seq, render.TailFrames(100*time.Millisecond, rate))

	if len(out) != (1501+100)*2 {
		t.Fatalf("rendered %d samples, want %d", len(out), (1501+100)*2)
	}

	if engine.notes != 1 {
		t.Errorf("engine saw %d notes, want 1", engine.notes)
	}

	if out[2*499] != 0 || out[2*500] != 0.25 || out[2*1499+1] != -0.25 || out[2*1500] != 0 {
		t.Errorf("note not rendered between frames 500 and 1500")
	}
}

func TestStream(t *testing.T) {
	t.Parallel()

	seq, err := render.LoadSMF(bytes.NewReader(song(t)), rate)
	if err != nil {
		t.Fatalf("LoadSMF: %v", err)
	}

	s := synth.New()
	s.Start(&counter{})

	stream := render.NewStream(s, seq, 0)

	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if len(data) != 1501*2*4 {
		t.Fatalf("read %d bytes, want %d", len(data), 1501*2*4)
	}

	sample := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}

	if sample(2*1000) != 0.25 || sample(2*1000+1) != -0.25 {
		t.Errorf("frame 1000 = (%v, %v), want (0.25, -0.25)", sample(2*1000), sample(2*1000+1))
	}

	if stream.Remaining() != 0 {
		t.Errorf("Remaining = %d after EOF", stream.Remaining())
	}

	if n, err := stream.Read(make([]byte, 8)); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("Read after end = %d, %v", n, err)
	}
}

func TestTailFrames(t *testing.T) {
	t.Parallel()

	if got := render.TailFrames(2*time.Second, 44100); got != 88200 {
		t.Errorf("TailFrames = %d, want 88200", got)
	}

	if got := render.TailFrames(-time.Second, 44100); got != 0 {
		t.Errorf("negative tail = %d, want 0", got)
	}
}
