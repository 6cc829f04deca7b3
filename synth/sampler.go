package synth

import (
	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/sfz"
)

const (
	channels = 16
	keys     = 128

	ccSustain          = 64
	ccAllSoundOff      = 120
	ccResetControllers = 121
	ccAllNotesOff      = 123
)

// Sampler plays the regions of an SFZ instrument on a fixed pool of voices.
type Sampler struct {
	regions []*sfz.Region
	rate    int
	gain    float64

	voices []voice
	age    uint64

	sustain    [channels]bool
	velocities [channels][keys]int
}

// NewSampler builds a sampler engine for inst. The voice pool is sized once here.
func NewSampler(inst *sfz.Instrument, settings liquidsfz.Settings) *Sampler {
	return &Sampler{
		regions: inst.Regions,
		rate:    settings.SampleRate,
		gain:    settings.Gain,
		voices:  make([]voice, settings.Voices()),
	}
}

// ProcessMidiMessage implements Engine.
func (s *Sampler) ProcessMidiMessage(channel, command, data1, data2 int32) {
	if channel < 0 || channel >= channels || data1 < 0 || data1 >= keys {
		return
	}

	ch, d1, d2 := int(channel), int(data1), int(data2)

	switch command {
	case NoteOn:
		if d2 == 0 {
			s.noteOff(ch, d1)

			return
		}

		s.noteOn(ch, d1, d2)
	case NoteOff:
		s.noteOff(ch, d1)
	case ControlChange:
		s.controlChange(ch, d1, d2)
	}
}

// Render implements Engine.
func (s *Sampler) Render(left, right []float32) {
	clear(left)
	clear(right)

	for i := range s.voices {
		if s.voices[i].state != voiceIdle {
			s.voices[i].render(left, right)
		}
	}
}

// Close stops every voice.
func (s *Sampler) Close() error {
	for i := range s.voices {
		s.voices[i].kill()
	}

	return nil
}

// Active returns the number of sounding voices.
func (s *Sampler) Active() int {
	n := 0

	for i := range s.voices {
		if s.voices[i].state != voiceIdle {
			n++
		}
	}

	return n
}

func (s *Sampler) noteOn(channel, key, velocity int) {
	s.velocities[channel][key] = velocity

	s.trigger(sfz.TriggerAttack, channel, key, velocity)
}

func (s *Sampler) noteOff(channel, key int) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.state != voicePlaying || v.channel != channel || v.key != key || v.region.Trigger != sfz.TriggerAttack {
			continue
		}

		if s.sustain[channel] {
			v.held = true

			continue
		}

		v.release()
	}

	// Only a key that is down plays its release samples.
	if velocity := s.velocities[channel][key]; velocity > 0 {
		s.velocities[channel][key] = 0
		s.trigger(sfz.TriggerRelease, channel, key, velocity)
	}
}

func (s *Sampler) trigger(trigger sfz.Trigger, channel, key, velocity int) {
	for _, region := range s.regions {
		if region.Trigger != trigger || !region.Matches(channel+1, key, velocity) {
			continue
		}

		s.age++
		s.allocate().start(region, channel, key, velocity, s.rate, s.gain, s.age)
	}
}

// allocate returns a free voice, stealing the quietest releasing voice or else the oldest one.
func (s *Sampler) allocate() *voice {
	var quietest, oldest *voice

	for i := range s.voices {
		v := &s.voices[i]

		switch v.state {
		case voiceIdle:
			return v
		case voiceReleasing:
			if quietest == nil || v.env < quietest.env {
				quietest = v
			}
		case voicePlaying:
		}

		if oldest == nil || v.age < oldest.age {
			oldest = v
		}
	}

	if quietest != nil {
		return quietest
	}

	return oldest
}

func (s *Sampler) controlChange(channel, controller, value int) {
	switch controller {
	case ccSustain:
		down := value >= 64
		if s.sustain[channel] && !down {
			for i := range s.voices {
				if v := &s.voices[i]; v.held && v.channel == channel {
					v.release()
				}
			}
		}

		s.sustain[channel] = down
	case ccResetControllers:
		s.controlChange(channel, ccSustain, 0)
	case ccAllSoundOff:
		for i := range s.voices {
			if s.voices[i].channel == channel {
				s.voices[i].kill()
			}
		}
	case ccAllNotesOff:
		s.sustain[channel] = false

		for i := range s.voices {
			if s.voices[i].channel == channel {
				s.voices[i].release()
			}
		}
	}
}
