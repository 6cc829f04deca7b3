package synth

import (
	"math"

	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/sfz"
)

type voiceState uint8

const (
	voiceIdle voiceState = iota
	voicePlaying
	voiceReleasing
)

// voice plays one region. All fields are plain values so starting a voice never allocates.
type voice struct {
	state  voiceState
	region *sfz.Region
	data   []float32
	chans  int
	frames int

	channel, key int
	age          uint64
	// held is set when note off arrived while the sustain pedal was down.
	held bool

	pos  float64
	step float64

	gainL, gainR float32

	env         float32
	attackStep  float32
	releaseStep float32
	releaseLen  float32 // frames
}

func (v *voice) start(region *sfz.Region, channel, key, velocity, outputRate int, gain float64, age uint64) {
	sample := region.Data

	*v = voice{
		state:   voicePlaying,
		region:  region,
		data:    sample.Data,
		chans:   sample.Channels,
		frames:  sample.Frames(),
		channel: channel,
		key:     key,
		age:     age,
		pos:     float64(min(region.Offset, max(0, sample.Frames()-1))),
	}

	semitones := float64(key-region.PitchKeycenter+region.Transpose) + float64(region.Tune)/100
	v.step = math.Exp2(semitones/12) * float64(sample.SampleRate) / float64(outputRate)

	amp := liquidsfz.DBToFactor(region.Volume) * velocityGain(velocity, region.AmpVeltrack) * gain
	angle := (region.Pan + 100) / 200 * math.Pi / 2
	v.gainL = float32(amp * math.Cos(angle) * math.Sqrt2)
	v.gainR = float32(amp * math.Sin(angle) * math.Sqrt2)

	if attack := region.AmpegAttack * float64(outputRate); attack >= 1 {
		v.attackStep = float32(1 / attack)
	} else {
		v.env = 1
	}

	v.releaseLen = float32(max(1, region.AmpegRelease*float64(outputRate)))
}

// release moves the voice into its release phase. One-shot regions ignore note off.
func (v *voice) release() {
	if v.state != voicePlaying || v.region.LoopMode == sfz.OneShot {
		return
	}

	v.state = voiceReleasing
	v.held = false
	v.releaseStep = max(v.env, 1e-6) / v.releaseLen
}

func (v *voice) kill() {
	v.state = voiceIdle
	v.region = nil
	v.data = nil
}

// looping reports whether the loop points are honoured in the voice's current state.
func (v *voice) looping() bool {
	if !v.region.Looping() || v.region.LoopEnd >= v.frames {
		return false
	}

	return v.region.LoopMode == sfz.LoopContinuous || v.state == voicePlaying
}

func (v *voice) frame(idx int) (float32, float32) {
	switch v.chans {
	case 1:
		s := v.data[idx]

		return s, s
	default:
		base := idx * v.chans

		return v.data[base], v.data[base+1]
	}
}

// render adds the voice into left and right.
func (v *voice) render(left, right []float32) {
	for i := range left {
		if v.state == voiceIdle {
			return
		}

		loop := v.looping()

		if loop && v.pos >= float64(v.region.LoopEnd+1) {
			start := float64(v.region.LoopStart)
			v.pos = start + math.Mod(v.pos-start, float64(v.region.LoopEnd-v.region.LoopStart+1))
		}

		idx := int(v.pos)
		if idx >= v.frames {
			v.kill()

			return
		}

		next := idx + 1

		switch {
		case loop && next > v.region.LoopEnd:
			next = v.region.LoopStart
		case next >= v.frames:
			next = idx
		}

		frac := float32(v.pos - float64(idx))
		l0, r0 := v.frame(idx)
		l1, r1 := v.frame(next)

		env := v.advanceEnvelope()

		left[i] += (l0 + (l1-l0)*frac) * v.gainL * env
		right[i] += (r0 + (r1-r0)*frac) * v.gainR * env

		v.pos += v.step
	}
}

func (v *voice) advanceEnvelope() float32 {
	env := v.env

	switch v.state {
	case voicePlaying:
		if v.env < 1 {
			v.env = min(1, v.env+v.attackStep)
		}
	case voiceReleasing:
		v.env -= v.releaseStep
		if v.env <= 0 {
			v.kill()
		}
	case voiceIdle:
	}

	return env
}

// velocityGain follows amp_veltrack: at 100% the gain is (velocity/127)², at 0% velocity is ignored.
func velocityGain(velocity int, veltrack float64) float64 {
	v := float64(velocity) / 127
	track := max(0, min(100, veltrack)) / 100

	return 1 + track*(v*v-1)
}
