package sfz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mycophonic/liquidsfz"
)

// LoopMode selects how a region's sample is looped.
type LoopMode uint8

const (
	// NoLoop plays the sample once, stopping early on release.
	NoLoop LoopMode = iota
	// OneShot plays the whole sample and ignores note off.
	OneShot
	// LoopContinuous loops between the loop points until the voice ends.
	LoopContinuous
	// LoopSustain loops between the loop points while the note is held.
	LoopSustain
)

// Trigger selects which MIDI event starts a region.
type Trigger uint8

const (
	// TriggerAttack starts the region on note on.
	TriggerAttack Trigger = iota
	// TriggerRelease starts the region on note off.
	TriggerRelease
)

// Region maps a key/velocity/channel range to a sample and its playback parameters.
type Region struct {
	Sample string // resolved path of the sample file
	Data   *liquidsfz.Sample

	Lokey, Hikey   int
	Lovel, Hivel   int
	Lochan, Hichan int
	PitchKeycenter int

	Volume      float64 // dB
	Pan         float64 // -100 (left) .. 100 (right)
	Tune        int     // cents
	Transpose   int     // semitones
	AmpVeltrack float64 // percent

	AmpegAttack  float64 // seconds
	AmpegRelease float64 // seconds

	Offset    int // frames
	LoopMode  LoopMode
	LoopStart int // frames, -1 when unset
	LoopEnd   int // frames, -1 when unset
	Trigger   Trigger
}

func newRegion() *Region {
	return &Region{
		Lokey:          0,
		Hikey:          127,
		Lovel:          1,
		Hivel:          127,
		Lochan:         1,
		Hichan:         16,
		PitchKeycenter: 60,
		AmpVeltrack:    100,
		AmpegRelease:   0.001,
		LoopStart:      -1,
		LoopEnd:        -1,
	}
}

// Matches reports whether a note on the given channel (1-16), key and velocity triggers the region.
func (r *Region) Matches(channel, key, velocity int) bool {
	return key >= r.Lokey && key <= r.Hikey &&
		velocity >= r.Lovel && velocity <= r.Hivel &&
		channel >= r.Lochan && channel <= r.Hichan
}

// Looping reports whether the region has a usable loop.
func (r *Region) Looping() bool {
	return (r.LoopMode == LoopContinuous || r.LoopMode == LoopSustain) && r.LoopEnd > r.LoopStart && r.LoopStart >= 0
}

// apply sets one opcode. It reports false for opcodes the loader does not implement.
func (r *Region) apply(name, value string) (bool, error) {
	var err error

	switch name {
	case "sample":
		r.Sample = value
	case "lokey":
		r.Lokey, err = parseKey(value)
	case "hikey":
		r.Hikey, err = parseKey(value)
	case "key":
		var key int

		key, err = parseKey(value)
		r.Lokey, r.Hikey, r.PitchKeycenter = key, key, key
	case "pitch_keycenter":
		r.PitchKeycenter, err = parseKey(value)
	case "lovel":
		r.Lovel, err = parseRange(value, 0, 127)
	case "hivel":
		r.Hivel, err = parseRange(value, 0, 127)
	case "lochan":
		r.Lochan, err = parseRange(value, 1, 16)
	case "hichan":
		r.Hichan, err = parseRange(value, 1, 16)
	case "volume":
		r.Volume, err = strconv.ParseFloat(value, 64)
	case "pan":
		r.Pan, err = strconv.ParseFloat(value, 64)
		r.Pan = max(-100, min(100, r.Pan))
	case "tune":
		r.Tune, err = strconv.Atoi(value)
	case "transpose":
		r.Transpose, err = parseRange(value, -127, 127)
	case "amp_veltrack":
		r.AmpVeltrack, err = strconv.ParseFloat(value, 64)
	case "ampeg_attack":
		r.AmpegAttack, err = parseSeconds(value)
	case "ampeg_release":
		r.AmpegRelease, err = parseSeconds(value)
	case "offset":
		r.Offset, err = parseRange(value, 0, 1<<31-1)
	case "loop_start", "loopstart":
		r.LoopStart, err = parseRange(value, 0, 1<<31-1)
	case "loop_end", "loopend":
		r.LoopEnd, err = parseRange(value, 0, 1<<31-1)
	case "loop_mode", "loopmode":
		r.LoopMode, err = parseLoopMode(value)
	case "trigger":
		r.Trigger, err = parseTrigger(value)
	default:
		return false, nil
	}

	if err != nil {
		return true, fmt.Errorf("%w: %s=%s", ErrInvalidValue, name, value)
	}

	return true, nil
}

func parseRange(value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	if n < lo || n > hi {
		return 0, strconv.ErrRange
	}

	return n, nil
}

func parseSeconds(value string) (float64, error) {
	s, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}

	return max(0, s), nil
}

// semitones maps note letters to their offset from C.
//
//nolint:gochecknoglobals
var semitones = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// parseKey accepts a MIDI key number or a note name such as c4 (60), c#4 or db4.
func parseKey(value string) (int, error) {
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 || n > 127 {
			return 0, strconv.ErrRange
		}

		return n, nil
	}

	name := strings.ToLower(value)
	if name == "" {
		return 0, strconv.ErrSyntax
	}

	base, ok := semitones[name[0]]
	if !ok {
		return 0, strconv.ErrSyntax
	}

	rest := name[1:]

	switch {
	case strings.HasPrefix(rest, "#"):
		base++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b") && len(rest) > 1:
		base--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, strconv.ErrSyntax
	}

	key := (octave+1)*12 + base
	if key < 0 || key > 127 {
		return 0, strconv.ErrRange
	}

	return key, nil
}

func parseLoopMode(value string) (LoopMode, error) {
	switch value {
	case "no_loop":
		return NoLoop, nil
	case "one_shot":
		return OneShot, nil
	case "loop_continuous":
		return LoopContinuous, nil
	case "loop_sustain":
		return LoopSustain, nil
	}

	return NoLoop, strconv.ErrSyntax
}

func parseTrigger(value string) (Trigger, error) {
	switch value {
	case "attack", "first", "legato":
		return TriggerAttack, nil
	case "release", "release_key":
		return TriggerRelease, nil
	}

	return TriggerAttack, strconv.ErrSyntax
}
