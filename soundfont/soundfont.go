// Package soundfont plays SF2 instruments through go-meltysynth.
package soundfont

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// Polyphony bounds accepted by meltysynth.
const (
	minPolyphony = 8
	maxPolyphony = 256
)

const (
	allSoundOff   = 120
	controlChange = 0xB0
	midiChannels  = 16
)

// ErrParse is returned when a file is not a valid SoundFont.
var ErrParse = errors.New("soundfont parse failure")

// Font is a parsed SoundFont.
type Font struct {
	Path string
	SF   *meltysynth.SoundFont
}

// Load reads and parses the SoundFont at path.
func Load(path string) (*Font, error) {
	data, err := os.ReadFile(path) //nolint:gosec // instrument files are user supplied
	if err != nil {
		return nil, fmt.Errorf("reading soundfont: %w", err)
	}

	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return &Font{Path: path, SF: sf}, nil
}

// Presets returns the preset names in file order.
func (f *Font) Presets() []string {
	names := make([]string, 0, len(f.SF.Presets))
	for _, preset := range f.SF.Presets {
		names = append(names, preset.Name)
	}

	return names
}

// Config is the subset of engine settings meltysynth understands.
type Config struct {
	SampleRate   int
	Gain         float64
	Polyphony    int
	ReverbChorus bool
}

// Settings maps a Config onto meltysynth's settings, clamping polyphony into its accepted range.
func Settings(cfg Config) *meltysynth.SynthesizerSettings {
	settings := meltysynth.NewSynthesizerSettings(int32(cfg.SampleRate)) //nolint:gosec // sample rates fit
	settings.MaximumPolyphony = int32(max(minPolyphony, min(maxPolyphony, cfg.Polyphony)))
	settings.EnableReverbAndChorus = cfg.ReverbChorus

	return settings
}

// Engine is a meltysynth synthesizer.
type Engine struct {
	synth *meltysynth.Synthesizer
}

// NewEngine creates a synthesizer for the font.
func NewEngine(font *Font, cfg Config) (*Engine, error) {
	synth, err := meltysynth.NewSynthesizer(font.SF, Settings(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating synthesizer: %w", err)
	}

	synth.MasterVolume = float32(cfg.Gain)

	return &Engine{synth: synth}, nil
}

// ProcessMidiMessage forwards a channel message to meltysynth.
func (e *Engine) ProcessMidiMessage(channel, command, data1, data2 int32) {
	e.synth.ProcessMidiMessage(channel, command, data1, data2)
}

// Render fills left and right.
func (e *Engine) Render(left, right []float32) {
	e.synth.Render(left, right)
}

// Close silences every channel.
func (e *Engine) Close() error {
	for channel := range int32(midiChannels) {
		e.synth.ProcessMidiMessage(channel, controlChange, allSoundOff, 0)
	}

	return nil
}
