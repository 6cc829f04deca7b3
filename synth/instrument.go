package synth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/detect"
	"github.com/mycophonic/liquidsfz/sfz"
	"github.com/mycophonic/liquidsfz/soundfont"
)

// Instrument is a loaded instrument file that can build engines.
type Instrument interface {
	NewEngine(settings liquidsfz.Settings) (Engine, error)
}

// SFZ is an SFZ instrument played by the Sampler.
type SFZ struct {
	*sfz.Instrument
}

// NewEngine returns a Sampler for the instrument.
func (i SFZ) NewEngine(settings liquidsfz.Settings) (Engine, error) {
	return NewSampler(i.Instrument, settings), nil
}

// SoundFont is an SF2 instrument played by meltysynth.
type SoundFont struct {
	*soundfont.Font
}

// NewEngine returns a meltysynth engine for the font.
func (i SoundFont) NewEngine(settings liquidsfz.Settings) (Engine, error) {
	engine, err := soundfont.NewEngine(i.Font, soundfont.Config{
		SampleRate:   settings.SampleRate,
		Gain:         settings.Gain,
		Polyphony:    settings.Voices(),
		ReverbChorus: settings.ReverbActive || settings.ChorusActive,
	})
	if err != nil {
		return nil, err
	}

	return engine, nil
}

// Load parses the instrument at path. SoundFonts are recognized by content or by the .sf2
// extension; everything else is parsed as SFZ.
func Load(path string, logger *slog.Logger) (Instrument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	isSF2, err := isSoundFont(path)
	if err != nil {
		return nil, err
	}

	if isSF2 {
		font, err := soundfont.Load(path)
		if err != nil {
			return nil, err
		}

		logger.Debug("soundfont loaded", "path", path, "presets", len(font.SF.Presets))

		return SoundFont{font}, nil
	}

	inst, err := (&sfz.Loader{Logger: logger}).Load(path)
	if err != nil {
		return nil, err
	}

	return SFZ{inst}, nil
}

func isSoundFont(path string) (bool, error) {
	if strings.EqualFold(filepath.Ext(path), ".sf2") {
		return true, nil
	}

	file, err := os.Open(path) //nolint:gosec // instrument files are user supplied
	if err != nil {
		return false, fmt.Errorf("opening instrument: %w", err)
	}
	defer file.Close()

	format, err := detect.Identify(file)
	if errors.Is(err, io.EOF) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return format == detect.SoundFont, nil
}
