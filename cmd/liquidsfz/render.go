package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/render"
	"github.com/mycophonic/liquidsfz/standalone"
	"github.com/mycophonic/liquidsfz/synth"
	"github.com/mycophonic/liquidsfz/wav"
)

const stereo = 2

var (
	errSongArgs = errors.New("expected two arguments: instrument file and MIDI file")
	errBitDepth = errors.New("supported output bit depths are 16, 24 and 32")
)

func sampleRateFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "sample-rate",
		Aliases: []string{"r"},
		Value:   44100,
		Usage:   "output sample rate",
	}
}

func tailFlag() cli.Flag {
	return &cli.DurationFlag{
		Name:  "tail",
		Value: 2 * time.Second,
		Usage: "time rendered after the last MIDI event, for releases to ring out",
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a MIDI file through an instrument to WAV",
		ArgsUsage: "<instrument> <song.mid>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "output WAV file path",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "bit-depth",
				Aliases: []string{"b"},
				Value:   16,
				Usage:   "output bit depth (16, 24, 32)",
			},
			sampleRateFlag(),
			tailFlag(),
		},
		Action: runRender,
	}
}

// session is an instrument engine installed in a synth together with the song to play.
type session struct {
	synth    *synth.Synth
	engine   synth.Engine
	sequence *render.Sequence
	rate     int
}

func openSession(cmd *cli.Command) (*session, error) {
	if cmd.NArg() != 2 {
		return nil, fmt.Errorf("%w: got %d", errSongArgs, cmd.NArg())
	}

	rate := int(cmd.Int("sample-rate"))

	inst, err := synth.Load(cmd.Args().Get(0), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", standalone.ErrParse, err)
	}

	songPath := cmd.Args().Get(1)

	song, err := os.Open(songPath) //nolint:gosec // CLI tool opens user-specified MIDI files
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", songPath, err)
	}
	defer song.Close()

	seq, err := render.LoadSMF(song, rate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", songPath, err)
	}

	engine, err := inst.NewEngine(standalone.EngineSettings(rate, int(cmd.Int("polyphony"))))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	s := synth.New()
	s.Start(engine)

	slog.Debug("session ready", "events", seq.Len(), "frames", seq.Frames(), "sample_rate", rate)

	return &session{synth: s, engine: engine, sequence: seq, rate: rate}, nil
}

// outputDepth validates the requested WAV bit depth. 8-bit output is refused.
func outputDepth(bits int) (liquidsfz.BitDepth, error) {
	if bits < int(liquidsfz.Depth16) || bits > int(liquidsfz.Depth32) {
		return 0, fmt.Errorf("bit depth %d: %w", bits, errBitDepth)
	}

	depth, err := liquidsfz.ToBitDepth(uint8(bits)) //nolint:gosec // range checked above
	if err != nil {
		return 0, fmt.Errorf("bit depth %d: %w", bits, errors.Join(err, errBitDepth))
	}

	return depth, nil
}

func runRender(_ context.Context, cmd *cli.Command) error {
	depth, err := outputDepth(int(cmd.Int("bit-depth")))
	if err != nil {
		return err
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.engine.Close()

	samples := render.Offline(sess.synth, sess.sequence, render.TailFrames(cmd.Duration("tail"), sess.rate))

	output := cmd.String("output")

	out, err := os.Create(output) //nolint:gosec // CLI tool writes to user-specified path
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	if err := wav.EncodeFloat(out, samples, sess.rate, stereo, depth); err != nil {
		_ = out.Close()

		return fmt.Errorf("writing %s: %w", output, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", output, err)
	}

	slog.Info("rendered", "output", output, "frames", len(samples)/stereo)

	return nil
}
