package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/mycophonic/liquidsfz/standalone"
	"github.com/mycophonic/liquidsfz/synth"
)

var errInfoArgs = errors.New("expected one argument: instrument file")

func infoCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Print the regions and samples of an instrument",
		ArgsUsage: "<instrument>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errInfoArgs, cmd.NArg())
			}

			inst, err := synth.Load(cmd.Args().First(), slog.Default())
			if err != nil {
				return fmt.Errorf("%w: %w", standalone.ErrParse, err)
			}

			return describe(stdout, inst)
		},
	}
}

func describe(w io.Writer, inst synth.Instrument) error {
	switch inst := inst.(type) {
	case synth.SFZ:
		if _, err := fmt.Fprintf(w, "SFZ %s: %d regions, %d samples\n",
			inst.Path, len(inst.Regions), len(inst.Samples)); err != nil {
			return err
		}

		paths := make([]string, 0, len(inst.Samples))
		for path := range inst.Samples {
			paths = append(paths, path)
		}

		slices.Sort(paths)

		for _, path := range paths {
			sample := inst.Samples[path]
			if _, err := fmt.Fprintf(w, "  %s: %d Hz, %d ch, %d frames\n",
				path, sample.SampleRate, sample.Channels, sample.Frames()); err != nil {
				return err
			}
		}
	case synth.SoundFont:
		presets := inst.Presets()
		if _, err := fmt.Fprintf(w, "SoundFont %s: %d presets\n", inst.Path, len(presets)); err != nil {
			return err
		}

		for _, name := range presets {
			if _, err := fmt.Fprintf(w, "  %s\n", name); err != nil {
				return err
			}
		}
	}

	return nil
}
