package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/urfave/cli/v3"

	"github.com/mycophonic/liquidsfz/render"
)

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a MIDI file through an instrument on the default audio device",
		ArgsUsage: "<instrument> <song.mid>",
		Flags: []cli.Flag{
			sampleRateFlag(),
			tailFlag(),
		},
		Action: runPlay,
	}
}

func runPlay(ctx context.Context, cmd *cli.Command) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.engine.Close()

	otoCtx, ready, err := oto.NewContext(sess.rate, stereo, oto.FormatFloat32LE)
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}

	<-ready

	stream := render.NewStream(sess.synth, sess.sequence, render.TailFrames(cmd.Duration("tail"), sess.rate))

	player := otoCtx.NewPlayer(stream)
	defer player.Close()

	player.Play()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			slog.Debug("playback interrupted", "remaining_frames", stream.Remaining())

			return nil
		case <-ticker.C:
		}
	}

	if err := player.Err(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	return nil
}
