// Package main provides the liquidsfz CLI: a JACK sampler for SFZ and SF2 instruments.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/mycophonic/primordium/app/logger"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/mycophonic/liquidsfz/jack"
	"github.com/mycophonic/liquidsfz/standalone"
	"github.com/mycophonic/liquidsfz/synth"
	"github.com/mycophonic/liquidsfz/version"
)

var errUsage = errors.New("expected exactly one argument: instrument file")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	logger.SetDefaultsForLogger(ctx, zerolog.WarnLevel)

	app := newApp(os.Stdin, os.Stdout)
	err := app.Run(ctx, instrumentArgs(app, os.Args))

	stop()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, diagnostic(err))

		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      version.Name(),
		Usage:     "SFZ sampler for the JACK audio server",
		ArgsUsage: "<sfz_filename>",
		Version:   version.Version() + " (" + version.Commit() + " - " + version.Date() + ")",
		Writer:    stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "client-name",
				Value:   standalone.DefaultClientName,
				Usage:   "JACK client name",
				Sources: cli.EnvVars("LIQUIDSFZ_CLIENT_NAME"),
			},
			&cli.IntFlag{
				Name:  "polyphony",
				Value: 64,
				Usage: "maximum number of simultaneous voices",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("LIQUIDSFZ_DEBUG"),
			},
		},
		Before: setupLogging,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStandalone(ctx, cmd, stdin, stdout)
		},
		Commands: []*cli.Command{
			renderCommand(),
			playCommand(),
			infoCommand(stdout),
		},
	}
}

// setupLogging raises the level set in main when --debug is given.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		logger.SetDefaultsForLogger(ctx, zerolog.DebugLevel)
	}

	return ctx, nil
}

// instrumentArgs rewrites a trailing subcommand name that is also a regular file into ./name, so
// the file is played instead of dispatched. Every subcommand needs arguments of its own.
func instrumentArgs(app *cli.Command, args []string) []string {
	if len(args) < 2 {
		return args
	}

	last := args[len(args)-1]
	if app.Command(last) == nil {
		return args
	}

	if info, err := os.Stat(last); err != nil || !info.Mode().IsRegular() {
		return args
	}

	out := slices.Clone(args)
	out[len(out)-1] = "." + string(filepath.Separator) + last

	return out
}

func runStandalone(ctx context.Context, cmd *cli.Command, stdin io.Reader, stdout io.Writer) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("%w: got %d", errUsage, cmd.NArg())
	}

	return standalone.Run(ctx, standalone.Config{
		ClientName: cmd.String("client-name"),
		Polyphony:  int(cmd.Int("polyphony")),
		Open:       openJack,
		Load:       synth.Load,
		Stdin:      stdin,
		Stdout:     stdout,
		Logger:     slog.Default(),
	}, cmd.Args().First())
}

func openJack(name string, processor synth.Processor) (standalone.Transport, error) {
	client, err := jack.Open(name, processor)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// diagnostic maps an error to the single line printed before exiting.
func diagnostic(err error) string {
	switch {
	case errors.Is(err, errUsage):
		return "usage: " + version.Name() + " <sfz_filename>"
	case errors.Is(err, standalone.ErrConnect):
		return version.Name() + ": unable to connect to jack server"
	case errors.Is(err, standalone.ErrParse):
		return "parse error: exiting"
	case errors.Is(err, standalone.ErrActivate):
		return "cannot activate client"
	default:
		return "error: " + err.Error()
	}
}
