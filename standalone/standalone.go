// Package standalone runs an instrument as a real-time client of an audio server.
//
// The sequence is fixed: open the transport, parse the instrument, build the engine from the
// transport's sample rate, activate, then block until the user or the server ends the session.
package standalone

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/synth"
)

// DefaultClientName is the name the client registers with the server.
const DefaultClientName = "liquidsfz"

// Prompt is printed once the synthesizer is running.
const Prompt = `Synthesizer running - press "Enter" to quit.`

var (
	// ErrConnect is returned when the audio server cannot be reached.
	ErrConnect = errors.New("unable to connect to jack server")
	// ErrParse is returned when the instrument cannot be loaded.
	ErrParse = errors.New("parse error")
	// ErrActivate is returned when the client cannot be activated.
	ErrActivate = errors.New("cannot activate client")
)

// Transport is an opened audio server client with one MIDI input and two audio outputs.
type Transport interface {
	synth.EventSource
	SampleRate() int
	Activate() error
	// Done is closed when the server shuts the client down.
	Done() <-chan struct{}
	// Close releases the client and its ports.
	Close() error
}

// Opener connects to the audio server and arranges for processor to be called on every cycle.
type Opener func(name string, processor synth.Processor) (Transport, error)

// Loader parses an instrument file.
type Loader func(path string, logger *slog.Logger) (synth.Instrument, error)

// Config holds the collaborators and options of a session.
type Config struct {
	ClientName string
	Polyphony  int

	Open Opener
	// Load defaults to synth.Load.
	Load Loader

	Stdin  io.Reader
	Stdout io.Writer
	Logger *slog.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}

	if cfg.Load == nil {
		cfg.Load = synth.Load
	}

	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}

	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return cfg
}

// EngineSettings returns the engine settings for a transport running at sampleRate.
// Reverb and chorus stay off: they are not part of what an SFZ instrument describes.
func EngineSettings(sampleRate, polyphony int) liquidsfz.Settings {
	return liquidsfz.Settings{
		SampleRate:   sampleRate,
		Gain:         liquidsfz.DBToFactor(synth.VolumeHeadroomDB),
		ReverbActive: false,
		ChorusActive: false,
		Polyphony:    polyphony,
	}
}

// Player is one session: the transport, the synth it drives and the loaded instrument.
type Player struct {
	cfg        Config
	synth      *synth.Synth
	transport  Transport
	instrument synth.Instrument
}

// Open connects to the audio server. The returned player owns the transport.
func Open(cfg Config) (*Player, error) {
	cfg = cfg.withDefaults()

	if cfg.Open == nil {
		return nil, fmt.Errorf("%w: no transport configured", ErrConnect)
	}

	player := &Player{cfg: cfg, synth: synth.New()}

	transport, err := cfg.Open(cfg.ClientName, player.synth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	player.transport = transport
	player.synth.MIDIInput = transport

	cfg.Logger.Debug("connected", "client", cfg.ClientName, "sample_rate", transport.SampleRate())

	return player, nil
}

// Load parses the instrument. On failure the transport is closed.
func (p *Player) Load(path string) error {
	inst, err := p.cfg.Load(path, p.cfg.Logger)
	if err != nil {
		p.cfg.Logger.Debug("loading instrument", "path", path, "error", err)

		if closeErr := p.transport.Close(); closeErr != nil {
			p.cfg.Logger.Warn("closing client", "error", closeErr)
		}

		return fmt.Errorf("%w: %w", ErrParse, err)
	}

	p.instrument = inst

	return nil
}

// Run builds the engine, activates the transport and blocks until a line (or EOF) is read
// from stdin, ctx is done, or the server shuts the client down. The transport is closed
// before the engine.
func (p *Player) Run(ctx context.Context) error {
	settings := EngineSettings(p.transport.SampleRate(), p.cfg.Polyphony)

	engine, err := p.instrument.NewEngine(settings)
	if err != nil {
		return errors.Join(fmt.Errorf("creating engine: %w", err), p.transport.Close())
	}

	p.synth.Start(engine)

	if err := p.transport.Activate(); err != nil {
		return errors.Join(fmt.Errorf("%w: %w", ErrActivate, err), p.teardown(engine))
	}

	if _, err := fmt.Fprintln(p.cfg.Stdout, Prompt); err != nil {
		return errors.Join(fmt.Errorf("writing prompt: %w", err), p.teardown(engine))
	}

	p.wait(ctx)

	return p.teardown(engine)
}

func (p *Player) wait(ctx context.Context) {
	line := make(chan struct{})

	go func() {
		// Any outcome of the read, a line or EOF or an error, ends the session.
		_, _ = bufio.NewReader(p.cfg.Stdin).ReadString('\n')

		close(line)
	}()

	select {
	case <-line:
		p.cfg.Logger.Debug("quit requested")
	case <-ctx.Done():
		p.cfg.Logger.Debug("interrupted", "cause", context.Cause(ctx))
	case <-p.transport.Done():
		p.cfg.Logger.Warn("audio server shut the client down")
	}
}

func (p *Player) teardown(engine synth.Engine) error {
	var errs []error

	if err := p.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing client: %w", err))
	}

	if err := engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing engine: %w", err))
	}

	return errors.Join(errs...)
}

// Run opens the transport, parses the instrument at path and runs the session.
// Parsing is only attempted once the transport is open.
func Run(ctx context.Context, cfg Config, path string) error {
	player, err := Open(cfg)
	if err != nil {
		return err
	}

	if err := player.Load(path); err != nil {
		return err
	}

	return player.Run(ctx)
}
