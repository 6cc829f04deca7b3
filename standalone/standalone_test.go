package standalone_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mycophonic/liquidsfz"
	"github.com/mycophonic/liquidsfz/standalone"
	"github.com/mycophonic/liquidsfz/synth"
)

var (
	errNoServer = errors.New("no server")
	errBadFile  = errors.New("bad file")
	errRefused  = errors.New("refused")
)

// journal records collaborator calls in order.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.calls = append(j.calls, call)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return slices.Clone(j.calls)
}

type fakeTransport struct {
	journal     *journal
	processor   synth.Processor
	rate        int
	activateErr error
	done        chan struct{}
}

func (f *fakeTransport) MIDIEvents(_ uint32, dst []synth.Event) []synth.Event { return dst }

func (f *fakeTransport) SampleRate() int { return f.rate }

func (f *fakeTransport) Activate() error {
	f.journal.add("activate")

	if f.activateErr != nil {
		return f.activateErr
	}

	// The first cycle runs as soon as the client is active.
	out := [2][]float32{make([]float32, 16), make([]float32, 16)}
	f.processor.Process(out, 16)

	return nil
}

func (f *fakeTransport) Done() <-chan struct{} { return f.done }

func (f *fakeTransport) Close() error {
	f.journal.add("close client")

	return nil
}

type fakeEngine struct {
	journal *journal
}

func (e *fakeEngine) ProcessMidiMessage(_, _, _, _ int32) {}

func (e *fakeEngine) Render(_, _ []float32) {
	e.journal.add("render")
}

func (e *fakeEngine) Close() error {
	e.journal.add("close engine")

	return nil
}

type fakeInstrument struct {
	journal  *journal
	settings *liquidsfz.Settings
}

func (i *fakeInstrument) NewEngine(settings liquidsfz.Settings) (synth.Engine, error) {
	i.journal.add("new engine")
	*i.settings = settings

	return &fakeEngine{journal: i.journal}, nil
}

type harness struct {
	journal   *journal
	transport *fakeTransport
	settings  liquidsfz.Settings
	openName  string
	stdout    bytes.Buffer

	openErr error
	loadErr error
}

func newHarness() *harness {
	j := &journal{}

	return &harness{
		journal:   j,
		transport: &fakeTransport{journal: j, rate: 48000, done: make(chan struct{})},
	}
}

func (h *harness) config(stdin io.Reader) standalone.Config {
	return standalone.Config{
		Polyphony: 32,
		Open: func(name string, processor synth.Processor) (standalone.Transport, error) {
			h.journal.add("open")
			h.openName = name

			if h.openErr != nil {
				return nil, h.openErr
			}

			h.transport.processor = processor

			return h.transport, nil
		},
		Load: func(path string, _ *slog.Logger) (synth.Instrument, error) {
			h.journal.add("load " + path)

			if h.loadErr != nil {
				return nil, h.loadErr
			}

			return &fakeInstrument{journal: h.journal, settings: &h.settings}, nil
		},
		Stdin:  stdin,
		Stdout: &h.stdout,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRunConnectFailureSkipsParse(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.openErr = errNoServer

	err := standalone.Run(context.Background(), h.config(strings.NewReader("\n")), "piano.sfz")
	if !errors.Is(err, standalone.ErrConnect) || !errors.Is(err, errNoServer) {
		t.Fatalf("err = %v, want ErrConnect wrapping the transport error", err)
	}

	if got := h.journal.list(); !slices.Equal(got, []string{"open"}) {
		t.Errorf("calls = %v, parse must not be attempted", got)
	}

	if h.stdout.Len() != 0 {
		t.Errorf("unexpected output %q", h.stdout.String())
	}
}

func TestRunParseFailure(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.loadErr = errBadFile

	var logs bytes.Buffer

	cfg := h.config(strings.NewReader("\n"))
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	err := standalone.Run(context.Background(), cfg, "piano.sfz")
	if !errors.Is(err, standalone.ErrParse) || !errors.Is(err, errBadFile) {
		t.Fatalf("err = %v, want ErrParse", err)
	}

	if logs.Len() != 0 {
		t.Errorf("parse failure logged at the default level: %s", logs.String())
	}

	want := []string{"open", "load piano.sfz", "close client"}
	if got := h.journal.list(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	if strings.Contains(h.stdout.String(), standalone.Prompt) {
		t.Error("prompt printed although the run loop was never entered")
	}
}

func TestRunEngineSettings(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.transport.rate = 96000

	if err := standalone.Run(context.Background(), h.config(strings.NewReader("\n")), "piano.sfz"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if h.settings.SampleRate != 96000 {
		t.Errorf("SampleRate = %d, want the transport rate 96000", h.settings.SampleRate)
	}

	if want := math.Pow(10, synth.VolumeHeadroomDB/20.0); math.Abs(h.settings.Gain-want) > 1e-12 {
		t.Errorf("Gain = %v, want %v", h.settings.Gain, want)
	}

	if h.settings.ReverbActive || h.settings.ChorusActive {
		t.Error("reverb and chorus must be disabled")
	}

	if h.settings.Polyphony != 32 {
		t.Errorf("Polyphony = %d, want 32", h.settings.Polyphony)
	}
}

func TestRunPromptAndTeardownOrder(t *testing.T) {
	t.Parallel()

	h := newHarness()

	if err := standalone.Run(context.Background(), h.config(strings.NewReader("\nmore input\n")), "piano.sfz"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := h.stdout.String(); got != standalone.Prompt+"\n" {
		t.Errorf("stdout = %q, want exactly one prompt line", got)
	}

	// The engine renders on the first cycle after activation, so it was installed before.
	want := []string{"open", "load piano.sfz", "new engine", "activate", "render", "close client", "close engine"}
	if got := h.journal.list(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	if h.openName != standalone.DefaultClientName {
		t.Errorf("client name = %q, want %q", h.openName, standalone.DefaultClientName)
	}
}

func TestRunActivationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.transport.activateErr = errRefused

	err := standalone.Run(context.Background(), h.config(strings.NewReader("\n")), "piano.sfz")
	if !errors.Is(err, standalone.ErrActivate) {
		t.Fatalf("err = %v, want ErrActivate", err)
	}

	if h.stdout.Len() != 0 {
		t.Errorf("prompt printed after activation failure: %q", h.stdout.String())
	}

	want := []string{"open", "load piano.sfz", "new engine", "activate", "close client", "close engine"}
	if got := h.journal.list(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRunQuitTriggers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trigger func(h *harness, cancel context.CancelFunc)
		stdin   func() io.Reader
	}{
		{
			name:    "end of input",
			trigger: func(*harness, context.CancelFunc) {},
			stdin:   func() io.Reader { return strings.NewReader("") },
		},
		{
			name:    "context canceled",
			trigger: func(_ *harness, cancel context.CancelFunc) { cancel() },
			stdin:   blockingReader,
		},
		{
			name:    "server shutdown",
			trigger: func(h *harness, _ context.CancelFunc) { close(h.transport.done) },
			stdin:   blockingReader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			tt.trigger(h, cancel)

			if err := standalone.Run(ctx, h.config(tt.stdin()), "piano.sfz"); err != nil {
				t.Fatalf("Run: %v", err)
			}

			calls := h.journal.list()
			if !slices.Equal(calls[len(calls)-2:], []string{"close client", "close engine"}) {
				t.Errorf("calls = %v, want teardown at the end", calls)
			}
		})
	}
}

// blockingReader never returns from Read.
func blockingReader() io.Reader {
	reader, _ := io.Pipe()

	return reader
}

func TestEngineSettings(t *testing.T) {
	t.Parallel()

	settings := standalone.EngineSettings(44100, 0)

	if settings.SampleRate != 44100 || settings.Voices() != liquidsfz.DefaultPolyphony {
		t.Errorf("unexpected settings %+v", settings)
	}

	if math.Abs(settings.Gain-0.2511886) > 1e-6 {
		t.Errorf("Gain = %v, want about 0.251", settings.Gain)
	}
}
