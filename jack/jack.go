// Package jack is the JACK audio transport: one client owning a MIDI input and two audio outputs.
//
// Building it requires cgo and the JACK development headers.
package jack

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	gojack "github.com/xthexder/go-jack"

	"github.com/mycophonic/liquidsfz/synth"
)

// Port names registered on the client.
const (
	MIDIIn    = "midi_in"
	AudioOut1 = "audio_out_1"
	AudioOut2 = "audio_out_2"
)

var (
	// ErrOpen is returned when no client could be opened, usually because no server is running.
	ErrOpen = errors.New("cannot open jack client")
	// ErrPortRegister is returned when a port cannot be registered.
	ErrPortRegister = errors.New("cannot register jack port")
	// ErrActivate is returned when the server refuses to activate the client.
	ErrActivate = errors.New("cannot activate jack client")
)

// Client owns the JACK client and its ports; Close releases all of them.
type Client struct {
	client  *gojack.Client
	midiIn  *gojack.Port
	outputs [2]*gojack.Port

	processor synth.Processor

	done     chan struct{}
	doneOnce sync.Once
}

// Open connects to the server as name, registers the ports and installs a process callback
// that hands the output buffers to processor.
func Open(name string, processor synth.Processor) (*Client, error) {
	client, status := gojack.ClientOpen(name, gojack.NullOption)
	if client == nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, gojack.StrError(status))
	}

	c := &Client{
		client:    client,
		processor: processor,
		done:      make(chan struct{}),
	}

	c.midiIn = client.PortRegister(MIDIIn, gojack.DEFAULT_MIDI_TYPE, gojack.PortIsInput, 0)
	c.outputs[0] = client.PortRegister(AudioOut1, gojack.DEFAULT_AUDIO_TYPE, gojack.PortIsOutput, 0)
	c.outputs[1] = client.PortRegister(AudioOut2, gojack.DEFAULT_AUDIO_TYPE, gojack.PortIsOutput, 0)

	if c.midiIn == nil || c.outputs[0] == nil || c.outputs[1] == nil {
		client.Close()

		return nil, ErrPortRegister
	}

	if code := client.SetProcessCallback(c.process); code != 0 {
		client.Close()

		return nil, fmt.Errorf("setting process callback: %w", gojack.StrError(code))
	}

	client.OnShutdown(c.shutdown)

	return c, nil
}

// process runs on the JACK real-time thread.
func (c *Client) process(nframes uint32) int {
	return c.processor.Process([2][]float32{
		samples(c.outputs[0].GetBuffer(nframes)),
		samples(c.outputs[1].GetBuffer(nframes)),
	}, nframes)
}

// samples views a JACK buffer as float32 without copying.
func samples(buf []gojack.AudioSample) []float32 {
	if len(buf) == 0 {
		return nil
	}

	return unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), len(buf)) //nolint:gosec // AudioSample is a float32
}

// MIDIEvents appends the MIDI input events of the current cycle. It must be called from the process callback.
func (c *Client) MIDIEvents(nframes uint32, dst []synth.Event) []synth.Event {
	for _, ev := range c.midiIn.GetMidiEvents(nframes) {
		dst = append(dst, synth.Event{Frame: ev.Time, Data: ev.Buffer})
	}

	return dst
}

// SampleRate returns the server's sample rate.
func (c *Client) SampleRate() int {
	return int(c.client.GetSampleRate())
}

// Activate starts calling the process callback.
func (c *Client) Activate() error {
	if code := c.client.Activate(); code != 0 {
		return fmt.Errorf("%w: %w", ErrActivate, gojack.StrError(code))
	}

	return nil
}

// Done is closed when the server shuts the client down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Close deactivates the client and releases it with its ports.
func (c *Client) Close() error {
	if code := c.client.Close(); code != 0 {
		return fmt.Errorf("closing jack client: %w", gojack.StrError(code))
	}

	return nil
}
