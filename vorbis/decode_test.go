package vorbis_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mycophonic/primordium/fault"

	"github.com/mycophonic/liquidsfz/vorbis"
)

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"bogus ogg page", []byte("OggS\x00\x02not really a vorbis page")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := vorbis.Decode(bytes.NewReader(tt.input)); !errors.Is(err, fault.ErrReadFailure) {
				t.Errorf("err = %v, want fault.ErrReadFailure", err)
			}
		})
	}
}
