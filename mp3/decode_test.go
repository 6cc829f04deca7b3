package mp3_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mycophonic/primordium/fault"

	"github.com/mycophonic/liquidsfz/mp3"
)

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"id3 tag without frames", []byte("ID3\x03\x00\x00\x00\x00\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := mp3.Decode(bytes.NewReader(tt.input)); !errors.Is(err, fault.ErrReadFailure) {
				t.Errorf("err = %v, want fault.ErrReadFailure", err)
			}
		})
	}
}
