package flac_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mycophonic/primordium/fault"

	"github.com/mycophonic/liquidsfz/flac"
)

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"truncated stream info", []byte("fLaC\x00\x00\x00\x22truncated")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := flac.Decode(bytes.NewReader(tt.input)); !errors.Is(err, fault.ErrReadFailure) {
				t.Errorf("err = %v, want fault.ErrReadFailure", err)
			}
		})
	}
}
