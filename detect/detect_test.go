package detect_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/mycophonic/liquidsfz/detect"
)

func TestIdentify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want detect.Format
	}{
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), detect.WAV},
		{"soundfont", []byte("RIFF\x00\x10\x00\x00sfbkLIST"), detect.SoundFont},
		{"other riff", []byte("RIFF\x00\x10\x00\x00AVI LIST"), detect.Unknown},
		{"flac", []byte("fLaC\x00\x00\x00\x22\x10\x00\x10\x00"), detect.FLAC},
		{"ogg", []byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00"), detect.Vorbis},
		{"id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00"), detect.MP3},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90, 0x64, 0, 0, 0, 0, 0, 0, 0, 0}, detect.MP3},
		{"short mpeg sync", []byte{0xFF, 0xFB}, detect.MP3},
		{"text", []byte("<region> sample=a.wav"), detect.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader := bytes.NewReader(tt.data)

			got, err := detect.Identify(reader)
			if err != nil {
				t.Fatalf("Identify: %v", err)
			}

			if got != tt.want {
				t.Errorf("Identify() = %v, want %v", got, tt.want)
			}

			if pos, _ := reader.Seek(0, io.SeekCurrent); pos != 0 {
				t.Errorf("reader left at offset %d, want 0", pos)
			}
		})
	}
}

func TestIdentifyEmpty(t *testing.T) {
	t.Parallel()

	if _, err := detect.Identify(bytes.NewReader(nil)); err == nil {
		t.Error("Identify on empty input should fail")
	}
}

func TestFormatString(t *testing.T) {
	t.Parallel()

	if detect.SoundFont.String() != "SoundFont" {
		t.Errorf("String() = %q", detect.SoundFont.String())
	}

	if detect.Format(200).String() != "unknown" {
		t.Errorf("out of range String() = %q", detect.Format(200).String())
	}
}
