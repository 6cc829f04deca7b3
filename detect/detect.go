// Package detect identifies sample and instrument files from their leading bytes.
package detect

import (
	"fmt"
	"io"
)

// Format represents a recognized file format.
type Format uint8

const (
	// Unknown indicates the file format was not recognized.
	Unknown Format = iota
	// WAV is RIFF/WAVE PCM audio.
	WAV
	// FLAC is the Free Lossless Audio Codec.
	FLAC
	// Vorbis is Ogg Vorbis.
	Vorbis
	// MP3 is MPEG-1/2 Audio Layer III.
	MP3
	// SoundFont is a RIFF/sfbk SoundFont 2 bank.
	SoundFont
)

// String returns the human-readable name of the format.
func (f Format) String() string {
	switch f {
	case Unknown:
		return "unknown"
	case WAV:
		return "WAV"
	case FLAC:
		return "FLAC"
	case Vorbis:
		return "Vorbis"
	case MP3:
		return "MP3"
	case SoundFont:
		return "SoundFont"
	}

	return "unknown"
}

// headerSize is the minimum number of bytes needed to identify any supported format.
// RIFF: "RIFF" at offset 0, form type ("WAVE" or "sfbk") at offset 8.
// FLAC: 4 bytes at offset 0 ("fLaC").
// MP3:  3 bytes at offset 0 ("ID3") or 2-byte MPEG sync word (0xFF 0xE0 mask).
// OGG:  4 bytes at offset 0 ("OggS").
const (
	headerSize = 12

	// mpegSyncByte is the first byte of an MPEG audio frame sync word.
	mpegSyncByte = 0xFF
	// mpegSyncMask masks the upper 3 bits of the second byte in the sync word.
	mpegSyncMask = 0xE0
)

// Identify reads the header from rs and returns the detected format.
// The reader position is reset to the start before returning.
// Inputs shorter than the header are reported as Unknown.
func Identify(reader io.ReadSeeker) (Format, error) {
	var header [headerSize]byte

	n, err := io.ReadFull(reader, header[:])
	if err != nil && n == 0 {
		return Unknown, fmt.Errorf("reading header: %w", err)
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return Unknown, fmt.Errorf("seeking to start: %w", err)
	}

	return Header(header[:n]), nil
}

// Header identifies a format from an in-memory header.
func Header(header []byte) Format {
	if len(header) >= 12 && string(header[:4]) == "RIFF" {
		switch string(header[8:12]) {
		case "WAVE":
			return WAV
		case "sfbk":
			return SoundFont
		}

		return Unknown
	}

	if len(header) >= 4 {
		// FLAC: first four bytes are "fLaC".
		if string(header[:4]) == "fLaC" {
			return FLAC
		}

		// Ogg container (Vorbis): first four bytes are "OggS".
		if string(header[:4]) == "OggS" {
			return Vorbis
		}
	}

	// MP3: ID3v2 tag header starts with "ID3".
	if len(header) >= 3 && string(header[:3]) == "ID3" {
		return MP3
	}

	// MP3: MPEG frame sync word (11 set bits).
	if len(header) >= 2 && header[0] == mpegSyncByte && header[1]&mpegSyncMask == mpegSyncMask {
		return MP3
	}

	return Unknown
}
