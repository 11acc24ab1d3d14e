// Package wav wraps raw PCM samples in a canonical RIFF/WAVE container and
// unwraps them again.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// HeaderSize is the size of the canonical header written by Encode.
const HeaderSize = 44

// Format describes the PCM sample layout.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is what every speech provider returns: 24kHz mono 16-bit.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

// BlockAlign is the number of bytes per sample frame.
func (f Format) BlockAlign() int { return f.Channels * f.BitsPerSample / 8 }

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() int { return f.SampleRate * f.BlockAlign() }

// Duration is the playing time of n bytes of PCM.
func (f Format) Duration(n int) time.Duration {
	if f.ByteRate() == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(f.ByteRate())
}

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// Encode prepends a 44-byte header to pcm. The data chunk size is len(pcm)
// and the RIFF size is len(pcm)+36.
func Encode(pcm []byte, f Format) []byte {
	out := make([]byte, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], 1) // PCM
	le.PutUint16(out[22:24], uint16(f.Channels))
	le.PutUint32(out[24:28], uint32(f.SampleRate))
	le.PutUint32(out[28:32], uint32(f.ByteRate()))
	le.PutUint16(out[32:34], uint16(f.BlockAlign()))
	le.PutUint16(out[34:36], uint16(f.BitsPerSample))
	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)
	return out
}

// Decode walks the chunks of a RIFF/WAVE stream and returns the fmt chunk's
// format and the samples of the data chunk. Chunks other than fmt and data are
// skipped, so headers longer than 44 bytes are accepted.
func Decode(b []byte) (Format, []byte, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}
	le := binary.LittleEndian

	var (
		f       Format
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(le.Uint32(b[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(b) {
				return Format{}, nil, fmt.Errorf("wav: short fmt chunk (%d bytes)", size)
			}
			if tag := le.Uint16(b[body : body+2]); tag != 1 {
				return Format{}, nil, fmt.Errorf("wav: unsupported format tag %d", tag)
			}
			f = Format{
				Channels:      int(le.Uint16(b[body+2 : body+4])),
				SampleRate:    int(le.Uint32(b[body+4 : body+8])),
				BitsPerSample: int(le.Uint16(b[body+14 : body+16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, errors.New("wav: data chunk before fmt chunk")
			}
			end := body + size
			// Streamed encoders sometimes leave the size unset or too large.
			if end > len(b) || size == 0 {
				end = len(b)
			}
			return f, b[body:end], nil
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}
	return Format{}, nil, errors.New("wav: no data chunk")
}
