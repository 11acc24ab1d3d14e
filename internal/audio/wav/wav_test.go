package wav

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeader(t *testing.T) {
	pcm := make([]byte, 480)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	out := Encode(pcm, DefaultFormat)
	require.Len(t, out, HeaderSize+len(pcm))

	le := binary.LittleEndian
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+480), le.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint32(16), le.Uint32(out[16:20]))
	assert.Equal(t, uint16(1), le.Uint16(out[20:22]))
	assert.Equal(t, uint16(1), le.Uint16(out[22:24]))
	assert.Equal(t, uint32(24000), le.Uint32(out[24:28]))
	assert.Equal(t, uint32(48000), le.Uint32(out[28:32]))
	assert.Equal(t, uint16(2), le.Uint16(out[32:34]))
	assert.Equal(t, uint16(16), le.Uint16(out[34:36]))
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(480), le.Uint32(out[40:44]))
	assert.Equal(t, pcm, out[HeaderSize:])
}

func TestDecodeRoundTrip(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	f, got, err := Decode(Encode(pcm, DefaultFormat))
	require.NoError(t, err)
	assert.Equal(t, DefaultFormat, f)
	assert.Equal(t, pcm, got)
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	enc := Encode([]byte{9, 9}, DefaultFormat)

	// Insert a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 3, 0, 0, 0, 'a', 'b', 'c', 0)
	b := append([]byte{}, enc[:36]...)
	b = append(b, list...)
	b = append(b, enc[36:]...)

	_, got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, got)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode([]byte("ID3 not a wav file"))
	assert.ErrorIs(t, err, ErrNotWAV)

	_, _, err = Decode([]byte("RIFF\x04\x00\x00\x00WAVE"))
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, time.Second, DefaultFormat.Duration(48000))
	assert.Equal(t, 1500*time.Millisecond, DefaultFormat.Duration(72000))
	assert.Zero(t, Format{}.Duration(100))
}
