package wav

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterProducesCorrectHeaderAndByteCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := NewWriter(path, 48000, 2, 16)
	require.NoError(t, err)

	frame := make([]byte, 2*2) // one stereo frame, 16-bit
	for i := 0; i < 100; i++ {
		n, err := w.Write(frame)
		require.NoError(t, err)
		require.Equal(t, len(frame), n)
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	wantDataSize := uint32(100 * len(frame))
	wantFileSize := 44 + wantDataSize // 44-byte header + data

	assert.Equal(t, int(wantFileSize), len(data))
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, wantDataSize+36, binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[22:24]))  // channels
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(data[24:28])) // sample rate
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36])) // bits per sample
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, wantDataSize, binary.LittleEndian.Uint32(data[40:44]))
}

func TestWriterRejectsUnsupportedBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	_, err := NewWriter(path, 48000, 2, 8)
	assert.Error(t, err)
}

func TestWriterAccepts24And32BitDepths(t *testing.T) {
	for _, bits := range []uint16{24, 32} {
		path := filepath.Join(t.TempDir(), "out.wav")
		w, err := NewWriter(path, 44100, 1, bits)
		require.NoError(t, err)

		payload := make([]byte, int(bits/8)*10)
		n, err := w.Write(payload)
		require.NoError(t, err)
		require.Equal(t, len(payload), n)
		require.NoError(t, w.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, int(44+len(payload)), len(data))
		assert.Equal(t, bits, binary.LittleEndian.Uint16(data[34:36]))
	}
}
