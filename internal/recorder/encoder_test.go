package recorder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWAVEncoderDefaultsToSixteenBit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	enc, err := newWAVEncoder(path, 48000, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 16, enc.bitDepth)
	require.NoError(t, enc.Close())
}

func TestNewWAVEncoderHonorsTwentyFourBit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	enc, err := newWAVEncoder(path, 48000, 2, 24)
	require.NoError(t, err)

	n, err := enc.writeFloat32([]float32{1, -1})
	require.NoError(t, err)
	assert.Equal(t, 6, n) // 2 samples * 3 bytes
	require.NoError(t, enc.Close())
}

func TestNewWAVEncoderRejectsUnsupportedBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	_, err := newWAVEncoder(path, 48000, 2, 8)
	assert.Error(t, err)
}

func TestNewEncoderRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xyz")
	_, err := newEncoder("xyz", path, 48000, 2, 16, 192)
	assert.Error(t, err)
}
