package recorder

import (
	"fmt"
	"os"

	"github.com/beats-galore/sending-beats-sub000/internal/wav"
)

// pcmEncoder accepts interleaved float32 PCM and writes it to disk in
// whatever encoded form a concrete encoder implements, tracking the bytes
// it has written so the session can enforce MaxBytes and report Summary.Bytes.
type pcmEncoder interface {
	writeFloat32(samples []float32) (int, error)
	Close() error
}

type wavEncoder struct {
	w        *wav.Writer
	bitDepth int
}

func newWAVEncoder(path string, sampleRate, channels uint32, bitDepth int) (*wavEncoder, error) {
	switch bitDepth {
	case 0:
		bitDepth = 16
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d (want 16, 24, or 32)", bitDepth)
	}
	w, err := wav.NewWriter(path, sampleRate, uint16(channels), uint16(bitDepth))
	if err != nil {
		return nil, err
	}
	return &wavEncoder{w: w, bitDepth: bitDepth}, nil
}

func (e *wavEncoder) writeFloat32(samples []float32) (int, error) {
	bytesPerSample := e.bitDepth / 8
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		off := i * bytesPerSample
		switch e.bitDepth {
		case 16:
			v := int16(clampSample(s) * 32767)
			buf[off] = byte(v)
			buf[off+1] = byte(v >> 8)
		case 24:
			v := int32(clampSample(s) * 8388607)
			buf[off] = byte(v)
			buf[off+1] = byte(v >> 8)
			buf[off+2] = byte(v >> 16)
		case 32:
			v := int32(clampSample(s) * 2147483647)
			buf[off] = byte(v)
			buf[off+1] = byte(v >> 8)
			buf[off+2] = byte(v >> 16)
			buf[off+3] = byte(v >> 24)
		}
	}
	n, err := e.w.Write(buf)
	return n, err
}

func (e *wavEncoder) Close() error {
	if err := e.w.Flush(); err != nil {
		return err
	}
	return e.w.Close()
}

// newEncoder opens the file at path and wraps it in the format-appropriate
// pcmEncoder. MP3 output owns its own file handle via the lame writer; WAV
// output owns its handle via wav.Writer, so neither needs an *os.File
// returned here.
func newEncoder(format, path string, sampleRate, channels uint32, bitDepth, mp3Bitrate int) (pcmEncoder, error) {
	switch format {
	case "mp3":
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		enc, err := newMP3Encoder(f, sampleRate, channels, mp3Bitrate)
		if err != nil {
			f.Close()
			return nil, err
		}
		return enc, nil
	case "wav", "":
		return newWAVEncoder(path, sampleRate, channels, bitDepth)
	default:
		return nil, fmt.Errorf("unsupported recording format %q", format)
	}
}
