package device

import "math"

// Conversion rules from spec §4.2 step 3: each native format scales to f32
// in [-1, 1] with signed/unsigned-correct scaling. Getting the negative-side
// scaling right for I16 matters at exactly -32768, which a naive /32767
// would push slightly past -1.

func i16ToF32(s int16) float32 {
	if s < 0 {
		return float32(s) / 32768
	}
	return float32(s) / 32767
}

func u16ToF32(s uint16) float32 {
	return (float32(s) - 32768) / 32767.5
}

// appendF32 decodes raw native-format bytes into f32 samples, appending to
// out and returning the extended slice. frameCount is in frames (not bytes);
// the byte layout is interleaved per channel.
func appendF32(raw []byte, format SampleFormat, channels uint32, frameCount uint32, out []float32) []float32 {
	n := int(frameCount) * int(channels)
	switch format {
	case FormatI16:
		for i := 0; i < n && i*2+1 < len(raw); i++ {
			v := int16(uint16(raw[i*2]) | uint16(raw[i*2+1])<<8)
			out = append(out, i16ToF32(v))
		}
	case FormatU16:
		for i := 0; i < n && i*2+1 < len(raw); i++ {
			v := uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
			out = append(out, u16ToF32(v))
		}
	case FormatF32:
		for i := 0; i < n && i*4+3 < len(raw); i++ {
			bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
			out = append(out, math.Float32frombits(bits))
		}
	}
	return out
}
