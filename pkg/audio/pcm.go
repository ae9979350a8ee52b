package audio

import "encoding/binary"

// DecodePCM16 converts 16-bit signed little-endian PCM to float32 samples in
// [-1.0, 1.0]. Multi-channel input is downmixed to mono by averaging the
// channels of each frame. A trailing partial frame is ignored.
func DecodePCM16(raw []byte, channels int) []float32 {
	if channels <= 1 {
		n := len(raw) / 2
		samples := make([]float32, n)
		for i := range n {
			s := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			samples[i] = float32(s) / 32768.0
		}
		return samples
	}

	frames := len(raw) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			s := int16(binary.LittleEndian.Uint16(raw[idx : idx+2]))
			sum += float32(s) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// DecodePCM8 interprets raw as unsigned 8-bit samples scaled by 1/255. This is
// the degraded fallback used when WAV header parsing fails and the payload
// layout is unknown.
func DecodePCM8(raw []byte) []float32 {
	samples := make([]float32, len(raw))
	for i, b := range raw {
		samples[i] = float32(b) / 255.0
	}
	return samples
}

// NormalizePeak scales samples so the largest magnitude is 1.0, but only when
// the input exceeds the [-1, 1] range; in-range input is returned unchanged
// (same backing array). The scaled case allocates a new slice.
func NormalizePeak(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	if peak <= 1.0 {
		return samples
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}
