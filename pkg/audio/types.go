// Package audio provides the decoding stages that turn captured audio bytes
// into the canonical waveform the speech recognition model consumes: WAV
// container parsing, PCM-to-float normalization with mono downmix, and
// band-limited resampling to a fixed target rate.
//
// All functions are pure over their inputs and safe for concurrent use.
package audio

import "time"

// Frame is a decoded audio waveform. After normalization every sample lies in
// [-1.0, 1.0] and Channels is 1.
type Frame struct {
	// Samples is the waveform as 32-bit floats.
	Samples []float32

	// SampleRate is the rate of Samples in Hz. Zero when the rate is not yet
	// known (e.g., directly after PCM decoding, before the header rate is
	// attached).
	SampleRate int

	// Channels is the channel count. Always 1 after downmix.
	Channels int
}

// Duration returns the playback length of the frame, or 0 when the sample
// rate is unknown.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}
