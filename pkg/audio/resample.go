package audio

import (
	"fmt"
	"math"

	"github.com/madelynnblue/go-dsp/fft"
)

// ErrInvalidRate is returned by [Resample] for non-positive sample rates.
var ErrInvalidRate = fmt.Errorf("audio: invalid sample rate")

// Resample converts samples from srcRate to dstRate using frequency-domain
// band-limited resampling: the signal is transformed with an FFT, the spectrum
// is truncated or zero-padded to the output length, and the inverse transform
// is scaled by the length ratio. This avoids the aliasing a naive linear
// interpolation would introduce into the recognition model's input.
//
// The output has round(len(samples) × dstRate ÷ srcRate) samples. When the
// rates are equal the input slice is returned unchanged; this is the common
// case and allocates nothing.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d Hz -> %d Hz", ErrInvalidRate, srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}

	nx := len(samples)
	ny := int(math.Round(float64(nx) * float64(dstRate) / float64(srcRate)))
	if ny == 0 {
		return []float32{}, nil
	}

	in := make([]complex128, nx)
	for i, s := range samples {
		in[i] = complex(float64(s), 0)
	}
	spectrum := fft.FFT(in)

	out := make([]complex128, ny)
	n := min(nx, ny)
	nyq := n/2 + 1

	// Positive frequencies (including DC), then the mirrored negative band.
	copy(out[:nyq], spectrum[:nyq])
	if n > 2 {
		copy(out[ny-(n-nyq):], spectrum[nx-(n-nyq):])
	}

	// For an even transform size the Nyquist bin is shared between the
	// positive and negative bands and needs explicit handling: fold the
	// mirrored component in when shrinking, split it when growing.
	if n%2 == 0 {
		switch {
		case ny < nx:
			out[n/2] += spectrum[nx-n/2]
		case ny > nx:
			out[n/2] /= 2
			out[ny-n/2] = out[n/2]
		}
	}

	resampled := fft.IFFT(out)
	scale := float64(ny) / float64(nx)
	result := make([]float32, ny)
	for i := range result {
		result[i] = float32(real(resampled[i]) * scale)
	}
	return result, nil
}
