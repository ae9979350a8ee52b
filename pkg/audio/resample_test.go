package audio_test

import (
	"errors"
	"math"
	"testing"

	"github.com/Ddhuet/Vocalis/pkg/audio"
)

func TestResample_SameRateIsIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	got, err := audio.Resample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if &got[0] != &in[0] {
		t.Error("expected the input slice to be returned unchanged")
	}
}

func TestResample_InvalidRates(t *testing.T) {
	for _, rates := range [][2]int{{0, 16000}, {16000, 0}, {-8000, 16000}} {
		_, err := audio.Resample([]float32{0}, rates[0], rates[1])
		if !errors.Is(err, audio.ErrInvalidRate) {
			t.Errorf("rates %v: expected ErrInvalidRate, got %v", rates, err)
		}
	}
}

func TestResample_OutputLength(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		src, dst int
		want     int
	}{
		{"upsample 8k to 16k doubles", 8000, 8000, 16000, 16000},
		{"downsample 48k to 16k thirds", 4800, 48000, 16000, 1600},
		{"upsample 44.1k to 48k", 4410, 44100, 48000, 4800},
		{"odd length", 101, 8000, 16000, 202},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, tt.n)
			got, err := audio.Resample(in, tt.src, tt.dst)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("output length = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestResample_RoundTripLength(t *testing.T) {
	in := make([]float32, 1000)
	up, err := audio.Resample(in, 8000, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := audio.Resample(up, 44100, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := len(back) - len(in); diff < -1 || diff > 1 {
		t.Errorf("round-trip length = %d, want %d ±1", len(back), len(in))
	}
}

func TestResample_PreservesTone(t *testing.T) {
	// A band-limited resampler must reproduce a low-frequency sine almost
	// exactly when doubling the rate. Compare against an analytically
	// generated reference, ignoring the edges where the periodic-extension
	// assumption of the FFT method causes small deviations.
	const (
		n    = 800
		freq = 200.0
		src  = 8000
		dst  = 16000
	)
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / src))
	}

	got, err := audio.Resample(in, src, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2*n {
		t.Fatalf("output length = %d, want %d", len(got), 2*n)
	}

	for i := n / 4; i < len(got)-n/4; i++ {
		want := math.Sin(2 * math.Pi * freq * float64(i) / dst)
		if math.Abs(float64(got[i])-want) > 0.02 {
			t.Fatalf("sample %d: got %f, want %f", i, got[i], want)
		}
	}
}

func TestResample_PreservesDC(t *testing.T) {
	in := make([]float32, 500)
	for i := range in {
		in[i] = 0.5
	}
	got, err := audio.Resample(in, 16000, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range got {
		if math.Abs(float64(s)-0.5) > 1e-3 {
			t.Fatalf("sample %d: got %f, want 0.5", i, s)
		}
	}
}

func TestResample_EmptyInput(t *testing.T) {
	got, err := audio.Resample(nil, 8000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty output, got %d samples", len(got))
	}
}
