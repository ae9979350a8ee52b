package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Ddhuet/Vocalis/pkg/audio"
)

// buildWAV assembles a canonical 44-byte-header WAV buffer around pcm.
func buildWAV(pcm []byte, sampleRate, channels int) []byte {
	return audio.EncodeWAV(pcm, sampleRate, channels)
}

func TestParseWAVHeader(t *testing.T) {
	pcm := make([]byte, 32)
	buf := buildWAV(pcm, 8000, 1)

	info, err := audio.ParseWAVHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d, want 1", info.Channels)
	}
	if info.DataOffset != 44 {
		t.Errorf("DataOffset = %d, want 44", info.DataOffset)
	}
}

func TestParseWAVHeader_Stereo(t *testing.T) {
	buf := buildWAV(make([]byte, 64), 48000, 2)

	info, err := audio.ParseWAVHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", info.SampleRate)
	}
	if info.Channels != 2 {
		t.Errorf("Channels = %d, want 2", info.Channels)
	}
}

func TestParseWAVHeader_TooShort(t *testing.T) {
	_, err := audio.ParseWAVHeader(make([]byte, 43))
	if !errors.Is(err, audio.ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestParseWAVHeader_BadMarkers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte)
	}{
		{"corrupt RIFF", func(b []byte) { copy(b[0:4], "XXXX") }},
		{"corrupt WAVE", func(b []byte) { copy(b[8:12], "XXXX") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := buildWAV(make([]byte, 16), 16000, 1)
			tt.mutate(buf)
			_, err := audio.ParseWAVHeader(buf)
			if !errors.Is(err, audio.ErrInvalidHeader) {
				t.Fatalf("expected ErrInvalidHeader, got %v", err)
			}
		})
	}
}

func TestParseWAVHeader_SkipsIntermediateChunks(t *testing.T) {
	// Build a WAV with a LIST chunk wedged between "fmt " and "data".
	pcm := make([]byte, 20)
	base := buildWAV(pcm, 16000, 1)

	listContent := []byte("INFOsoftware")
	buf := make([]byte, 0, len(base)+8+len(listContent))
	buf = append(buf, base[:36]...) // RIFF descriptor + fmt chunk
	buf = append(buf, []byte("LIST")...)
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(listContent)))
	buf = append(buf, size[:]...)
	buf = append(buf, listContent...)
	buf = append(buf, base[36:]...) // data tag + length + payload

	info, err := audio.ParseWAVHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOffset := 36 + 8 + len(listContent) + 8
	if info.DataOffset != wantOffset {
		t.Errorf("DataOffset = %d, want %d", info.DataOffset, wantOffset)
	}
	if got := len(buf) - info.DataOffset; got != len(pcm) {
		t.Errorf("payload length = %d, want %d", got, len(pcm))
	}
}

func TestParseWAVHeader_NoDataChunkFallsBack(t *testing.T) {
	// Valid RIFF/WAVE markers but the sub-chunk walk never finds "data":
	// the parser must fall back to the canonical 44-byte offset.
	buf := buildWAV(make([]byte, 32), 22050, 1)
	copy(buf[36:40], "junk")

	info, err := audio.ParseWAVHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.DataOffset != 44 {
		t.Errorf("DataOffset = %d, want fallback 44", info.DataOffset)
	}
}

func TestEncodeWAV_RoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	buf := audio.EncodeWAV(pcm, 16000, 1)

	if len(buf) != 44+len(pcm) {
		t.Fatalf("encoded length = %d, want %d", len(buf), 44+len(pcm))
	}
	info, err := audio.ParseWAVHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.DataOffset != 44 {
		t.Errorf("unexpected header info: %+v", info)
	}
}
