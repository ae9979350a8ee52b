package audio

import (
	"encoding/binary"
	"fmt"
)

// minHeaderSize is the size of a canonical PCM WAV header: RIFF descriptor,
// "fmt " sub-chunk with 16 bytes of PCM fields, and the "data" tag + length.
const minHeaderSize = 44

// ErrInvalidHeader is wrapped by every [ParseWAVHeader] failure. Callers that
// want to degrade gracefully on malformed containers should test for it with
// errors.Is.
var ErrInvalidHeader = fmt.Errorf("audio: invalid WAV header")

// HeaderInfo holds the audio parameters extracted from a WAV container.
// It is only valid for the buffer it was parsed from.
type HeaderInfo struct {
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int

	// Channels is the interleaved channel count.
	Channels int

	// DataOffset is the byte offset of the first PCM payload byte.
	DataOffset int
}

// ParseWAVHeader validates the RIFF/WAVE container structure of buf and
// returns the sample rate, channel count, and payload offset.
//
// The sample rate and channel count are read from their fixed little-endian
// offsets. The payload is located by walking sub-chunks after the initial
// "fmt " chunk (each sub-chunk is a 4-byte tag followed by a 4-byte
// little-endian length) until a "data" chunk is found; the returned offset
// points at the first byte after that chunk's tag and length. When the walk
// cannot locate a "fmt "/"data" chunk the canonical 44-byte offset is used.
func ParseWAVHeader(buf []byte) (HeaderInfo, error) {
	if len(buf) < minHeaderSize {
		return HeaderInfo{}, fmt.Errorf("%w: %d bytes is too short", ErrInvalidHeader, len(buf))
	}
	if string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" {
		return HeaderInfo{}, fmt.Errorf("%w: missing RIFF/WAVE markers", ErrInvalidHeader)
	}

	info := HeaderInfo{
		SampleRate: int(binary.LittleEndian.Uint32(buf[24:28])),
		Channels:   int(binary.LittleEndian.Uint16(buf[22:24])),
		DataOffset: minHeaderSize,
	}

	if string(buf[12:16]) == "fmt " {
		fmtSize := int(binary.LittleEndian.Uint32(buf[16:20]))
		// First sub-chunk after "fmt ": tag at 12, length at 16, content of
		// fmtSize bytes starting at 20.
		offset := 20 + fmtSize
		for offset >= 0 && offset+8 <= len(buf) {
			tag := string(buf[offset : offset+4])
			size := int(binary.LittleEndian.Uint32(buf[offset+4 : offset+8]))
			if tag == "data" {
				info.DataOffset = offset + 8
				return info, nil
			}
			offset += 8 + size
		}
		// No "data" chunk found; keep the canonical offset.
	}

	return info, nil
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container with a canonical 44-byte header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, minHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
