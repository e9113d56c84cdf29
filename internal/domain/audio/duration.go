// Package audio probes recorded payloads for playback duration. Probing is
// best-effort: formats the server cannot parse report ErrNotProbeable and
// callers fall back to the session wall clock.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// ErrNotProbeable indicates the payload format carries no parseable
// duration information.
var ErrNotProbeable = errors.New("audio duration not probeable")

// mp3 decoder output is 16-bit stereo, 4 bytes per sample frame.
const mp3BytesPerFrame = 4

// ProbeDuration inspects the payload and returns its playback duration.
func ProbeDuration(data []byte, format string) (time.Duration, error) {
	switch format {
	case "mp3":
		return mp3Duration(data)
	case "wav":
		return wavDuration(data)
	default:
		return 0, ErrNotProbeable
	}
}

func mp3Duration(data []byte) (time.Duration, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, ErrNotProbeable
	}
	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		return 0, ErrNotProbeable
	}
	frames := decoder.Length() / mp3BytesPerFrame
	if frames <= 0 {
		return 0, ErrNotProbeable
	}
	seconds := float64(frames) / float64(sampleRate)
	return time.Duration(seconds * float64(time.Second)), nil
}

// wavDuration walks the RIFF chunks for fmt (byte rate) and data (payload
// size); duration is dataSize / byteRate.
func wavDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, ErrNotProbeable
	}

	var byteRate uint32
	var dataSize uint32

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+12 > len(data) {
				return 0, ErrNotProbeable
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			dataSize = chunkSize
		}

		// Chunks are word-aligned.
		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0, ErrNotProbeable
	}
	seconds := float64(dataSize) / float64(byteRate)
	return time.Duration(seconds * float64(time.Second)), nil
}

// WholeSeconds converts a probed duration to the whole-second figure stored
// on notes, rounding down and never below zero.
func WholeSeconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
