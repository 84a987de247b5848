package music

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"server/internal/domain"
)

const (
	synthSampleRate = 8000
	synthMaxSeconds = 2
)

// syntheticWAV produces a small deterministic PCM WAV derived from the
// prompt, so repeated runs yield identical artifacts. The clip is capped
// at a couple of seconds regardless of the requested duration.
func syntheticWAV(req domain.GenerationRequest) []byte {
	seconds := req.Duration
	if seconds > synthMaxSeconds {
		seconds = synthMaxSeconds
	}
	if seconds <= 0 {
		seconds = 1
	}
	samples := synthSampleRate * seconds

	h := fnv.New32a()
	_, _ = h.Write([]byte(req.Prompt))
	_, _ = h.Write([]byte(req.Genre))
	// Map the hash onto an audible frequency band.
	freq := 220.0 + float64(h.Sum32()%660)

	data := make([]byte, samples)
	for i := range data {
		v := math.Sin(2 * math.Pi * freq * float64(i) / synthSampleRate)
		data[i] = byte(128 + v*100)
	}
	return wrapWAV(data)
}

// wrapWAV frames raw 8-bit mono PCM in a RIFF/WAVE container.
func wrapWAV(pcm []byte) []byte {
	const headerSize = 44
	buf := make([]byte, headerSize+len(pcm))

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], synthSampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], synthSampleRate)
	binary.LittleEndian.PutUint16(buf[32:34], 1) // block align
	binary.LittleEndian.PutUint16(buf[34:36], 8) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))

	copy(buf[headerSize:], pcm)
	return buf
}
