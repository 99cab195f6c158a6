package audio

import (
	"bytes"
	"errors"
	"time"
)

var ErrUnsupportedPayload = errors.New("unsupported audio payload")

// Clip is a decoded audio payload ready to be sent to an output device. Data
// is always interleaved little-endian 16-bit PCM.
type Clip struct {
	EncodingInfo
	Data []byte
}

func (c Clip) Frames() int {
	frameSize := c.FrameSize()
	if frameSize <= 0 {
		return 0
	}
	return len(c.Data) / frameSize
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Samples returns the clip as 16-bit samples.
func (c Clip) Samples() []int16 {
	samples := make([]int16, len(c.Data)/2)
	for i := range samples {
		samples[i] = int16(uint16(c.Data[2*i]) | uint16(c.Data[2*i+1])<<8)
	}
	return samples
}

// Decode detects the container of a synthesized payload and decodes it. WAV
// (16-bit PCM or 32-bit float) and MP3 are supported.
func Decode(payload []byte) (Clip, error) {
	switch {
	case isWAV(payload):
		return decodeWAV(payload)
	case isMP3(payload):
		return decodeMP3(payload)
	}
	return Clip{}, ErrUnsupportedPayload
}

func isWAV(payload []byte) bool {
	return len(payload) >= 12 &&
		bytes.Equal(payload[0:4], []byte("RIFF")) &&
		bytes.Equal(payload[8:12], []byte("WAVE"))
}

func isMP3(payload []byte) bool {
	if len(payload) >= 3 && bytes.Equal(payload[0:3], []byte("ID3")) {
		return true
	}
	// MPEG frame sync
	return len(payload) >= 2 && payload[0] == 0xFF && payload[1]&0xE0 == 0xE0
}
