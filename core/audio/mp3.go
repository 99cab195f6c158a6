package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// mp3Channels is fixed by the decoder, which always produces stereo output.
const mp3Channels = 2

func decodeMP3(payload []byte) (Clip, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(payload))
	if err != nil {
		return Clip{}, fmt.Errorf("failed to open mp3 stream: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to decode mp3 stream: %w", err)
	}

	return Clip{
		EncodingInfo: EncodingInfo{
			SampleRate: decoder.SampleRate(),
			Channels:   mp3Channels,
			Format:     EncodingLinear16,
		},
		Data: pcm,
	}, nil
}
