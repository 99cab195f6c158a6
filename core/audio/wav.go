package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

var errMissingChunk = errors.New("missing wav chunk")

func decodeWAV(payload []byte) (Clip, error) {
	decoder := wav.NewDecoder(bytes.NewReader(payload))
	decoder.ReadInfo()
	if decoder.NumChans == 0 {
		if err := decoder.Err(); err != nil {
			return Clip{}, fmt.Errorf("%w: fmt: %w", errMissingChunk, err)
		}
		return Clip{}, fmt.Errorf("%w: fmt", errMissingChunk)
	}
	if decoder.SampleRate == 0 {
		return Clip{}, fmt.Errorf("invalid wav format: %d channels at %d Hz", decoder.NumChans, decoder.SampleRate)
	}

	audioFormat := decoder.WavAudioFormat
	// Extensible headers carry the real tag in a sub-format the decoder
	// skips; 32 bit extensible output from synthesis servers is float.
	if audioFormat == wavFormatExtensible {
		audioFormat = wavFormatPCM
		if decoder.BitDepth == 32 {
			audioFormat = wavFormatFloat
		}
	}

	info := EncodingInfo{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		Format:     EncodingLinear16,
	}

	var convert func(sample int) int16
	switch {
	case audioFormat == wavFormatPCM && decoder.BitDepth == 16:
		convert = func(sample int) int16 { return int16(sample) }
	case audioFormat == wavFormatFloat && decoder.BitDepth == 32:
		// The decoder reads 32 bit samples as integers; the bits are the float.
		convert = func(sample int) int16 {
			return floatToInt16(math.Float32frombits(uint32(int32(sample))))
		}
	default:
		return Clip{}, fmt.Errorf("%w: wav format %d with %d bits per sample",
			ErrUnsupportedPayload, decoder.WavAudioFormat, decoder.BitDepth)
	}

	if err := decoder.FwdToPCM(); err != nil || decoder.PCMChunk == nil {
		return Clip{}, fmt.Errorf("%w: data", errMissingChunk)
	}
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("failed to read wav samples: %w", err)
	}
	// The decoder reads to the end of the payload; chunks after data are not
	// samples. Streamed files leave the data size open.
	if samples := decoder.PCMSize / int(decoder.BitDepth/8); samples > 0 && samples < len(buffer.Data) {
		buffer.Data = buffer.Data[:samples]
	}

	pcm := make([]byte, 0, len(buffer.Data)*2)
	for _, sample := range buffer.Data {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(convert(sample)))
	}
	return Clip{EncodingInfo: info, Data: pcm}, nil
}

func floatToInt16(sample float32) int16 {
	switch {
	case sample >= 1:
		return math.MaxInt16
	case sample <= -1:
		return math.MinInt16 + 1
	}
	return int16(sample * math.MaxInt16)
}
