package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
)

const DefaultFramesPerBuffer = 1024

// Player plays synthesized payloads through a blocking PortAudio output
// stream. The stream is reopened whenever a clip arrives with a different
// sample rate or channel count.
type Player struct {
	framesPerBuffer int

	stream       *portaudio.Stream
	encodingInfo audio.EncodingInfo
	out          []int16

	mu sync.Mutex
}

func NewPlayer(framesPerBuffer int) (*Player, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Player{framesPerBuffer: framesPerBuffer}, nil
}

// Play decodes payload and writes it to the output stream buffer by buffer,
// stopping early when ctx is done.
func (p *Player) Play(ctx context.Context, payload []byte) error {
	clip, err := audio.Decode(payload)
	if err != nil {
		return fmt.Errorf("failed to decode audio: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.open(clip.EncodingInfo); err != nil {
		return err
	}

	samples := clip.Samples()
	for offset := 0; offset < len(samples); offset += len(p.out) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(p.out, samples[offset:])
		clear(p.out[n:])
		if err := p.stream.Write(); err != nil {
			logger.Warn("failed to write to PortAudio stream", "error", err)
			return fmt.Errorf("failed to write audio: %w", err)
		}
	}
	return nil
}

func (p *Player) open(encodingInfo audio.EncodingInfo) error {
	if p.stream != nil && p.encodingInfo == encodingInfo {
		return nil
	}
	p.closeStream()

	p.out = make([]int16, p.framesPerBuffer*encodingInfo.Channels)
	stream, err := portaudio.OpenDefaultStream(0, encodingInfo.Channels, float64(encodingInfo.SampleRate), p.framesPerBuffer, p.out)
	if err != nil {
		return fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	p.stream = stream
	p.encodingInfo = encodingInfo
	return nil
}

func (p *Player) closeStream() {
	if p.stream == nil {
		return
	}
	_ = p.stream.Stop()
	_ = p.stream.Close()
	p.stream = nil
	p.encodingInfo = audio.EncodingInfo{}
}

func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeStream()
	_ = portaudio.Terminate()
}
