package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voice/core/audio"
)

// Player plays synthesized payloads on the default output device.
type Player struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient

	// playMu keeps clips strictly sequential
	playMu sync.Mutex
}

func NewPlayer() (*Player, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &Player{audioContext: audioCtx}, nil
}

// Play decodes payload and blocks until it has been played or ctx is done.
// Decoded audio is never handed to the device once ctx is done.
func (p *Player) Play(ctx context.Context, payload []byte) error {
	ctx, span := tracer.Start(ctx, "play clip")
	defer span.End()

	clip, err := audio.Decode(payload)
	if err != nil {
		return fmt.Errorf("failed to decode audio: %w", err)
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.playbackClient.Init(p.audioContext, clip.EncodingInfo); err != nil {
		return err
	}

	done := make(chan struct{})
	if err := p.playbackClient.SendAudio(clip.Data); err != nil {
		return fmt.Errorf("failed to queue audio: %w", err)
	}
	p.playbackClient.Mark(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.playbackClient.ClearBuffer()
		return ctx.Err()
	}
}

func (p *Player) Close() {
	_ = p.playbackClient.Uninit()
	_ = p.audioContext.Uninit()
	p.audioContext.Free()
}
