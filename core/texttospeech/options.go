package texttospeech

import "context"

const (
	DefaultLanguage  = "ko"
	DefaultFormat    = "wav"
	DefaultSpeed     = 1.1
	DefaultSteps     = 5
	DefaultChunkSize = 300

	// MaxSteps caps the number of denoising steps a single request may ask
	// for.
	MaxSteps = 50
)

// SynthesisOptions is sent with every synthesis request.
type SynthesisOptions struct {
	Language   string
	ChunkSize  int
	VoiceStyle string
	Speed      float64
	Steps      int
	// Format is the audio container of the returned payload, "wav" or "mp3"
	Format string
}

func DefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{
		Language:  DefaultLanguage,
		ChunkSize: DefaultChunkSize,
		Speed:     DefaultSpeed,
		Steps:     DefaultSteps,
		Format:    DefaultFormat,
	}
}

type SynthesisOption func(*SynthesisOptions)

func WithLanguage(language string) SynthesisOption {
	return func(o *SynthesisOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

// WithChunkSize sets the size hint the synthesis engine uses to split long
// text internally.
func WithChunkSize(chunkSize int) SynthesisOption {
	return func(o *SynthesisOptions) {
		if chunkSize > 0 {
			o.ChunkSize = chunkSize
		}
	}
}

// WithVoiceStyle selects the voice. An empty style leaves the choice to the
// server.
func WithVoiceStyle(voiceStyle string) SynthesisOption {
	return func(o *SynthesisOptions) { o.VoiceStyle = voiceStyle }
}

func WithSpeed(speed float64) SynthesisOption {
	return func(o *SynthesisOptions) {
		if speed > 0 {
			o.Speed = speed
		}
	}
}

// WithSteps sets the number of synthesis steps, clamped to [1, MaxSteps].
func WithSteps(steps int) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Steps = min(max(steps, 1), MaxSteps)
	}
}

func WithFormat(format string) SynthesisOption {
	return func(o *SynthesisOptions) {
		if format != "" {
			o.Format = format
		}
	}
}

// Synthesizer turns one chunk of cleaned text into an encoded audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
