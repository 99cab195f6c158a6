package orchestration

import (
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// Display renders assistant messages. UpdateMessage is called with the full
// text of the message every time it changes.
type Display interface {
	UpdateMessage(id, text string)
}

func WithChatClient(client llms.ChatClient) OrchestratorOption {
	return func(o *Orchestrator) {
		if isNilClient(client) {
			client = nil
		}
		o.chat = client
	}
}

func WithSynthesizer(synthesizer texttospeech.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) {
		if isNilClient(synthesizer) {
			synthesizer = nil
		}
		o.synthesizer = synthesizer
	}
}

func WithAudioPlayer(player AudioPlayer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.audioOutput.Set(player)
	}
}

func WithDisplay(display Display) OrchestratorOption {
	return func(o *Orchestrator) {
		if isNilClient(display) {
			display = nil
		}
		o.display = display
	}
}

// WithCleaner replaces the cleaner used to turn response text into speakable
// text, e.g. to use one with a pronunciation dictionary.
func WithCleaner(cleaner *speechtext.Cleaner) OrchestratorOption {
	return func(o *Orchestrator) {
		if cleaner != nil {
			o.cleaner = cleaner
		}
	}
}

// WithConfig replaces the whole configuration. A nil config is ignored.
// Options applied after it still change individual fields.
func WithConfig(config *Config) OrchestratorOption {
	return func(o *Orchestrator) {
		if config == nil {
			return
		}
		o.config = *config
	}
}

func WithModel(model string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.Model = model
	}
}

func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.SystemPrompt = prompt
	}
}

// WithStatefulChat lets the chat endpoint keep the conversation. When
// storeResponses is false the endpoint is asked not to keep responses.
func WithStatefulChat(storeResponses bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.Stateful = true
		o.config.StoreResponses = storeResponses
	}
}

// WithSpeech enables or disables speaking responses.
func WithSpeech(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.SpeechEnabled = enabled
	}
}

func WithPlaybackStatusCallback(callback func(events.PlaybackStatus)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onPlaybackStatus = callback
	}
}

func WithHistoryLimit(turns int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.HistoryLimit = turns
	}
}

// WithSampling sets the sampling temperature and the response token limit.
// A non-positive maxTokens leaves the limit to the endpoint.
func WithSampling(temperature float64, maxTokens int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.Temperature = &temperature
		o.config.MaxTokens = maxTokens
	}
}

func WithReasoningShown(show bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.config.ShowReasoning = show
	}
}
