package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrNoChatClient = errors.New("no chat client configured")

// Orchestrator answers prompts: it streams the response to the display and
// speaks it while it is still being generated. Only one response is active
// at a time; a new prompt cancels the previous one.
type Orchestrator struct {
	config Config

	chat        llms.ChatClient
	synthesizer texttospeech.Synthesizer
	audioOutput *audioOutput
	display     Display
	cleaner     *speechtext.Cleaner

	onPlaybackStatus func(events.PlaybackStatus)

	epoch            Epoch
	cancels          atomic.Uint64
	conversation     conversation
	responsePipeline atomic.Pointer[responsePipeline]
	turnMu           sync.Mutex
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		config:      DefaultConfig(),
		audioOutput: newAudioOutput(nil),
		cleaner:     speechtext.NewCleaner(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Respond answers prompt. Any response still in progress is cancelled first.
// The turn is added to the history even when it was cancelled or failed.
// Cancellation and loop stops are not errors; the returned turn tells them
// apart.
func (o *Orchestrator) Respond(ctx context.Context, prompt string, images ...string) (llms.Turn, error) {
	if o.chat == nil {
		return llms.Turn{}, ErrNoChatClient
	}

	o.Cancel()
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	cancels := o.cancels.Load()
	epoch := o.epoch.Advance()
	session := newResponseSession(epoch, o.config.ShowReasoning, o.config.LoopDetector)
	turn := llms.Turn{ID: uuid.NewString(), Prompt: prompt, Images: images}

	ctx, span := tracer.Start(ctx, "respond", trace.WithAttributes(
		attribute.String("turn.id", turn.ID),
		attribute.String("response.id", session.ID),
	))
	defer span.End()

	pipeline := newResponsePipeline(session, o.chat, o.display, o.speechFactory(session))
	pipeline.onContinuationLost = o.conversation.ClearResponseID
	o.installPipeline(pipeline, epoch, cancels)
	defer o.responsePipeline.CompareAndSwap(pipeline, nil)

	err := pipeline.Run(ctx, o.buildRequest(prompt, images))
	if err != nil {
		span.RecordError(err)
	}

	if o.config.Stateful {
		o.conversation.SetResponseID(session.ResponseID())
	}
	turn.Response = session.Snapshot()
	turn.IsFinalised = true
	o.conversation.Append(turn)

	return turn, err
}

// installPipeline makes pipeline the response in progress. A Cancel or
// StopSpeaking that ran after the turn took its epoch found no pipeline to
// stop, so it is replayed here.
func (o *Orchestrator) installPipeline(pipeline *responsePipeline, epoch, cancels uint64) {
	o.responsePipeline.Store(pipeline)

	switch {
	case o.cancels.Load() != cancels:
		pipeline.Cancel()
	case !o.epoch.IsCurrent(epoch):
		pipeline.StopSpeaking()
	}
}

// Cancel stops the response in progress, both generation and speech.
func (o *Orchestrator) Cancel() {
	o.cancels.Add(1)
	o.epoch.Advance()
	o.currentResponsePipeline().Cancel()
}

// StopSpeaking stops the audio of the response in progress. Generation and
// the display keep going.
func (o *Orchestrator) StopSpeaking() {
	o.epoch.Advance()
	o.currentResponsePipeline().StopSpeaking()
}

// Close cancels the response in progress and waits for it to wind down.
func (o *Orchestrator) Close() {
	o.Cancel()
	o.turnMu.Lock()
	defer o.turnMu.Unlock()
}

// History returns the folded turns, oldest first.
func (o *Orchestrator) History() []llms.Turn {
	return o.conversation.History()
}

// ResponseID returns the id the next stateful request continues from.
func (o *Orchestrator) ResponseID() string {
	return o.conversation.ResponseID()
}

// Reset starts a new conversation.
func (o *Orchestrator) Reset() {
	o.Cancel()
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.conversation.Reset()
}

func (o *Orchestrator) SetAudioPlayer(player AudioPlayer) {
	o.audioOutput.Set(player)
}

func (o *Orchestrator) Config() Config {
	return o.config
}

func (o *Orchestrator) buildRequest(prompt string, images []string) llms.ChatRequest {
	opts := []llms.RequestOption{llms.WithSystemPrompt(o.config.SystemPrompt)}
	if o.config.Stateful {
		opts = append(opts, llms.WithStateful(o.conversation.ResponseID(), o.config.StoreResponses))
	} else {
		opts = append(opts, llms.WithHistory(o.conversation.History(), o.config.HistoryLimit))
	}
	if len(images) > 0 {
		opts = append(opts, llms.WithImages(images...))
	}
	if o.config.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*o.config.Temperature))
	}
	if o.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(o.config.MaxTokens))
	}
	return llms.NewChatRequest(o.config.Model, prompt, opts...)
}

func (o *Orchestrator) speechFactory(session *ResponseSession) func(context.Context) *speechPipeline {
	if !o.config.SpeechEnabled || o.synthesizer == nil || !o.audioOutput.isConfigured() {
		return nil
	}

	output := o.audioOutput.Snapshot()
	return func(ctx context.Context) *speechPipeline {
		return newSpeechPipeline(ctx, &o.epoch, session.Epoch, o.cleaner, o.synthesizer, output, o.config.Speech,
			func(status events.PlaybackStatusValue) {
				if o.onPlaybackStatus != nil {
					o.onPlaybackStatus(events.NewPlaybackStatus(session.ID, status))
				}
			})
	}
}
