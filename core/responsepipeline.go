package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/llms/lmstudio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// responsePipeline runs one assistant response: generation folds the stream
// into the session and the display, speech plays what the session produced.
type responsePipeline struct {
	session *ResponseSession
	chat    llms.ChatClient
	display Display

	newSpeech func(ctx context.Context) *speechPipeline
	speechMu  sync.Mutex
	speech    *speechPipeline
	muted     bool

	// onContinuationLost is called when the endpoint forgot the previous
	// response and the request is retried without it.
	onContinuationLost func()

	cancelMu  sync.Mutex
	cancel    context.CancelCauseFunc
	cancelled atomic.Bool
}

func newResponsePipeline(session *ResponseSession, chat llms.ChatClient, display Display, newSpeech func(ctx context.Context) *speechPipeline) *responsePipeline {
	return &responsePipeline{
		session:   session,
		chat:      chat,
		display:   display,
		newSpeech: newSpeech,
	}
}

// Run streams request to completion. Aborts and loop stops are recorded on
// the session and are not errors.
func (p *responsePipeline) Run(ctx context.Context, request llms.ChatRequest) error {
	if p == nil || p.session == nil {
		return fmt.Errorf("response pipeline and session are required")
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	p.setCancel(cancel)

	speech := p.startSpeech(ctx)

	var stageErr error
	stageErrMu := sync.Mutex{}
	addStageErr := func(err error) {
		if err == nil {
			return
		}
		stageErrMu.Lock()
		stageErr = errors.Join(stageErr, err)
		stageErrMu.Unlock()
	}

	generationDone := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(generationDone)
		addStageErr(guardStage(p.session.ID, "generation", func(ctx context.Context) error {
			return p.generate(ctx, request, speech)
		})(ctx))
	}()
	go func() {
		defer wg.Done()
		addStageErr(guardStage(p.session.ID, "speech", func(ctx context.Context) error {
			return p.speak(ctx, speech, generationDone)
		})(ctx))
	}()
	wg.Wait()

	switch cause := context.Cause(ctx); {
	case p.session.IsLoopDetected():
		return nil
	case cause != nil:
		p.session.MarkCancelled()
		p.updateDisplay()
		return nil
	case stageErr != nil:
		p.session.MarkFailed(explainChatError(stageErr))
		p.updateDisplay()
		return fmt.Errorf("response generation failed: %w", stageErr)
	}
	return nil
}

func (p *responsePipeline) generate(ctx context.Context, request llms.ChatRequest, speech *speechPipeline) error {
	ctx, span := tracer.Start(ctx, "generate response", trace.WithAttributes(
		attribute.String("response.id", p.session.ID),
		attribute.Bool("chat.stateful", request.Stateful),
	))
	defer span.End()

	defer func() {
		if p.session.Close() {
			speech.Feed(p.session.SpeechText())
		}
		speech.Finalize(p.session.SpeechText())
		p.updateDisplay()
	}()

	stream, err := p.chat.StreamChat(ctx, request)
	if errors.Is(err, lmstudio.ErrMissingResponseID) && request.PreviousResponseID != "" {
		logger.Warn("chat endpoint lost the previous response, retrying without it", "previous_response_id", request.PreviousResponseID)
		span.AddEvent("retrying without previous response id")
		if p.onContinuationLost != nil {
			p.onContinuationLost()
		}
		stream, err = p.chat.StreamChat(ctx, request.WithoutContinuation())
	}
	if err != nil {
		err = fmt.Errorf("failed to start chat stream: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer stream.Close()

	for event, err := range stream.Events(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			err = fmt.Errorf("chat stream failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		update := p.session.Apply(event)
		if update.display {
			p.updateDisplay()
		}
		if update.speech {
			speech.Feed(p.session.SpeechText())
		}
		if update.loop {
			loopsDetected.Add(ctx, 1)
			span.AddEvent("repetition loop detected")
			logger.Warn("stopping generation after a repetition loop", "response_id", p.session.ID)
			p.cancelWithCause(ErrRepetitionLoop)
			return nil
		}
	}

	if ctx.Err() == nil {
		p.session.MarkCompleted()
	}
	return nil
}

func (p *responsePipeline) speak(ctx context.Context, speech *speechPipeline, generationDone <-chan struct{}) error {
	if speech == nil {
		<-generationDone
		return nil
	}

	stop := context.AfterFunc(ctx, speech.Cancel)
	defer stop()

	<-generationDone
	speech.Wait()
	return nil
}

func (p *responsePipeline) startSpeech(ctx context.Context) *speechPipeline {
	p.speechMu.Lock()
	defer p.speechMu.Unlock()

	if p.muted || p.newSpeech == nil {
		return nil
	}
	p.speech = p.newSpeech(ctx)
	return p.speech
}

func (p *responsePipeline) updateDisplay() {
	if p.display == nil {
		return
	}
	p.display.UpdateMessage(p.session.ID, p.session.DisplayText())
}

// StopSpeaking stops the audio of this response while generation continues.
func (p *responsePipeline) StopSpeaking() {
	if p == nil {
		return
	}

	p.speechMu.Lock()
	p.muted = true
	speech := p.speech
	p.speechMu.Unlock()

	speech.Cancel()
}

func (p *responsePipeline) Cancel() {
	if p == nil || !p.cancelled.CompareAndSwap(false, true) {
		return
	}
	p.cancelWithCause(context.Canceled)
}

func (p *responsePipeline) IsCancelled() bool {
	if p == nil {
		return false
	}
	return p.cancelled.Load()
}

func (p *responsePipeline) setCancel(cancel context.CancelCauseFunc) {
	p.cancelMu.Lock()
	p.cancel = cancel
	p.cancelMu.Unlock()

	if p.cancelled.Load() {
		cancel(context.Canceled)
	}
}

func (p *responsePipeline) cancelWithCause(cause error) {
	p.cancelMu.Lock()
	cancel := p.cancel
	p.cancelMu.Unlock()

	if cancel != nil {
		cancel(cause)
	}
}

func explainChatError(err error) string {
	switch {
	case errors.Is(err, lmstudio.ErrUnauthorized):
		return "The chat server rejected the API token. Check the configured API key."
	case errors.Is(err, lmstudio.ErrContextOverflow):
		return "The conversation no longer fits into the model context. Start a new conversation or lower the history limit."
	case errors.Is(err, lmstudio.ErrPluginPermission):
		return "The chat server does not allow this API key to use the requested plugin."
	case errors.Is(err, lmstudio.ErrMissingResponseID):
		return "The chat server no longer knows the previous response. Start a new conversation."
	default:
		return err.Error()
	}
}
