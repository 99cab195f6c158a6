package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/display/websocket"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms/lmstudio"
	"github.com/koscakluka/ema-voice/core/speechtext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/koscakluka/ema-voice/core/texttospeech/httptts"
)

// closablePlayer is an audio player holding a device.
type closablePlayer interface {
	orchestration.AudioPlayer
	Close()
}

// app owns the orchestrator and the devices and servers built around it.
type app struct {
	config       appConfig
	orchestrator *orchestration.Orchestrator
	player       closablePlayer
	hub          *websocket.Hub
	server       *http.Server

	displays   multiDisplay
	onPlayback []func(events.PlaybackStatus)
}

func newApp(config appConfig) (*app, error) {
	a := &app{config: config}

	cleaner := speechtext.NewCleaner()
	if config.Speech.Dictionary != "" {
		dictionary, err := speechtext.LoadDictionary(config.Speech.Dictionary)
		if err != nil {
			return nil, err
		}
		cleaner = speechtext.NewCleaner(speechtext.WithDictionary(dictionary))
	}

	if config.Speech.Enabled {
		player, err := openPlayer(config.Audio)
		if err != nil {
			return nil, err
		}
		a.player = player
	}

	if config.Display.Serve != "" {
		a.hub = websocket.NewHub(websocket.WithControlHandler(a.handleControl))
		a.displays = append(a.displays, a.hub)
		a.onPlayback = append(a.onPlayback, func(status events.PlaybackStatus) {
			a.hub.UpdatePlaybackStatus(status.MessageID, status.Status)
		})
	}

	orchestratorConfig := orchestration.DefaultConfig()
	orchestratorConfig.Model = config.Chat.Model
	orchestratorConfig.SystemPrompt = config.Chat.SystemPrompt
	orchestratorConfig.Stateful = config.Chat.Stateful
	orchestratorConfig.StoreResponses = config.Chat.Store
	orchestratorConfig.HistoryLimit = config.Chat.HistoryLimit
	orchestratorConfig.Temperature = config.Chat.Temperature
	orchestratorConfig.MaxTokens = config.Chat.MaxTokens
	orchestratorConfig.ShowReasoning = config.Chat.ShowReasoning
	orchestratorConfig.SpeechEnabled = config.Speech.Enabled && a.player != nil
	orchestratorConfig.Speech.Segmenter.TargetChunkSize = config.Speech.ChunkSize

	chatOpts := []lmstudio.ClientOption{}
	if config.Chat.APIKey != "" {
		chatOpts = append(chatOpts, lmstudio.WithAPIKey(config.Chat.APIKey))
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithConfig(&orchestratorConfig),
		orchestration.WithChatClient(lmstudio.NewClient(config.Chat.BaseURL, chatOpts...)),
		orchestration.WithCleaner(cleaner),
		orchestration.WithDisplay(&a.displays),
		orchestration.WithPlaybackStatusCallback(a.playbackStatus),
	}
	if a.player != nil {
		opts = append(opts,
			orchestration.WithAudioPlayer(a.player),
			orchestration.WithSynthesizer(httptts.NewClient(config.Speech.URL,
				httptts.WithSynthesisOptions(
					texttospeech.WithLanguage(config.Speech.Lang),
					texttospeech.WithVoiceStyle(config.Speech.Voice),
					texttospeech.WithSpeed(config.Speech.Speed),
					texttospeech.WithSteps(config.Speech.Steps),
					texttospeech.WithFormat(config.Speech.Format),
					texttospeech.WithChunkSize(config.Speech.ChunkSize),
				))),
		)
	}
	a.orchestrator = orchestration.NewOrchestrator(opts...)

	return a, nil
}

func openPlayer(config audioConfig) (closablePlayer, error) {
	switch config.Backend {
	case audioBackendMiniaudio:
		player, err := miniaudio.NewPlayer()
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio output: %w", err)
		}
		return player, nil
	case audioBackendPortaudio:
		player, err := portaudio.NewPlayer(config.FramesPerBuffer)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio output: %w", err)
		}
		return player, nil
	default:
		return nil, nil
	}
}

// addDisplay registers another surface for message updates and playback
// status. It must be called before the first prompt.
func (a *app) addDisplay(display orchestration.Display, onPlayback func(events.PlaybackStatus)) {
	a.displays = append(a.displays, display)
	if onPlayback != nil {
		a.onPlayback = append(a.onPlayback, onPlayback)
	}
}

func (a *app) playbackStatus(status events.PlaybackStatus) {
	for _, callback := range a.onPlayback {
		callback(status)
	}
}

// handleControl runs control messages from display clients.
func (a *app) handleControl(message websocket.ControlMessage) {
	switch message.Type {
	case websocket.ControlCancel:
		a.orchestrator.Cancel()
	case websocket.ControlStopSpeaking:
		a.orchestrator.StopSpeaking()
	case websocket.ControlPrompt:
		go func() {
			if _, err := a.orchestrator.Respond(context.Background(), message.Content); err != nil {
				logger.Error("response from display prompt failed", "error", err)
			}
		}()
	}
}

// serveDisplay serves the websocket display until ctx is done.
func (a *app) serveDisplay(ctx context.Context) error {
	if a.hub == nil {
		return nil
	}

	go a.hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", a.hub)
	a.server = &http.Server{
		Addr:              a.config.Display.Serve,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving display", "address", a.config.Display.Serve)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("display server failed: %w", err)
	}
	return nil
}

func (a *app) Close() {
	a.orchestrator.Close()
	if a.player != nil {
		a.player.Close()
	}
}

// multiDisplay forwards message updates to every display.
type multiDisplay []orchestration.Display

func (d *multiDisplay) UpdateMessage(id, text string) {
	for _, display := range *d {
		display.UpdateMessage(id, text)
	}
}
