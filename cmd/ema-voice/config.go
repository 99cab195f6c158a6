package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-voice/core/llms/lmstudio"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "EMA_VOICE"

const (
	audioBackendMiniaudio = "miniaudio"
	audioBackendPortaudio = "portaudio"
	audioBackendNone      = "none"
)

// appConfig is the shape of the config file. Keys are the same in the file,
// as flags (with dashes) and as EMA_VOICE_<SECTION>_<KEY> variables.
type appConfig struct {
	Chat    chatConfig    `mapstructure:"chat" json:"chat"`
	Speech  speechConfig  `mapstructure:"speech" json:"speech"`
	Audio   audioConfig   `mapstructure:"audio" json:"audio"`
	Display displayConfig `mapstructure:"display" json:"display"`
}

type chatConfig struct {
	BaseURL       string   `mapstructure:"base_url" json:"base_url" jsonschema:"description=Chat endpoint base URL"`
	APIKey        string   `mapstructure:"api_key" json:"api_key,omitempty" jsonschema:"description=Bearer token sent to the chat endpoint"`
	Model         string   `mapstructure:"model" json:"model"`
	SystemPrompt  string   `mapstructure:"system_prompt" json:"system_prompt,omitempty"`
	Stateful      bool     `mapstructure:"stateful" json:"stateful" jsonschema:"description=Let the endpoint keep the conversation and chain responses by id"`
	Store         bool     `mapstructure:"store" json:"store" jsonschema:"description=Ask the endpoint to store responses in stateful mode"`
	HistoryLimit  int      `mapstructure:"history_limit" json:"history_limit" jsonschema:"minimum=0,description=User/assistant pairs sent in stateless mode"`
	ShowReasoning bool     `mapstructure:"show_reasoning" json:"show_reasoning"`
	Temperature   *float64 `mapstructure:"temperature" json:"temperature,omitempty" jsonschema:"minimum=0"`
	MaxTokens     int      `mapstructure:"max_tokens" json:"max_tokens,omitempty" jsonschema:"minimum=0"`
}

type speechConfig struct {
	Enabled    bool    `mapstructure:"enabled" json:"enabled"`
	URL        string  `mapstructure:"url" json:"url" jsonschema:"description=Synthesis endpoint base URL"`
	Voice      string  `mapstructure:"voice" json:"voice,omitempty"`
	Lang       string  `mapstructure:"lang" json:"lang"`
	Speed      float64 `mapstructure:"speed" json:"speed" jsonschema:"exclusiveMinimum=0"`
	Steps      int     `mapstructure:"steps" json:"steps" jsonschema:"minimum=1,maximum=50"`
	Format     string  `mapstructure:"format" json:"format" jsonschema:"enum=wav,enum=mp3"`
	ChunkSize  int     `mapstructure:"chunk_size" json:"chunk_size" jsonschema:"minimum=1,description=Target length of a spoken chunk in characters"`
	Dictionary string  `mapstructure:"dictionary" json:"dictionary,omitempty" jsonschema:"description=Pronunciation dictionary file (.txt, .yaml or .json)"`
}

type audioConfig struct {
	Backend         string `mapstructure:"backend" json:"backend" jsonschema:"enum=miniaudio,enum=portaudio,enum=none"`
	FramesPerBuffer int    `mapstructure:"frames_per_buffer" json:"frames_per_buffer,omitempty"`
}

type displayConfig struct {
	Serve string `mapstructure:"serve" json:"serve,omitempty" jsonschema:"description=Address to serve the websocket display on, e.g. :8080"`
}

func defaultAppConfig() appConfig {
	synthesis := texttospeech.DefaultSynthesisOptions()
	return appConfig{
		Chat: chatConfig{
			BaseURL:      lmstudio.DefaultBaseURL,
			Store:        true,
			HistoryLimit: 10,
		},
		Speech: speechConfig{
			Enabled:   true,
			URL:       "http://localhost:8000",
			Lang:      synthesis.Language,
			Speed:     synthesis.Speed,
			Steps:     synthesis.Steps,
			Format:    synthesis.Format,
			ChunkSize: synthesis.ChunkSize,
		},
		Audio: audioConfig{
			Backend: audioBackendMiniaudio,
		},
	}
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"base-url":       "chat.base_url",
	"api-key":        "chat.api_key",
	"model":          "chat.model",
	"system-prompt":  "chat.system_prompt",
	"stateful":       "chat.stateful",
	"store":          "chat.store",
	"history-limit":  "chat.history_limit",
	"show-reasoning": "chat.show_reasoning",
	"speech":         "speech.enabled",
	"tts-url":        "speech.url",
	"voice":          "speech.voice",
	"lang":           "speech.lang",
	"speed":          "speech.speed",
	"steps":          "speech.steps",
	"format":         "speech.format",
	"chunk-size":     "speech.chunk_size",
	"dictionary":     "speech.dictionary",
	"audio-backend":  "audio.backend",
	"serve-display":  "display.serve",
}

func registerConfigFlags(flags *pflag.FlagSet) {
	defaults := defaultAppConfig()

	flags.String("base-url", defaults.Chat.BaseURL, "chat endpoint base URL")
	flags.String("api-key", "", "bearer token for the chat endpoint")
	flags.String("model", "", "model to answer with")
	flags.String("system-prompt", "", "system prompt sent with every request")
	flags.Bool("stateful", defaults.Chat.Stateful, "let the endpoint keep the conversation")
	flags.Bool("store", defaults.Chat.Store, "store responses on the endpoint in stateful mode")
	flags.Int("history-limit", defaults.Chat.HistoryLimit, "user/assistant pairs sent in stateless mode")
	flags.Bool("show-reasoning", false, "show model reasoning in the transcript")

	flags.Bool("speech", defaults.Speech.Enabled, "speak responses")
	flags.String("tts-url", defaults.Speech.URL, "synthesis endpoint base URL")
	flags.String("voice", "", "voice style")
	flags.String("lang", defaults.Speech.Lang, "synthesis language")
	flags.Float64("speed", defaults.Speech.Speed, "speech speed")
	flags.Int("steps", defaults.Speech.Steps, "synthesis steps")
	flags.String("format", defaults.Speech.Format, "audio format, wav or mp3")
	flags.Int("chunk-size", defaults.Speech.ChunkSize, "target spoken chunk length in characters")
	flags.String("dictionary", "", "pronunciation dictionary file")

	flags.String("audio-backend", defaults.Audio.Backend, "audio output: miniaudio, portaudio or none")
	flags.String("serve-display", "", "serve the websocket display on this address")
}

// loadConfig layers, lowest first: defaults, config file, environment, flags
// set on the command line.
func loadConfig(path string, flags *pflag.FlagSet) (appConfig, error) {
	v := viper.New()
	setDefaults(v, defaultAppConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are unknown to viper until bound.
	for _, key := range []string{"chat.temperature", "chat.max_tokens", "audio.frames_per_buffer"} {
		if err := v.BindEnv(key); err != nil {
			return appConfig{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return appConfig{}, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ema-voice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ema-voice")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return appConfig{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config appConfig
	if err := v.Unmarshal(&config); err != nil {
		return appConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.validate(); err != nil {
		return appConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper, defaults appConfig) {
	v.SetDefault("chat.base_url", defaults.Chat.BaseURL)
	v.SetDefault("chat.api_key", defaults.Chat.APIKey)
	v.SetDefault("chat.model", defaults.Chat.Model)
	v.SetDefault("chat.system_prompt", defaults.Chat.SystemPrompt)
	v.SetDefault("chat.stateful", defaults.Chat.Stateful)
	v.SetDefault("chat.store", defaults.Chat.Store)
	v.SetDefault("chat.history_limit", defaults.Chat.HistoryLimit)
	v.SetDefault("chat.show_reasoning", defaults.Chat.ShowReasoning)

	v.SetDefault("speech.enabled", defaults.Speech.Enabled)
	v.SetDefault("speech.url", defaults.Speech.URL)
	v.SetDefault("speech.voice", defaults.Speech.Voice)
	v.SetDefault("speech.lang", defaults.Speech.Lang)
	v.SetDefault("speech.speed", defaults.Speech.Speed)
	v.SetDefault("speech.steps", defaults.Speech.Steps)
	v.SetDefault("speech.format", defaults.Speech.Format)
	v.SetDefault("speech.chunk_size", defaults.Speech.ChunkSize)
	v.SetDefault("speech.dictionary", defaults.Speech.Dictionary)

	v.SetDefault("audio.backend", defaults.Audio.Backend)
	v.SetDefault("display.serve", defaults.Display.Serve)
}

func (c appConfig) validate() error {
	var errs []error
	switch c.Audio.Backend {
	case audioBackendMiniaudio, audioBackendPortaudio, audioBackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.Audio.Backend))
	}
	switch c.Speech.Format {
	case "wav", "mp3":
	default:
		errs = append(errs, fmt.Errorf("unsupported audio format %q", c.Speech.Format))
	}
	if c.Chat.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("history limit must not be negative, got %d", c.Chat.HistoryLimit))
	}
	if c.Speech.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.Speech.ChunkSize))
	}
	if c.Speech.Speed <= 0 {
		errs = append(errs, fmt.Errorf("speed must be positive, got %v", c.Speech.Speed))
	}
	return errors.Join(errs...)
}
