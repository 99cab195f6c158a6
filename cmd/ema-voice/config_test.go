package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func newTestFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerConfigFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("expected flags to parse, got %v", err)
	}
	return flags
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ema-voice.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig("", newTestFlags(t))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	defaults := defaultAppConfig()
	if config.Chat.BaseURL != defaults.Chat.BaseURL || config.Chat.HistoryLimit != 10 || !config.Chat.Store {
		t.Fatalf("expected chat defaults, got %+v", config.Chat)
	}
	if !config.Speech.Enabled || config.Speech.Format != "wav" || config.Speech.ChunkSize != defaults.Speech.ChunkSize {
		t.Fatalf("expected speech defaults, got %+v", config.Speech)
	}
	if config.Audio.Backend != audioBackendMiniaudio {
		t.Fatalf("expected miniaudio backend, got %q", config.Audio.Backend)
	}
	if config.Chat.Temperature != nil {
		t.Fatalf("expected no temperature, got %v", *config.Chat.Temperature)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfigFile(t, strings.Join([]string{
		"chat:",
		"  model: from-file",
		"  system_prompt: be brief",
		"  temperature: 0.3",
		"speech:",
		"  lang: en",
		"  voice: F1",
	}, "\n"))

	t.Setenv("EMA_VOICE_SPEECH_LANG", "de")
	t.Setenv("EMA_VOICE_CHAT_MAX_TOKENS", "256")

	config, err := loadConfig(path, newTestFlags(t, "--model", "from-flag", "--audio-backend", "none"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if config.Chat.Model != "from-flag" {
		t.Fatalf("expected flag to win over file, got %q", config.Chat.Model)
	}
	if config.Speech.Lang != "de" {
		t.Fatalf("expected environment to win over file, got %q", config.Speech.Lang)
	}
	if config.Chat.SystemPrompt != "be brief" || config.Speech.Voice != "F1" {
		t.Fatalf("expected file values, got %+v %+v", config.Chat, config.Speech)
	}
	if config.Chat.Temperature == nil || *config.Chat.Temperature != 0.3 {
		t.Fatalf("expected temperature 0.3 from file, got %v", config.Chat.Temperature)
	}
	if config.Chat.MaxTokens != 256 {
		t.Fatalf("expected max tokens from environment, got %d", config.Chat.MaxTokens)
	}
	if config.Audio.Backend != audioBackendNone {
		t.Fatalf("expected audio backend from flag, got %q", config.Audio.Backend)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "audio backend", args: []string{"--audio-backend", "alsa"}, want: "unknown audio backend"},
		{name: "format", args: []string{"--format", "ogg"}, want: "unsupported audio format"},
		{name: "chunk size", args: []string{"--chunk-size", "0"}, want: "chunk size must be positive"},
		{name: "history limit", args: []string{"--history-limit", "-1"}, want: "history limit must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig("", newTestFlags(t, tt.args...))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
