package httptts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/ema-voice/core/texttospeech"
)

func TestSynthesize(t *testing.T) {
	var received synthesisRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tts" {
			t.Errorf("expected POST /api/tts, got %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF-audio"))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithSynthesisOptions(
		texttospeech.WithLanguage("en"),
		texttospeech.WithVoiceStyle("F1"),
		texttospeech.WithSteps(500),
		texttospeech.WithFormat("mp3"),
	))

	audio, err := client.Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(audio) != "RIFF-audio" {
		t.Fatalf("expected payload to be returned, got %q", audio)
	}

	expected := synthesisRequest{
		Text:       "Hello there.",
		Lang:       "en",
		ChunkSize:  texttospeech.DefaultChunkSize,
		VoiceStyle: "F1",
		Speed:      texttospeech.DefaultSpeed,
		Steps:      texttospeech.MaxSteps,
		Format:     "mp3",
	}
	if received != expected {
		t.Fatalf("expected request %+v, got %+v", expected, received)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		body        string
		unavailable bool
	}{
		{name: "bad request", status: http.StatusBadRequest, body: "Invalid request"},
		{name: "not initialized", status: http.StatusServiceUnavailable, body: `{"status":"not_available"}`, unavailable: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tc.body, tc.status)
			}))
			defer server.Close()

			_, err := NewClient(server.URL).Synthesize(context.Background(), "text")
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.body) {
				t.Fatalf("expected error to carry body %q, got %v", tc.body, err)
			}
			if errors.Is(err, ErrUnavailable) != tc.unavailable {
				t.Fatalf("expected unavailable=%t, got %v", tc.unavailable, err)
			}
		})
	}
}

func TestVoiceStyles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts/styles" {
			t.Errorf("expected styles path, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]string{"F1", "M1"})
	}))
	defer server.Close()

	styles, err := NewClient(server.URL).VoiceStyles(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(styles) != 2 || styles[0] != "F1" {
		t.Fatalf("expected [F1 M1], got %v", styles)
	}
}
