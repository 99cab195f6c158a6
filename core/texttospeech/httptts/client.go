package httptts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-voice/core/texttospeech"
)

const (
	synthesisPath = "/api/tts"
	stylesPath    = "/api/tts/styles"
	maxErrorBody  = 16 * 1024
)

// ErrUnavailable is returned when the synthesis engine is not initialized on
// the server.
var ErrUnavailable = errors.New("speech synthesis is not available")

// Client synthesizes speech through an HTTP endpoint that answers with the
// encoded audio payload.
type Client struct {
	baseURL    string
	httpClient *http.Client
	options    texttospeech.SynthesisOptions
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithSynthesisOptions applies synthesis options to every request made by the
// client.
func WithSynthesisOptions(opts ...texttospeech.SynthesisOption) ClientOption {
	return func(c *Client) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		options:    texttospeech.DefaultSynthesisOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Options() texttospeech.SynthesisOptions {
	return c.options
}

type synthesisRequest struct {
	Text       string  `json:"text"`
	Lang       string  `json:"lang"`
	ChunkSize  int     `json:"chunkSize"`
	VoiceStyle string  `json:"voiceStyle,omitempty"`
	Speed      float64 `json:"speed"`
	Steps      int     `json:"steps"`
	Format     string  `json:"format"`
}

// Synthesize returns the encoded audio for text. Non-2xx answers are returned
// as errors carrying the plain-text body.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize", trace.WithAttributes(
		attribute.Int("tts.text_length", len(text)),
		attribute.String("tts.format", c.options.Format),
	))
	defer span.End()

	body, err := json.Marshal(synthesisRequest{
		Text:       text,
		Lang:       c.options.Language,
		ChunkSize:  c.options.ChunkSize,
		VoiceStyle: c.options.VoiceStyle,
		Speed:      c.options.Speed,
		Steps:      c.options.Steps,
		Format:     c.options.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+synthesisPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := statusError(resp.StatusCode, string(errorBody))
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-2xx status")
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read audio")
		return nil, fmt.Errorf("error reading audio: %w", err)
	}
	span.SetAttributes(attribute.Int("tts.audio_bytes", len(audio)))
	logger.Debug("synthesized chunk", "characters", len(text), "bytes", len(audio))
	return audio, nil
}

// VoiceStyles lists the voice styles the server offers.
func (c *Client) VoiceStyles(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+stylesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, string(errorBody))
	}

	var styles []string
	if err := json.NewDecoder(resp.Body).Decode(&styles); err != nil {
		return nil, fmt.Errorf("error decoding voice styles: %w", err)
	}
	return styles, nil
}

func statusError(statusCode int, body string) error {
	body = strings.TrimSpace(body)
	if statusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w (%d): %s", ErrUnavailable, statusCode, body)
	}
	return fmt.Errorf("synthesis failed (%d): %s", statusCode, body)
}
