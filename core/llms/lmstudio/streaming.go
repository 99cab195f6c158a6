package lmstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
)

const (
	DefaultBaseURL = "http://localhost:1234"

	chatPath       = "/api/chat"
	readBufferSize = 4096
	maxErrorBody   = 64 * 1024
)

// Client streams chat responses from an LM Studio compatible endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamChat sends the request and returns the open event stream. A non-2xx
// answer is returned as *ChatError before any event is read.
func (c *Client) StreamChat(ctx context.Context, request llms.ChatRequest) (llms.EventStream, error) {
	ctx, span := tracer.Start(ctx, "stream chat", trace.WithAttributes(
		attribute.String("chat.model", request.Model),
		attribute.Bool("chat.stateful", request.Stateful),
		attribute.Bool("chat.continuation", request.PreviousResponseID != ""),
	))
	defer span.End()

	requestBody, err := json.Marshal(toRequestBody(request))
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		chatErr := newChatError(resp.StatusCode, string(body))
		span.RecordError(chatErr)
		span.SetStatus(codes.Error, "non-2xx status")
		return nil, chatErr
	}

	return &Stream{body: resp.Body, decoder: NewDecoder()}, nil
}

// Stream is an open chat response.
type Stream struct {
	body    io.ReadCloser
	decoder *Decoder

	closeOnce sync.Once
	closeErr  error
}

func (s *Stream) Events(ctx context.Context) func(func(events.Event, error) bool) {
	return func(yield func(events.Event, error) bool) {
		defer s.Close()

		emit := func(decoded []events.Event) bool {
			for _, event := range decoded {
				if cause := context.Cause(ctx); cause != nil {
					yield(nil, fmt.Errorf("error reading stream: %w", cause))
					return false
				}
				if !yield(event, nil) {
					return false
				}
			}
			return true
		}

		stop := context.AfterFunc(ctx, func() { s.Close() })
		defer stop()

		buffer := make([]byte, readBufferSize)
		for !s.decoder.Done() {
			n, err := s.body.Read(buffer)
			if n > 0 && !emit(s.decoder.Write(buffer[:n])) {
				return
			}

			if errors.Is(err, io.EOF) {
				emit(s.decoder.Flush())
				return
			} else if err != nil {
				if ctxErr := context.Cause(ctx); ctxErr != nil {
					err = ctxErr
				}
				yield(nil, fmt.Errorf("error reading stream: %w", err))
				return
			}
		}
	}
}

func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
