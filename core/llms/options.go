package llms

// ChatRequest describes a single streaming chat call. Stateful requests send
// only Input (plus PreviousResponseID) and let the server keep the history,
// stateless requests send the system prompt and the trimmed history as
// Messages.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Stateful     bool

	// Stateful mode
	Input              string
	PreviousResponseID string
	// Store is sent as false when the server should not keep the response.
	Store *bool

	// Stateless mode
	Messages []Message

	Temperature *float64
	MaxTokens   int

	images []string
}

type RequestOption func(*ChatRequest)

// NewChatRequest builds a request for prompt. In stateless mode the history
// passed with WithHistory precedes the prompt.
func NewChatRequest(model, prompt string, opts ...RequestOption) ChatRequest {
	request := ChatRequest{Model: model, Input: prompt}
	for _, opt := range opts {
		opt(&request)
	}

	if !request.Stateful {
		request.Messages = append(request.Messages, Message{
			Role:    RoleUser,
			Content: prompt,
			Images:  request.images,
		})
	}
	return request
}

// WithSystemPrompt sets the system prompt for the request.
// Repeating this option will overwrite the previous system prompt.
func WithSystemPrompt(prompt string) RequestOption {
	return func(r *ChatRequest) {
		r.SystemPrompt = prompt
	}
}

// WithStateful switches the request to stateful mode. previousResponseID may
// be empty for the first turn of a conversation. When store is false the
// server is asked not to keep the response.
func WithStateful(previousResponseID string, store bool) RequestOption {
	return func(r *ChatRequest) {
		r.Stateful = true
		r.PreviousResponseID = previousResponseID
		if !store {
			r.Store = &store
		}
	}
}

// WithHistory adds the most recent historyLimit turns to a stateless request.
func WithHistory(turns []Turn, historyLimit int) RequestOption {
	return func(r *ChatRequest) {
		r.Messages = append(r.Messages, ToMessages(turns, historyLimit)...)
	}
}

// WithImages attaches images to the prompt of a stateless request.
func WithImages(images ...string) RequestOption {
	return func(r *ChatRequest) {
		r.images = append(r.images, images...)
	}
}

func WithTemperature(temperature float64) RequestOption {
	return func(r *ChatRequest) {
		r.Temperature = &temperature
	}
}

func WithMaxTokens(maxTokens int) RequestOption {
	return func(r *ChatRequest) {
		r.MaxTokens = maxTokens
	}
}

// WithoutContinuation returns a copy of the request without its previous
// response id.
func (r ChatRequest) WithoutContinuation() ChatRequest {
	r.PreviousResponseID = ""
	return r
}
