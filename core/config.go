package orchestration

const (
	DefaultHistoryLimit = 10
)

// Config controls how the orchestrator talks to the chat endpoint and how it
// speaks responses.
type Config struct {
	Model        string
	SystemPrompt string

	// Stateful lets the chat endpoint keep the conversation. Each request
	// then only carries the new prompt and the previous response id.
	Stateful bool
	// StoreResponses asks a stateful endpoint to keep responses so they can
	// be continued. Ignored in stateless mode.
	StoreResponses bool
	// HistoryLimit is the number of most recent turns sent with stateless
	// requests. Zero or less sends the whole history.
	HistoryLimit int

	Temperature *float64
	MaxTokens   int

	// ShowReasoning renders reasoning regions on the display.
	ShowReasoning bool
	// SpeechEnabled turns responses into audio while they stream.
	SpeechEnabled bool

	Speech       SpeechConfig
	LoopDetector LoopDetectorConfig
}

func DefaultConfig() Config {
	return Config{
		StoreResponses: true,
		HistoryLimit:   DefaultHistoryLimit,
		SpeechEnabled:  true,
		Speech:         DefaultSpeechConfig(),
		LoopDetector:   DefaultLoopDetectorConfig(),
	}
}
