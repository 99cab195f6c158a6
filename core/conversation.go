package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-voice/core/llms"
)

// conversation keeps the folded turns and, for stateful endpoints, the id of
// the response the next request continues from.
type conversation struct {
	mu sync.RWMutex

	turns      []llms.Turn
	responseID string
}

func (c *conversation) Append(turn llms.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
}

func (c *conversation) History() []llms.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := make([]llms.Turn, len(c.turns))
	copy(history, c.turns)
	return history
}

func (c *conversation) ResponseID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.responseID
}

func (c *conversation) SetResponseID(responseID string) {
	if responseID == "" {
		return
	}

	c.mu.Lock()
	c.responseID = responseID
	c.mu.Unlock()
}

func (c *conversation) ClearResponseID() {
	c.mu.Lock()
	c.responseID = ""
	c.mu.Unlock()
}

// Reset forgets every turn and the continuation id.
func (c *conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = nil
	c.responseID = ""
}
