package lmstudio

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Prefixes a proxy in front of the chat endpoint uses to mark errors the user
// can act on.
const (
	authErrorPrefix       = "LM_STUDIO_AUTH_ERROR:"
	responseIDErrorPrefix = "LM_STUDIO_RESPONSE_ID_ERROR:"
	pluginErrorPrefix     = "LM_STUDIO_MCP_ERROR:"
	contextErrorPrefix    = "LM_STUDIO_CONTEXT_ERROR:"
)

var (
	ErrUnauthorized      = errors.New("chat endpoint rejected the api token")
	ErrMissingResponseID = errors.New("previous response id is unknown to the chat endpoint")
	ErrPluginPermission  = errors.New("permission denied to use plugin")
	ErrContextOverflow   = errors.New("context size exceeded")
)

// ChatError is returned when the chat endpoint answers with a non-2xx status.
// Known conditions unwrap to one of the sentinel errors above.
type ChatError struct {
	StatusCode int
	Message    string

	err error
}

func (e *ChatError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("chat request failed (%d): %v: %s", e.StatusCode, e.err, e.Message)
	}
	return fmt.Sprintf("chat request failed (%d): %s", e.StatusCode, e.Message)
}

func (e *ChatError) Unwrap() error {
	return e.err
}

func newChatError(statusCode int, body string) *ChatError {
	message := strings.TrimSpace(body)
	chatErr := &ChatError{StatusCode: statusCode, Message: message}

	for _, prefix := range []struct {
		prefix string
		err    error
	}{
		{authErrorPrefix, ErrUnauthorized},
		{responseIDErrorPrefix, ErrMissingResponseID},
		{pluginErrorPrefix, ErrPluginPermission},
		{contextErrorPrefix, ErrContextOverflow},
	} {
		if rest, ok := strings.CutPrefix(message, prefix.prefix); ok {
			chatErr.Message = strings.TrimSpace(rest)
			chatErr.err = prefix.err
			return chatErr
		}
	}

	// Raw upstream bodies when nothing rewrote them
	switch {
	case statusCode == http.StatusUnauthorized ||
		strings.Contains(message, "invalid_api_key") ||
		strings.Contains(message, "Malformed LM Studio API token"):
		chatErr.err = ErrUnauthorized
	case statusCode == http.StatusForbidden && strings.Contains(message, "Permission denied to use plugin"):
		chatErr.err = ErrPluginPermission
	case strings.Contains(message, "Context size has been exceeded") ||
		strings.Contains(message, "context_length_exceeded"):
		chatErr.err = ErrContextOverflow
	case strings.Contains(message, "previous_response_id") &&
		(strings.Contains(message, "not found") || strings.Contains(message, "No response")):
		chatErr.err = ErrMissingResponseID
	}
	return chatErr
}
