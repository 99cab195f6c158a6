package llms

import "testing"

func TestToMessagesTrimsHistory(t *testing.T) {
	turns := []Turn{
		{Prompt: "one", Response: AssistantResponse{Content: "first"}},
		{Prompt: "two", Response: AssistantResponse{Content: "<think>hmm</think>\nsecond"}},
		{Prompt: "three"},
	}

	messages := ToMessages(turns, 2)
	expected := []Message{
		{Role: RoleUser, Content: "two"},
		{Role: RoleAssistant, Content: "second"},
		{Role: RoleUser, Content: "three"},
	}
	if len(messages) != len(expected) {
		t.Fatalf("expected %d messages, got %d: %+v", len(expected), len(messages), messages)
	}
	for i := range expected {
		if messages[i].Role != expected[i].Role || messages[i].Content != expected[i].Content {
			t.Fatalf("expected message %d to be %+v, got %+v", i, expected[i], messages[i])
		}
	}
}

func TestNewChatRequest(t *testing.T) {
	history := []Turn{{Prompt: "hi", Response: AssistantResponse{Content: "hello"}}}

	t.Run("stateless", func(t *testing.T) {
		request := NewChatRequest("model", "what is this?",
			WithSystemPrompt("be brief"),
			WithHistory(history, 10),
			WithImages("data:image/png;base64,AAAA"),
			WithTemperature(0.5),
		)
		if request.Stateful {
			t.Fatalf("expected stateless request")
		}
		if len(request.Messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(request.Messages))
		}
		last := request.Messages[2]
		if last.Content != "what is this?" || len(last.Images) != 1 {
			t.Fatalf("expected prompt with one image last, got %+v", last)
		}
		if request.Temperature == nil || *request.Temperature != 0.5 {
			t.Fatalf("expected temperature 0.5, got %v", request.Temperature)
		}
	})

	t.Run("stateful", func(t *testing.T) {
		request := NewChatRequest("model", "next", WithStateful("resp_1", false))
		if !request.Stateful || request.PreviousResponseID != "resp_1" {
			t.Fatalf("expected stateful request continuing resp_1, got %+v", request)
		}
		if request.Store == nil || *request.Store {
			t.Fatalf("expected store=false, got %v", request.Store)
		}
		if len(request.Messages) != 0 {
			t.Fatalf("expected no messages in stateful mode, got %d", len(request.Messages))
		}
		if stripped := request.WithoutContinuation(); stripped.PreviousResponseID != "" {
			t.Fatalf("expected continuation to be stripped, got %q", stripped.PreviousResponseID)
		}
	})
}
