package orchestration

import (
	"context"
	"slices"
	"testing"
)

func TestAudioOutputSnapshotKeepsOriginalPlayerAfterSet(t *testing.T) {
	original := &fakePlayer{}
	replacement := &fakePlayer{}

	facade := newAudioOutput(original)
	snapshot := facade.Snapshot()

	facade.Set(replacement)

	if err := snapshot.Play(context.Background(), []byte("one")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := original.Played(); !slices.Equal(got, []string{"one"}) {
		t.Fatalf("expected snapshot to play through original player, got %q", got)
	}
	if got := replacement.Played(); len(got) != 0 {
		t.Fatalf("expected replacement to receive no snapshot audio, got %q", got)
	}

	if err := facade.Play(context.Background(), []byte("two")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := replacement.Played(); !slices.Equal(got, []string{"two"}) {
		t.Fatalf("expected facade to play through replacement player, got %q", got)
	}
}

func TestAudioOutputFacadeTreatsTypedNilAsUnconfigured(t *testing.T) {
	var player *fakePlayer

	facade := newAudioOutput(player)

	if facade.isConfigured() {
		t.Fatalf("expected typed nil player to be treated as unconfigured")
	}
	if err := facade.Play(context.Background(), []byte("dropped")); err != nil {
		t.Fatalf("expected unconfigured facade to drop audio, got %v", err)
	}
}

func TestAudioOutputFacadeSetTypedNilClearsConfiguration(t *testing.T) {
	facade := newAudioOutput(&fakePlayer{})
	if !facade.isConfigured() {
		t.Fatalf("expected facade to start configured")
	}

	var player *fakePlayer
	facade.Set(player)

	if facade.isConfigured() {
		t.Fatalf("expected facade to become unconfigured after setting typed nil player")
	}
}

func TestOrchestratorWithoutPlayerDoesNotSpeak(t *testing.T) {
	var player *fakePlayer
	synthesizer := &fakeSynthesizer{}
	o := NewOrchestrator(
		WithChatClient(&fakeChatClient{responses: []fakeResponse{{steps: contentSteps("Hello there. How are you?")}}}),
		WithSynthesizer(synthesizer),
		WithAudioPlayer(player),
	)

	if _, err := o.Respond(context.Background(), "hi"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := synthesizer.totalCalls(); n != 0 {
		t.Fatalf("expected no synthesis without a player, got %d calls", n)
	}
}
