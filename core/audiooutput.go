package orchestration

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// audioOutput is the facade the speech pipelines play through. It lets the
// player be swapped or removed between turns, and drops audio while no
// player is configured.
//
// A turn should use a Snapshot() so later reconfiguration does not change the
// player mid-turn.
type audioOutput struct {
	mu     sync.RWMutex
	player AudioPlayer
}

func newAudioOutput(player AudioPlayer) *audioOutput {
	output := &audioOutput{}
	output.Set(player)
	return output
}

// Set replaces the configured player. Nil and typed-nil players are treated
// as unconfigured.
func (a *audioOutput) Set(player AudioPlayer) {
	if a == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.player = nil
	if !isNilClient(player) {
		a.player = player
	}
}

func (a *audioOutput) isConfigured() bool {
	if a == nil {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.player != nil
}

// Snapshot returns a copy bound to the current player.
func (a *audioOutput) Snapshot() *audioOutput {
	if a == nil {
		return a
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return &audioOutput{player: a.player}
}

// Play plays payload on the configured player. Without a player the payload
// is dropped.
func (a *audioOutput) Play(ctx context.Context, payload []byte) error {
	if a == nil {
		return nil
	}

	a.mu.RLock()
	player := a.player
	a.mu.RUnlock()

	if player == nil {
		return nil
	}
	if err := player.Play(ctx, payload); err != nil {
		return fmt.Errorf("audio output failed: %w", err)
	}
	return nil
}

// isNilClient detects nil and typed-nil interface values so options can avoid
// storing unusable interface wrappers as configured clients.
func isNilClient(client any) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
