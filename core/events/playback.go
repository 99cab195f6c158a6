package events

const (
	// KindPlaybackStatus identifies a speech playback status change.
	KindPlaybackStatus Kind = "playback.status"
)

type PlaybackStatusValue string

const (
	PlaybackStatusLoading PlaybackStatusValue = "loading"
	PlaybackStatusPlaying PlaybackStatusValue = "playing"
	PlaybackStatusIdle    PlaybackStatusValue = "idle"
)

// PlaybackStatus reports what the speech playback of a message is doing. It is
// meant for status indicators only.
type PlaybackStatus struct {
	Base
	MessageID string
	Status    PlaybackStatusValue
}

// NewPlaybackStatus creates a playback status event.
func NewPlaybackStatus(messageID string, status PlaybackStatusValue) PlaybackStatus {
	return PlaybackStatus{Base: NewBase(KindPlaybackStatus), MessageID: messageID, Status: status}
}
