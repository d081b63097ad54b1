// Package source wraps remote players behind one imperative surface and
// turns their native events into playback actions.
package source

import "errors"

// ErrUnplayable is reported when a player refuses a content identifier.
var ErrUnplayable = errors.New("this content could not be played")

// Kind selects the remote player implementation.
type Kind int

const (
	KindEmbed Kind = iota // embedded video player (music, soundscape)
	KindAudio             // plain audio element (narration)
)

// String returns the kind name used on the wire.
func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "embed"
}

// EventType is a native player event.
type EventType int

const (
	EventReady EventType = iota
	EventPlaying
	EventPaused
	EventEnded
	EventError
	EventTime
)

// String returns the event name.
func (e EventType) String() string {
	switch e {
	case EventReady:
		return "ready"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventTime:
		return "time"
	default:
		return "unknown"
	}
}

// ParseEventType maps a wire name to an EventType.
func ParseEventType(s string) (EventType, bool) {
	for e := EventReady; e <= EventTime; e++ {
		if e.String() == s {
			return e, true
		}
	}
	return 0, false
}

// Event is delivered by a player, possibly from any goroutine.
type Event struct {
	Type     EventType
	Code     int // error code for EventError
	Time     float64
	Duration float64
	Message  string
}

// Player is a handle to one remote player instance. Construction is
// asynchronous: the player emits EventReady once it can take commands.
type Player interface {
	Load(media string, start float64, autoplay bool) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(volume int) error
	// Position returns the live position and duration; ok is false when
	// the player cannot answer.
	Position() (t, duration float64, ok bool)
	Alive() bool
	Destroy() error
}

// Factory creates remote players.
type Factory interface {
	NewPlayer(kind Kind, onEvent func(Event)) (Player, error)
}

// Unplayable reports whether an error code means the content itself can
// never be played by this kind of player.
func Unplayable(kind Kind, code int) bool {
	if kind == KindAudio {
		// MEDIA_ERR_DECODE, MEDIA_ERR_SRC_NOT_SUPPORTED
		return code == 3 || code == 4
	}
	switch code {
	case 2, 5, 100, 101, 150:
		return true
	}
	return false
}
