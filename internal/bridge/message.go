package bridge

import (
	"encoding/json"

	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/playback"
)

// Daemon to host.
const (
	TypePlayerCreate   = "player/create"
	TypePlayerLoad     = "player/load"
	TypePlayerPlay     = "player/play"
	TypePlayerPause    = "player/pause"
	TypePlayerSeek     = "player/seek"
	TypePlayerVolume   = "player/volume"
	TypePlayerDestroy  = "player/destroy"
	TypeWakeAcquire    = "wakelock/acquire"
	TypeWakeRelease    = "wakelock/release"
	TypeSessionMeta    = "session/metadata"
	TypeSessionState   = "session/state"
	TypeSessionClear   = "session/clear"
	TypeKeepaliveStart = "keepalive/start"
	TypeKeepaliveStop  = "keepalive/stop"
	TypeState          = "state"
	TypeCommandResult  = "command/result"
)

// Host to daemon.
const (
	TypePlayerEvent = "player/event"
	TypeVisibility  = "host/visibility"
	TypeNavigate    = "host/navigate"
	TypeMediaAction = "media/action"
	TypeCommand     = "command"
)

// EventGone is a player event meaning the host discarded the player.
const EventGone = "gone"

// Message is the envelope for both directions. Only the fields relevant
// to Type are set.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// player/create, player/load, player/seek, player/volume
	Kind     string  `json:"kind,omitempty"`
	Media    string  `json:"media,omitempty"`
	Start    float64 `json:"start,omitempty"`
	Autoplay bool    `json:"autoplay,omitempty"`
	Seconds  float64 `json:"seconds,omitempty"`
	Volume   *int    `json:"volume,omitempty"`

	// player/event
	Event    string  `json:"event,omitempty"`
	Code     int     `json:"code,omitempty"`
	Time     float64 `json:"time,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Message  string  `json:"message,omitempty"`

	// host/visibility carries fresh positions keyed by player id
	Hidden    bool                `json:"hidden,omitempty"`
	Positions map[string]Position `json:"positions,omitempty"`

	// host/navigate
	Route  string `json:"route,omitempty"`
	Guided bool   `json:"guided,omitempty"`

	// media/action, session/state
	Action   string  `json:"action,omitempty"`
	State    string  `json:"state,omitempty"`
	Position float64 `json:"position,omitempty"`

	// session/metadata
	Metadata *platform.Metadata `json:"metadata,omitempty"`

	// command, command/result
	Ref     string          `json:"ref,omitempty"`
	Command string          `json:"command,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Error   string          `json:"error,omitempty"`

	// state
	Snapshot *playback.AudioState `json:"snapshot,omitempty"`
}

// Position is a player's playhead as reported by the host.
type Position struct {
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
}
