// Package platform owns the device-level resources shared by every
// channel: the screen wake lock, the now-playing surface and the
// keepalive stream.
package platform

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by capabilities the host cannot provide.
var ErrUnsupported = errors.New("capability unsupported")

// WakeLock keeps the screen awake while held.
type WakeLock interface {
	Acquire() error
	Release() error
}

// PlaybackState is what the now-playing surface displays.
type PlaybackState int

const (
	StateNone PlaybackState = iota
	StatePlaying
	StatePaused
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "none"
	}
}

// Metadata describes the content shown on the now-playing surface.
type Metadata struct {
	Title    string  `json:"title"`
	Source   string  `json:"source,omitempty"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration,omitempty"`
}

// NowPlaying is the lock-screen / notification media surface.
type NowPlaying interface {
	SetMetadata(m Metadata) error
	SetPlaybackState(st PlaybackState, position float64) error
	Clear() error
}

// Keepalive is the near-silent stream that stops the host throttling
// background timers.
type Keepalive interface {
	Start() error
	Stop() error
}

// ActionKind is a transport action from the now-playing surface.
type ActionKind int

const (
	ActionPlay ActionKind = iota
	ActionPause
	ActionSeekTo
	ActionNextTrack
	ActionStop
)

var actionNames = [...]string{"play", "pause", "seekto", "nexttrack", "stop"}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "unknown"
}

// ParseAction maps a transport action name to its kind.
func ParseAction(s string) (ActionKind, error) {
	for i, n := range actionNames {
		if n == s {
			return ActionKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown media action %q", s)
}

// Action is one transport request.
type Action struct {
	Kind     ActionKind
	Position float64 // seekto target in seconds
}

// NoopWakeLock is used when the host offers no wake lock.
type NoopWakeLock struct{}

func (NoopWakeLock) Acquire() error { return nil }
func (NoopWakeLock) Release() error { return nil }

// NoopNowPlaying is used when the host offers no media surface.
type NoopNowPlaying struct{}

func (NoopNowPlaying) SetMetadata(Metadata) error                    { return nil }
func (NoopNowPlaying) SetPlaybackState(PlaybackState, float64) error { return nil }
func (NoopNowPlaying) Clear() error                                  { return nil }

// NoopKeepalive is used when no keepalive stream is configured.
type NoopKeepalive struct{}

func (NoopKeepalive) Start() error { return nil }
func (NoopKeepalive) Stop() error  { return nil }

// MultiKeepalive drives several keepalive streams together. Every stream
// is started or stopped even if an earlier one fails.
type MultiKeepalive []Keepalive

func (m MultiKeepalive) Start() error {
	var errs []error
	for _, k := range m {
		errs = append(errs, k.Start())
	}
	return errors.Join(errs...)
}

func (m MultiKeepalive) Stop() error {
	var errs []error
	for _, k := range m {
		errs = append(errs, k.Stop())
	}
	return errors.Join(errs...)
}

var (
	_ WakeLock   = NoopWakeLock{}
	_ NowPlaying = NoopNowPlaying{}
	_ Keepalive  = NoopKeepalive{}
	_ Keepalive  = MultiKeepalive(nil)
)
