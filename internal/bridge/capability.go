package bridge

import "github.com/fjaycandido99-afk/momentum/internal/platform"

// WakeLock returns the host's screen wake lock.
func (h *Host) WakeLock() platform.WakeLock { return wakeLock{h} }

// NowPlaying returns the host's media session surface.
func (h *Host) NowPlaying() platform.NowPlaying { return nowPlaying{h} }

// Keepalive returns the host's looping keepalive clip.
func (h *Host) Keepalive() platform.Keepalive { return keepalive{h} }

type wakeLock struct{ h *Host }

func (w wakeLock) Acquire() error { return w.h.send(Message{Type: TypeWakeAcquire}) }
func (w wakeLock) Release() error { return w.h.send(Message{Type: TypeWakeRelease}) }

type nowPlaying struct{ h *Host }

func (n nowPlaying) SetMetadata(m platform.Metadata) error {
	return n.h.send(Message{Type: TypeSessionMeta, Metadata: &m})
}

func (n nowPlaying) SetPlaybackState(st platform.PlaybackState, position float64) error {
	return n.h.send(Message{Type: TypeSessionState, State: st.String(), Position: position})
}

func (n nowPlaying) Clear() error { return n.h.send(Message{Type: TypeSessionClear}) }

type keepalive struct{ h *Host }

func (k keepalive) Start() error {
	return k.h.send(Message{Type: TypeKeepaliveStart, Media: k.h.opts.ClipURL})
}

func (k keepalive) Stop() error { return k.h.send(Message{Type: TypeKeepaliveStop}) }
