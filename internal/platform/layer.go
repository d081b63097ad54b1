package platform

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/playback"
)

// Layer keeps the device resources in line with the playback state.
// Capability failures are logged and never reach the caller.
type Layer struct {
	wake WakeLock
	np   NowPlaying
	keep Keepalive

	mu          sync.Mutex
	wakeHeld    bool
	keepRunning bool
	owner       playback.Channel
	shown       PlaybackState
	shownPos    float64
	meta        map[playback.Channel]Metadata
	handler     func(Action)
}

// NewLayer wires the given capabilities. Nil capabilities become no-ops.
func NewLayer(wake WakeLock, np NowPlaying, keep Keepalive) *Layer {
	if wake == nil {
		wake = NoopWakeLock{}
	}
	if np == nil {
		np = NoopNowPlaying{}
	}
	if keep == nil {
		keep = NoopKeepalive{}
	}
	return &Layer{
		wake: wake,
		np:   np,
		keep: keep,
		meta: make(map[playback.Channel]Metadata),
	}
}

// WakeHeld reports whether the layer considers the wake lock held.
func (l *Layer) WakeHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wakeHeld
}

// Owner returns the channel currently shown on the now-playing surface.
func (l *Layer) Owner() playback.Channel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Sync reconciles every resource with s.
func (l *Layer) Sync(s playback.AudioState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	playing := s.AnyActive()

	if playing && !l.wakeHeld {
		l.wakeHeld = true
		if err := l.wake.Acquire(); err != nil {
			log.Warn().Err(err).Msg("Wake lock unavailable")
		}
	} else if !playing && l.wakeHeld {
		l.wakeHeld = false
		if err := l.wake.Release(); err != nil {
			log.Warn().Err(err).Msg("Wake lock release failed")
		}
	}

	if playing && !l.keepRunning {
		l.keepRunning = true
		if err := l.keep.Start(); err != nil {
			log.Warn().Err(err).Msg("Keepalive start failed")
		}
	} else if !playing && l.keepRunning {
		l.keepRunning = false
		if err := l.keep.Stop(); err != nil {
			log.Warn().Err(err).Msg("Keepalive stop failed")
		}
	}

	owner := s.Owner()
	if owner != l.owner {
		l.transfer(owner)
	}
	if owner == playback.ChannelNone {
		return
	}

	st := StatePaused
	if s.Active(owner) {
		st = StatePlaying
	}
	if st != l.shown {
		l.shown = st
		var pos float64
		if owner == playback.ChannelMusic {
			pos = s.Music.CurrentTime
		}
		l.shownPos = pos
		if err := l.np.SetPlaybackState(st, pos); err != nil {
			log.Warn().Err(err).Str("channel", owner.String()).Msg("Now playing state update failed")
		}
	}
}

// transfer releases the surface from the old owner before the new owner
// takes it. Caller holds l.mu.
func (l *Layer) transfer(owner playback.Channel) {
	if l.owner != playback.ChannelNone {
		if err := l.np.Clear(); err != nil {
			log.Warn().Err(err).Str("channel", l.owner.String()).Msg("Now playing clear failed")
		}
	}
	log.Debug().Str("from", l.owner.String()).Str("to", owner.String()).Msg("Now playing owner changed")
	l.owner = owner
	l.shown = StateNone
	if owner == playback.ChannelNone {
		return
	}
	if err := l.np.SetMetadata(l.metadata(owner)); err != nil {
		log.Warn().Err(err).Str("channel", owner.String()).Msg("Now playing unavailable")
	}
}

func (l *Layer) metadata(ch playback.Channel) Metadata {
	m, ok := l.meta[ch]
	if !ok {
		m = Metadata{Title: ch.String()}
	}
	m.Channel = ch.String()
	return m
}

// SetMetadata records what a channel is playing. The surface is updated
// immediately when ch owns it.
func (l *Layer) SetMetadata(ch playback.Channel, m Metadata) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meta[ch] = m
	if ch != l.owner {
		return
	}
	if err := l.np.SetMetadata(l.metadata(ch)); err != nil {
		log.Warn().Err(err).Str("channel", ch.String()).Msg("Now playing unavailable")
	}
}

// SetActionHandler registers the receiver of transport actions.
func (l *Layer) SetActionHandler(fn func(Action)) {
	l.mu.Lock()
	l.handler = fn
	l.mu.Unlock()
}

// HandleAction routes a transport action from the host to the handler.
func (l *Layer) HandleAction(a Action) {
	l.mu.Lock()
	fn := l.handler
	l.mu.Unlock()
	if fn == nil {
		log.Debug().Str("action", a.Kind.String()).Msg("No transport handler")
		return
	}
	fn(a)
}

// Reassert replays every held resource, for a host that attached after
// the resources were taken.
func (l *Layer) Reassert() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.wakeHeld {
		if err := l.wake.Acquire(); err != nil {
			log.Warn().Err(err).Msg("Wake lock unavailable")
		}
	}
	if l.keepRunning {
		if err := l.keep.Start(); err != nil {
			log.Warn().Err(err).Msg("Keepalive start failed")
		}
	}
	if l.owner == playback.ChannelNone {
		return
	}
	if err := l.np.SetMetadata(l.metadata(l.owner)); err != nil {
		log.Warn().Err(err).Str("channel", l.owner.String()).Msg("Now playing unavailable")
		return
	}
	if l.shown != StateNone {
		if err := l.np.SetPlaybackState(l.shown, l.shownPos); err != nil {
			log.Warn().Err(err).Str("channel", l.owner.String()).Msg("Now playing state update failed")
		}
	}
}

// Release drops every resource, for shutdown.
func (l *Layer) Release() {
	l.Sync(playback.AudioState{})
}
