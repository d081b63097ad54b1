// Package lifecycle restores playback after the host hides the view or a
// foreground screen takes over.
package lifecycle

import (
	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/playback"
)

// State is the interruption state of one channel.
type State int

const (
	Stopped State = iota
	Active
	SuspendedByVisibility
	SuspendedByNavigation
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case SuspendedByVisibility:
		return "suspended_by_visibility"
	case SuspendedByNavigation:
		return "suspended_by_navigation"
	default:
		return "stopped"
	}
}

// Controller performs the mechanics the manager asks for. The engine
// implements it on top of the source adapters.
type Controller interface {
	Playing(ch playback.Channel) bool
	Pause(ch playback.Channel)
	Resume(ch playback.Channel)
	Alive(ch playback.Channel) bool
	// Resync re-queries a live player for its position and resumes it.
	Resync(ch playback.Channel)
	// Recreate rebuilds a torn-down player from the last known content
	// and position.
	Recreate(ch playback.Channel)
}

// Manager tracks one State per channel. It is confined to the engine loop.
type Manager struct {
	ctrl       Controller
	states     map[playback.Channel]State
	hidden     bool
	navigating bool
	governed   map[playback.Channel]bool
}

// NewManager returns a manager with every channel stopped.
func NewManager(ctrl Controller) *Manager {
	m := &Manager{
		ctrl:     ctrl,
		states:   make(map[playback.Channel]State, len(playback.Channels)),
		governed: make(map[playback.Channel]bool),
	}
	for _, ch := range playback.Channels {
		m.states[ch] = Stopped
	}
	return m
}

// State returns the channel's current state.
func (m *Manager) State(ch playback.Channel) State { return m.states[ch] }

// Hidden reports whether the host is in the background.
func (m *Manager) Hidden() bool { return m.hidden }

// Navigating reports whether a foreground screen holds exclusivity.
func (m *Manager) Navigating() bool { return m.navigating }

// Loaded leaves Stopped for a freshly loaded channel. A load that lands
// while navigation governs the channel waits for ExitNavigation.
func (m *Manager) Loaded(ch playback.Channel) {
	if m.navigating && m.governed[ch] {
		m.set(ch, SuspendedByNavigation)
		return
	}
	m.set(ch, Active)
}

// Stopped marks the channel terminal until the next Loaded.
func (m *Manager) Stopped(ch playback.Channel) { m.set(ch, Stopped) }

// Paused cancels any pending restoration for a channel the user paused.
func (m *Manager) Paused(ch playback.Channel) {
	if st := m.states[ch]; st == SuspendedByNavigation || st == SuspendedByVisibility {
		m.set(ch, Active)
	}
}

// Defer reports whether a resume for ch must wait for ExitNavigation,
// recording it if so.
func (m *Manager) Defer(ch playback.Channel) bool {
	if !m.navigating || !m.governed[ch] || m.states[ch] == Stopped {
		return false
	}
	m.set(ch, SuspendedByNavigation)
	return true
}

// Background records which channels were playing when the host hid.
// No command is issued; the platform may or may not keep them running.
func (m *Manager) Background() {
	if m.hidden {
		return
	}
	m.hidden = true
	for _, ch := range playback.Channels {
		if m.states[ch] == Active && m.ctrl.Playing(ch) {
			m.set(ch, SuspendedByVisibility)
		}
	}
}

// Foreground restores channels suspended by visibility, resyncing live
// players and recreating those the platform tore down.
func (m *Manager) Foreground() {
	if !m.hidden {
		return
	}
	m.hidden = false
	for _, ch := range playback.Channels {
		if m.states[ch] != SuspendedByVisibility {
			continue
		}
		if m.ctrl.Alive(ch) {
			m.ctrl.Resync(ch)
		} else {
			log.Info().Str("channel", ch.String()).Msg("Player lost while hidden, recreating")
			m.ctrl.Recreate(ch)
		}
		m.set(ch, Active)
	}
}

// EnterNavigation pauses the playing channels among chs until
// ExitNavigation.
func (m *Manager) EnterNavigation(chs ...playback.Channel) {
	if m.navigating {
		return
	}
	m.navigating = true
	clear(m.governed)
	for _, ch := range chs {
		m.governed[ch] = true
		st := m.states[ch]
		if (st == Active || st == SuspendedByVisibility) && m.ctrl.Playing(ch) {
			m.ctrl.Pause(ch)
			m.set(ch, SuspendedByNavigation)
		}
	}
}

// ExitNavigation resumes exactly the channels suspended by navigation.
func (m *Manager) ExitNavigation() {
	if !m.navigating {
		return
	}
	m.navigating = false
	for _, ch := range playback.Channels {
		if m.states[ch] != SuspendedByNavigation {
			continue
		}
		if m.ctrl.Alive(ch) {
			m.ctrl.Resume(ch)
		} else {
			m.ctrl.Recreate(ch)
		}
		m.set(ch, Active)
	}
	clear(m.governed)
}

// Observe keeps channel states in line with committed transitions.
func (m *Manager) Observe(t playback.Transition) {
	switch t.Action.Type {
	case playback.MusicLoad, playback.SoundscapeLoad, playback.NarrationLoad:
		m.Loaded(t.Action.Type.Channel())
	case playback.StopMusic, playback.StopSoundscape, playback.StopNarration:
		m.Stopped(t.Action.Type.Channel())
	case playback.StopAll:
		// ends any session too; nothing is left to restore
		m.navigating = false
		clear(m.governed)
		for _, ch := range playback.Channels {
			m.Stopped(ch)
		}
	case playback.PauseMusic, playback.PauseSoundscape, playback.PauseNarration:
		m.Paused(t.Action.Type.Channel())
	case playback.NarrationEnded:
		m.Stopped(playback.ChannelNarration)
	}
}

func (m *Manager) set(ch playback.Channel, st State) {
	if m.states[ch] == st {
		return
	}
	log.Debug().Str("channel", ch.String()).Str("from", m.states[ch].String()).Str("to", st.String()).
		Msg("Lifecycle transition")
	m.states[ch] = st
}
