package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/catalog"
	"github.com/fjaycandido99-afk/momentum/internal/lifecycle"
	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/playback"
)

// defaultNarrationTitle is shown when a narration clip has no title.
const defaultNarrationTitle = "Guided session"

// --- Music ---

// PlayMusic plays a track from genre, replacing any current music and
// dropping any playlist.
func (e *Engine) PlayMusic(ctx context.Context, genre string) error {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return fmt.Errorf("%w: genre required", ErrInvalid)
	}
	track, err := e.catalog.Music(ctx, genre)
	if err != nil {
		return err
	}
	return e.call(func() error {
		e.genre = genre
		e.playlist = nil
		e.resetFallback(playback.ChannelMusic)
		return e.loadMusic(track, 0)
	})
}

// PlayPlaylist plays ids in order, advancing on each track's end.
func (e *Engine) PlayPlaylist(ctx context.Context, ids []string) error {
	var queue []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			queue = append(queue, id)
		}
	}
	if len(queue) == 0 {
		return fmt.Errorf("%w: empty playlist", ErrInvalid)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.call(func() error {
		e.genre = ""
		e.playlist = queue
		e.pos = 0
		e.resetFallback(playback.ChannelMusic)
		return e.loadMusic(e.trackFor(queue[0]), 0)
	})
}

// PauseMusic pauses music and holds it for resume.
func (e *Engine) PauseMusic() error {
	return e.call(func() error { return e.pause(playback.ChannelMusic, playback.PauseMusic) })
}

// ResumeMusic resumes held music. During a guided session the resume is
// deferred until the session ends.
func (e *Engine) ResumeMusic() error {
	return e.call(func() error { return e.resume(playback.ChannelMusic, playback.ResumeMusic) })
}

// StopMusic stops music and destroys its player.
func (e *Engine) StopMusic() error {
	return e.call(func() error {
		e.playlist = nil
		e.store.Dispatch(playback.Action{Type: playback.StopMusic})
		e.adapters[playback.ChannelMusic].Stop()
		return nil
	})
}

// SkipMusic advances the playlist, or picks another track from the
// current genre.
func (e *Engine) SkipMusic(ctx context.Context) error {
	var (
		genre, current string
		gen            uint64
		advanced       bool
	)
	err := e.call(func() error {
		if e.advancePlaylist() {
			advanced = true
			return nil
		}
		st := e.store.State()
		if e.genre == "" || st.Music.VideoID == "" {
			return ErrNothingQueued
		}
		genre, current, gen = e.genre, st.Music.VideoID, st.Music.Generation
		return nil
	})
	if err != nil || advanced {
		return err
	}

	track, err := e.catalog.Music(ctx, genre, current)
	if err != nil {
		return err
	}
	return e.call(func() error {
		if e.store.State().Music.Generation != gen {
			return ErrSuperseded
		}
		e.resetFallback(playback.ChannelMusic)
		return e.loadMusic(track, 0)
	})
}

// SetMusicVolume sets the music volume (0-100).
func (e *Engine) SetMusicVolume(v int) error { return e.setVolume(playback.ChannelMusic, v) }

// --- Soundscape ---

// PlaySoundscape plays a track for the soundscape id.
func (e *Engine) PlaySoundscape(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: soundscape required", ErrInvalid)
	}
	track, err := e.catalog.Soundscape(ctx, id)
	if err != nil {
		return err
	}
	return e.call(func() error {
		e.scapeID = id
		e.resetFallback(playback.ChannelSoundscape)
		return e.loadSoundscape(track)
	})
}

// PauseSoundscape pauses the soundscape and holds it for resume.
func (e *Engine) PauseSoundscape() error {
	return e.call(func() error { return e.pause(playback.ChannelSoundscape, playback.PauseSoundscape) })
}

// ResumeSoundscape resumes a held soundscape, deferred during a session.
func (e *Engine) ResumeSoundscape() error {
	return e.call(func() error { return e.resume(playback.ChannelSoundscape, playback.ResumeSoundscape) })
}

// StopSoundscape stops the soundscape and destroys its player.
func (e *Engine) StopSoundscape() error {
	return e.call(func() error {
		e.store.Dispatch(playback.Action{Type: playback.StopSoundscape})
		e.adapters[playback.ChannelSoundscape].Stop()
		return nil
	})
}

// SkipSoundscape picks another track for the current soundscape.
func (e *Engine) SkipSoundscape(ctx context.Context) error {
	var (
		id, current string
		gen         uint64
	)
	err := e.call(func() error {
		st := e.store.State()
		if e.scapeID == "" || st.Soundscape.VideoID == "" {
			return ErrNothingQueued
		}
		id, current, gen = e.scapeID, st.Soundscape.VideoID, st.Soundscape.Generation
		return nil
	})
	if err != nil {
		return err
	}

	track, err := e.catalog.Soundscape(ctx, id, current)
	if err != nil {
		return err
	}
	return e.call(func() error {
		if e.store.State().Soundscape.Generation != gen {
			return ErrSuperseded
		}
		e.resetFallback(playback.ChannelSoundscape)
		return e.loadSoundscape(track)
	})
}

// SetSoundscapeVolume sets the soundscape volume (0-100).
func (e *Engine) SetSoundscapeVolume(v int) error { return e.setVolume(playback.ChannelSoundscape, v) }

// --- Narration ---

// PlayNarration plays a narration clip. Narration is never deferred by a
// guided session; it is the session.
func (e *Engine) PlayNarration(url string, durationHint float64, title string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("%w: narration url required", ErrInvalid)
	}
	if durationHint < 0 {
		durationHint = 0
	}
	if title == "" {
		title = defaultNarrationTitle
	}
	return e.call(func() error {
		return e.loadNarration(url, durationHint, title, 0)
	})
}

// PauseNarration pauses narration.
func (e *Engine) PauseNarration() error {
	return e.call(func() error { return e.pause(playback.ChannelNarration, playback.PauseNarration) })
}

// ResumeNarration resumes paused narration.
func (e *Engine) ResumeNarration() error {
	return e.call(func() error {
		if e.store.State().Narration.SourceURL == "" {
			return ErrNothingQueued
		}
		e.resumePlayer(playback.ChannelNarration)
		return nil
	})
}

// StopNarration stops narration and destroys its player.
func (e *Engine) StopNarration() error {
	return e.call(func() error {
		e.store.Dispatch(playback.Action{Type: playback.StopNarration})
		e.adapters[playback.ChannelNarration].Stop()
		return nil
	})
}

// SetNarrationVolume sets the narration volume (0-100).
func (e *Engine) SetNarrationVolume(v int) error { return e.setVolume(playback.ChannelNarration, v) }

// --- Sessions ---

// EnterGuidedSession pauses playing music and soundscape and records
// them for restoration. A channel still loading when the session starts
// that begins playing during it is silenced and restored on exit too.
func (e *Engine) EnterGuidedSession() error {
	return e.call(func() error {
		if e.store.State().SuspendedForForeground.Active {
			return nil
		}
		e.life.EnterNavigation(playback.ChannelMusic, playback.ChannelSoundscape)
		e.store.Dispatch(playback.Action{Type: playback.EnterSession})
		return nil
	})
}

// ExitGuidedSession resumes exactly the channels the session silenced.
func (e *Engine) ExitGuidedSession() error {
	return e.call(func() error {
		if !e.store.State().SuspendedForForeground.Active {
			return nil
		}
		e.store.Dispatch(playback.Action{Type: playback.ExitSession})
		e.life.ExitNavigation()
		return nil
	})
}

// StopAll stops every channel. Calling it again changes nothing.
func (e *Engine) StopAll() error {
	return e.call(func() error {
		e.playlist = nil
		e.store.Dispatch(playback.Action{Type: playback.StopAll})
		for _, ch := range playback.Channels {
			e.adapters[ch].Stop()
		}
		return nil
	})
}

// --- Host inputs ---

// HostVisibility reports the host moving to the background or back.
func (e *Engine) HostVisibility(hidden bool) {
	e.post(func() {
		if hidden {
			e.life.Background()
		} else {
			e.life.Foreground()
		}
	})
}

// HostAttached rebuilds, on a newly attached host, the players that were
// playing or still waiting to start. Channels the user paused stay down
// until resumed; channels suspended by visibility wait for the host to
// report itself visible.
func (e *Engine) HostAttached() {
	e.post(func() {
		st := e.store.State()
		for _, ch := range playback.Channels {
			a := e.adapters[ch]
			if a.Alive() || st.Media(ch) == "" || st.Err(ch) != "" ||
				e.life.State(ch) == lifecycle.SuspendedByVisibility {
				continue
			}
			if st.Active(ch) || !a.Ready() {
				e.recreate(ch)
			}
		}
	})
}

// HostNavigation reports a route change. Guided routes take exclusive
// attention until the host navigates to a non-guided route.
func (e *Engine) HostNavigation(route string, guided bool) error {
	log.Debug().Str("route", route).Bool("guided", guided).Msg("Host navigation")
	if guided {
		return e.EnterGuidedSession()
	}
	return e.ExitGuidedSession()
}

// Transport applies a now-playing transport action to the channel that
// owns the surface, exactly as the matching local command would.
func (e *Engine) Transport(a platform.Action) {
	owner := e.store.State().Owner()
	var err error
	switch a.Kind {
	case platform.ActionPlay:
		err = e.resumeChannel(owner)
	case platform.ActionPause:
		err = e.pauseChannel(owner)
	case platform.ActionSeekTo:
		err = e.call(func() error {
			if owner != playback.ChannelMusic && owner != playback.ChannelNarration {
				return ErrNothingQueued
			}
			e.adapters[owner].Seek(a.Position)
			return nil
		})
	case platform.ActionNextTrack:
		switch owner {
		case playback.ChannelMusic:
			err = e.SkipMusic(context.Background())
		case playback.ChannelSoundscape:
			err = e.SkipSoundscape(context.Background())
		default:
			err = ErrNothingQueued
		}
	case platform.ActionStop:
		err = e.stopChannel(owner)
	}
	if err != nil {
		log.Warn().Err(err).Str("action", a.Kind.String()).Str("owner", owner.String()).
			Msg("Transport action failed")
	}
}

type channelCommands struct {
	pause, resume, stop func() error
}

// commandsFor returns the pause, resume and stop commands of a channel.
func (e *Engine) commandsFor(ch playback.Channel) (channelCommands, bool) {
	c, ok := map[playback.Channel]channelCommands{
		playback.ChannelMusic:      {e.PauseMusic, e.ResumeMusic, e.StopMusic},
		playback.ChannelSoundscape: {e.PauseSoundscape, e.ResumeSoundscape, e.StopSoundscape},
		playback.ChannelNarration:  {e.PauseNarration, e.ResumeNarration, e.StopNarration},
	}[ch]
	return c, ok
}

func (e *Engine) resumeChannel(ch playback.Channel) error {
	if c, ok := e.commandsFor(ch); ok {
		return c.resume()
	}
	return ErrNothingQueued
}

func (e *Engine) pauseChannel(ch playback.Channel) error {
	if c, ok := e.commandsFor(ch); ok {
		return c.pause()
	}
	return ErrNothingQueued
}

func (e *Engine) stopChannel(ch playback.Channel) error {
	if c, ok := e.commandsFor(ch); ok {
		return c.stop()
	}
	return ErrNothingQueued
}

// --- loop helpers ---

func (e *Engine) pause(ch playback.Channel, t playback.ActionType) error {
	if e.store.State().Media(ch) == "" {
		return ErrNothingQueued
	}
	e.store.Dispatch(playback.Action{Type: t})
	e.adapters[ch].Pause()
	return nil
}

func (e *Engine) resume(ch playback.Channel, t playback.ActionType) error {
	if e.store.State().Media(ch) == "" {
		return ErrNothingQueued
	}
	e.store.Dispatch(playback.Action{Type: t})
	if e.life.Defer(ch) {
		log.Debug().Str("channel", ch.String()).Msg("Resume deferred until session ends")
		return nil
	}
	e.resumePlayer(ch)
	return nil
}

func (e *Engine) setVolume(ch playback.Channel, v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: volume %d out of range", ErrInvalid, v)
	}
	return e.call(func() error {
		e.store.Dispatch(playback.Action{Type: playback.SetVolume, Channel: ch, Volume: v})
		e.adapters[ch].SetVolume(v)
		return nil
	})
}

func (e *Engine) trackFor(id string) catalog.Track {
	if e.catalog == nil {
		return catalog.Track{ID: id, Title: id}
	}
	if t, ok := e.catalog.Track(id); ok {
		return t
	}
	return catalog.Track{ID: id, Title: id}
}
