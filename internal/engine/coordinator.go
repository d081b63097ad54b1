package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/catalog"
	"github.com/fjaycandido99-afk/momentum/internal/lifecycle"
	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/playback"
	"github.com/fjaycandido99-afk/momentum/internal/source"
)

var errorActions = map[playback.Channel]playback.ActionType{
	playback.ChannelMusic:      playback.MusicError,
	playback.ChannelSoundscape: playback.SoundscapeError,
	playback.ChannelNarration:  playback.NarrationError,
}

// observe fans every committed transition out. It runs inside Dispatch,
// so nothing here may dispatch; follow-up work is posted.
func (e *Engine) observe(t playback.Transition) {
	e.life.Observe(t)
	e.coordinate(t)
	e.platform.Sync(t.Next)
	e.hub.publish(t.Next)
}

func (e *Engine) coordinate(t playback.Transition) {
	ch := t.Action.Type.Channel()
	switch t.Action.Type {
	case playback.MusicPlaying, playback.SoundscapePlaying:
		if t.Action.Gen != t.Next.Generation(ch) {
			return
		}
		if t.Next.SuspendedForForeground.Active {
			// started on its own during a session (autoplay raced the session)
			log.Debug().Str("channel", ch.String()).Msg("Silencing channel during guided session")
			e.adapters[ch].Pause()
			e.life.Defer(ch)
			return
		}
		e.resetFallback(ch)
	case playback.MusicError, playback.SoundscapeError:
		if t.Action.Gen != t.Next.Generation(ch) || t.Action.Err != source.ErrUnplayable.Error() {
			return
		}
		gen, media := t.Action.Gen, t.Prev.Media(ch)
		e.post(func() { e.fallback(ch, gen, media) })
	case playback.NarrationError:
		log.Warn().Str("url", t.Prev.Narration.SourceURL).Str("err", t.Action.Err).Msg("Narration failed")
	}
}

// fallback replaces unplayable content with another pick, excluding every
// id that already failed. Once the budget is spent the channel keeps its
// error and the other channels carry on.
func (e *Engine) fallback(ch playback.Channel, gen uint64, media string) {
	if e.store.State().Generation(ch) != gen {
		return
	}
	e.failed[ch] = append(e.failed[ch], media)
	if e.fallbacks[ch] >= e.cfg.MaxFallbacks {
		log.Warn().Str("channel", ch.String()).Strs("failed", e.failed[ch]).Msg("No playable fallback, giving up")
		e.resetFallback(ch)
		return
	}
	e.fallbacks[ch]++

	var (
		track catalog.Track
		err   error
	)
	switch ch {
	case playback.ChannelMusic:
		if len(e.playlist) > 0 {
			if !e.advancePlaylist() {
				log.Warn().Msg("Playlist exhausted after unplayable track")
			}
			return
		}
		if e.genre == "" {
			return
		}
		track, err = e.catalog.Music(context.Background(), e.genre, e.failed[ch]...)
	case playback.ChannelSoundscape:
		if e.scapeID == "" {
			return
		}
		track, err = e.catalog.Soundscape(context.Background(), e.scapeID, e.failed[ch]...)
	default:
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("channel", ch.String()).Msg("Fallback lookup failed")
		return
	}

	log.Info().Str("channel", ch.String()).Str("failed", media).Str("media", track.ID).
		Int("attempt", e.fallbacks[ch]).Msg("Falling back to another track")
	if ch == playback.ChannelMusic {
		err = e.loadMusic(track, 0)
	} else {
		err = e.loadSoundscape(track)
	}
	if err != nil {
		log.Warn().Err(err).Str("channel", ch.String()).Msg("Fallback load failed")
	}
}

func (e *Engine) resetFallback(ch playback.Channel) {
	delete(e.failed, ch)
	delete(e.fallbacks, ch)
}

// advancePlaylist loads the next queued track. It returns false when no
// queue is registered or the queue is exhausted, in which case the queue
// is dropped and the adapter loops the current track.
func (e *Engine) advancePlaylist() bool {
	if len(e.playlist) == 0 {
		return false
	}
	e.pos++
	if e.pos >= len(e.playlist) {
		log.Info().Int("tracks", len(e.playlist)).Msg("Playlist finished")
		e.playlist = nil
		return false
	}
	if err := e.continueMusic(e.trackFor(e.playlist[e.pos])); err != nil {
		log.Warn().Err(err).Msg("Playlist advance failed")
	}
	return true
}

func (e *Engine) loadMusic(track catalog.Track, start float64) error {
	return e.startMusic(playback.Action{
		Type: playback.MusicLoad, Media: track.ID, CurrentTime: start, Duration: track.Duration,
	}, track)
}

// continueMusic loads the next track without letting the platform treat
// the gap as a stop.
func (e *Engine) continueMusic(track catalog.Track) error {
	return e.startMusic(playback.Action{
		Type: playback.MusicLoad, Media: track.ID, Duration: track.Duration, Continue: true,
	}, track)
}

func (e *Engine) startMusic(load playback.Action, track catalog.Track) error {
	st := e.store.Dispatch(load)
	e.platform.SetMetadata(playback.ChannelMusic, platform.Metadata{
		Title: track.Title, Source: track.Genre, Duration: track.Duration,
	})
	return e.startPlayer(playback.ChannelMusic, st.Music.Generation, track.ID, load.CurrentTime)
}

func (e *Engine) loadSoundscape(track catalog.Track) error {
	st := e.store.Dispatch(playback.Action{Type: playback.SoundscapeLoad, Media: track.ID})
	e.platform.SetMetadata(playback.ChannelSoundscape, platform.Metadata{
		Title: track.Title, Source: track.Genre, Duration: track.Duration,
	})
	return e.startPlayer(playback.ChannelSoundscape, st.Soundscape.Generation, track.ID, 0)
}

func (e *Engine) loadNarration(url string, hint float64, title string, start float64) error {
	e.narrationTitle = title
	st := e.store.Dispatch(playback.Action{Type: playback.NarrationLoad, Media: url, Duration: hint})
	e.platform.SetMetadata(playback.ChannelNarration, platform.Metadata{
		Title: title, Source: "narration", Duration: hint,
	})
	return e.startPlayer(playback.ChannelNarration, st.Narration.Generation, url, start)
}

// startPlayer replaces the channel's player. Content loaded while a
// session governs the channel waits paused for the session to end.
func (e *Engine) startPlayer(ch playback.Channel, gen uint64, media string, start float64) error {
	autoplay := e.life.State(ch) != lifecycle.SuspendedByNavigation
	if err := e.adapters[ch].Load(gen, media, start, autoplay); err != nil {
		e.store.Dispatch(playback.Action{Type: errorActions[ch], Gen: gen, Err: err.Error()})
		return err
	}
	return nil
}

func (e *Engine) resumePlayer(ch playback.Channel) {
	if a := e.adapters[ch]; a.Alive() {
		a.Play()
		return
	}
	e.recreate(ch)
}

// resync re-queries a live player for its position, then resumes it.
func (e *Engine) resync(ch playback.Channel) {
	a := e.adapters[ch]
	if t, d, live := a.Position(); live && ch == playback.ChannelMusic {
		e.store.Dispatch(playback.Action{
			Type: playback.MusicTimeUpdate, Gen: a.Generation(), CurrentTime: t, Duration: d,
		})
	}
	a.Play()
}

// recreate rebuilds a lost player from the last known content and
// position.
func (e *Engine) recreate(ch playback.Channel) {
	st := e.store.State()
	media := st.Media(ch)
	if media == "" {
		return
	}
	start := e.adapters[ch].LastPosition()
	log.Info().Str("channel", ch.String()).Str("media", media).Float64("at", start).Msg("Recreating player")

	var err error
	switch ch {
	case playback.ChannelMusic:
		track := e.trackFor(media)
		if track.Duration == 0 {
			track.Duration = st.Music.Duration
		}
		err = e.loadMusic(track, start)
	case playback.ChannelSoundscape:
		err = e.loadSoundscape(e.trackFor(media))
	case playback.ChannelNarration:
		err = e.loadNarration(media, st.Narration.DurationHint, e.narrationTitle, start)
	}
	if err != nil {
		log.Warn().Err(err).Str("channel", ch.String()).Msg("Recreate failed")
	}
}

// controller exposes the engine's player mechanics to the lifecycle
// manager. Every call happens on the loop.
type controller struct{ e *Engine }

var _ lifecycle.Controller = controller{}

func (c controller) Playing(ch playback.Channel) bool { return c.e.store.State().Active(ch) }
func (c controller) Pause(ch playback.Channel)        { c.e.adapters[ch].Pause() }
func (c controller) Resume(ch playback.Channel)       { c.e.resumePlayer(ch) }
func (c controller) Alive(ch playback.Channel) bool   { return c.e.adapters[ch].Alive() }
func (c controller) Resync(ch playback.Channel)       { c.e.resync(ch) }
func (c controller) Recreate(ch playback.Channel)     { c.e.recreate(ch) }
