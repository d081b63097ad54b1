package source

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/playback"
)

type actionSet struct {
	loaded, playing, paused, ended, failed playback.ActionType
}

var channelActions = map[playback.Channel]actionSet{
	playback.ChannelMusic: {
		playback.MusicLoaded, playback.MusicPlaying, playback.MusicPaused,
		playback.MusicEnded, playback.MusicError,
	},
	playback.ChannelSoundscape: {
		playback.SoundscapeLoaded, playback.SoundscapePlaying, playback.SoundscapePaused,
		playback.SoundscapeEnded, playback.SoundscapeError,
	},
	playback.ChannelNarration: {
		playback.ActionNone, playback.NarrationPlaying, playback.NarrationPaused,
		playback.NarrationEnded, playback.NarrationError,
	},
}

// Config wires an adapter to its channel.
type Config struct {
	Channel  playback.Channel
	Kind     Kind
	Factory  Factory
	Dispatch func(playback.Action)
	// Post schedules f on the coordinator loop. Player events are always
	// handled through it.
	Post func(f func())
	// Loop replays from the start on ended unless a next-track callback
	// takes over.
	Loop bool
	// Progress enables MUSIC_TIME_UPDATE reporting from Poll and time events.
	Progress bool
}

type command struct {
	name string
	run  func(Player) error
}

// Adapter drives one channel's remote player. It is not safe for
// concurrent use; every method runs on the coordinator loop.
type Adapter struct {
	cfg     Config
	actions actionSet

	gen     uint64
	player  Player
	ready   bool
	dead    bool
	pending []command

	media        string
	volume       int
	hasVolume    bool
	lastTime     float64
	lastDuration float64

	nextTrack func() bool
}

// NewAdapter creates an adapter with no player; the player is created on
// the first Load.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, actions: channelActions[cfg.Channel]}
}

// Channel returns the adapter's channel.
func (a *Adapter) Channel() playback.Channel { return a.cfg.Channel }

// Generation returns the generation of the current player.
func (a *Adapter) Generation() uint64 { return a.gen }

// MediaID returns the content identifier last loaded.
func (a *Adapter) MediaID() string { return a.media }

// Ready reports whether the current player signalled ready.
func (a *Adapter) Ready() bool { return a.ready }

// Pending returns the number of queued commands awaiting ready.
func (a *Adapter) Pending() int { return len(a.pending) }

// SetNextTrack registers the callback invoked on ended. It returns true
// when it handled the end (advanced to another track); false falls back
// to looping.
func (a *Adapter) SetNextTrack(fn func() bool) { a.nextTrack = fn }

// Load destroys any existing player and creates a new one for media,
// tagged with gen. Commands issued before the player is ready are queued.
func (a *Adapter) Load(gen uint64, media string, start float64, autoplay bool) error {
	a.destroy()
	a.gen = gen
	a.media = media
	a.dead = false
	a.lastTime = start
	a.lastDuration = 0

	p, err := a.cfg.Factory.NewPlayer(a.cfg.Kind, a.events(gen))
	if err != nil {
		return fmt.Errorf("create %s player: %w", a.cfg.Channel, err)
	}
	a.player = p

	if a.hasVolume {
		v := a.volume
		a.exec("volume", func(p Player) error { return p.SetVolume(v) })
	}
	a.exec("load", func(p Player) error { return p.Load(media, start, autoplay) })

	log.Debug().Str("channel", a.cfg.Channel.String()).Uint64("gen", gen).Str("media", media).
		Msg("Player created")
	return nil
}

// Play resumes playback.
func (a *Adapter) Play() { a.exec("play", Player.Play) }

// Pause pauses playback.
func (a *Adapter) Pause() { a.exec("pause", Player.Pause) }

// Seek moves the playhead.
func (a *Adapter) Seek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	a.lastTime = seconds
	a.exec("seek", func(p Player) error { return p.Seek(seconds) })
}

// SetVolume sets the volume, remembered across player instances.
func (a *Adapter) SetVolume(v int) {
	v = playback.ClampVolume(v)
	a.volume = v
	a.hasVolume = true
	a.exec("volume", func(p Player) error { return p.SetVolume(v) })
}

// Stop destroys the player so that no further events can arrive from it.
func (a *Adapter) Stop() {
	a.destroy()
	a.media = ""
	a.dead = false
	a.lastTime = 0
	a.lastDuration = 0
}

// Alive reports whether the underlying player still exists.
func (a *Adapter) Alive() bool {
	return a.player != nil && a.player.Alive()
}

// Position re-queries the live player, falling back to the last reported
// position when it cannot answer.
func (a *Adapter) Position() (t, duration float64, live bool) {
	if a.player != nil && a.player.Alive() {
		if t, d, ok := a.player.Position(); ok {
			a.lastTime, a.lastDuration = t, d
			return t, d, true
		}
	}
	return a.lastTime, a.lastDuration, false
}

// LastPosition returns the last position reported by the player.
func (a *Adapter) LastPosition() float64 { return a.lastTime }

// Poll reports the current position as a time update.
func (a *Adapter) Poll() {
	if !a.cfg.Progress || a.player == nil || !a.ready || a.dead {
		return
	}
	t, d, ok := a.player.Position()
	if !ok {
		return
	}
	a.lastTime, a.lastDuration = t, d
	a.cfg.Dispatch(playback.Action{Type: playback.MusicTimeUpdate, Gen: a.gen, CurrentTime: t, Duration: d})
}

func (a *Adapter) events(gen uint64) func(Event) {
	return func(ev Event) {
		a.cfg.Post(func() { a.handle(gen, ev) })
	}
}

func (a *Adapter) handle(gen uint64, ev Event) {
	if gen != a.gen || a.player == nil {
		log.Debug().Str("channel", a.cfg.Channel.String()).Uint64("gen", gen).
			Uint64("current", a.gen).Str("event", ev.Type.String()).Msg("Dropping stale player event")
		return
	}

	switch ev.Type {
	case EventReady:
		a.markReady()
	case EventPlaying:
		a.markReady()
		a.report(a.actions.playing)
	case EventPaused:
		a.report(a.actions.paused)
	case EventTime:
		a.lastTime, a.lastDuration = ev.Time, ev.Duration
		if a.cfg.Progress {
			a.cfg.Dispatch(playback.Action{
				Type: playback.MusicTimeUpdate, Gen: gen, CurrentTime: ev.Time, Duration: ev.Duration,
			})
		}
	case EventEnded:
		a.report(a.actions.ended)
		if a.nextTrack != nil && a.nextTrack() {
			return
		}
		if a.cfg.Loop {
			a.Seek(0)
			a.Play()
		}
	case EventError:
		if !Unplayable(a.cfg.Kind, ev.Code) {
			log.Warn().Str("channel", a.cfg.Channel.String()).Int("code", ev.Code).Str("msg", ev.Message).
				Msg("Player error")
			return
		}
		log.Warn().Str("channel", a.cfg.Channel.String()).Str("media", a.media).Int("code", ev.Code).
			Msg("Content cannot be played")
		a.dead = true
		a.pending = nil
		a.cfg.Dispatch(playback.Action{Type: a.actions.failed, Gen: gen, Err: ErrUnplayable.Error()})
	}
}

// markReady flips readiness once per player and flushes queued commands.
func (a *Adapter) markReady() {
	if a.ready {
		return
	}
	a.ready = true
	a.report(a.actions.loaded)

	pending := a.pending
	a.pending = nil
	for _, c := range pending {
		a.exec(c.name, c.run)
	}
}

func (a *Adapter) report(t playback.ActionType) {
	if t == playback.ActionNone {
		return
	}
	a.cfg.Dispatch(playback.Reported(t, a.gen))
}

func (a *Adapter) exec(name string, run func(Player) error) {
	if a.player == nil || a.dead {
		log.Debug().Str("channel", a.cfg.Channel.String()).Str("cmd", name).Msg("No player, command ignored")
		return
	}
	if !a.ready {
		a.pending = append(a.pending, command{name: name, run: run})
		return
	}
	if err := run(a.player); err != nil {
		log.Warn().Err(err).Str("channel", a.cfg.Channel.String()).Str("cmd", name).Msg("Player command failed")
	}
}

func (a *Adapter) destroy() {
	if a.player != nil {
		if err := a.player.Destroy(); err != nil {
			log.Warn().Err(err).Str("channel", a.cfg.Channel.String()).Msg("Player destroy failed")
		}
	}
	a.player = nil
	a.ready = false
	a.pending = nil
}
