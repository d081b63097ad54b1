// Package engine coordinates the three audio channels. It is the only
// place that commands source adapters, and it runs every state change on
// one execution queue.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/catalog"
	"github.com/fjaycandido99-afk/momentum/internal/lifecycle"
	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/playback"
	"github.com/fjaycandido99-afk/momentum/internal/source"
)

var (
	// ErrClosed is returned by commands issued after the engine stopped.
	ErrClosed = errors.New("engine closed")
	// ErrNothingQueued is returned when a command needs content that was
	// never loaded.
	ErrNothingQueued = errors.New("nothing queued on channel")
	// ErrSuperseded is returned when another load replaced the content a
	// command was computed for.
	ErrSuperseded = errors.New("superseded by a newer load")
	// ErrInvalid marks malformed command arguments.
	ErrInvalid = errors.New("invalid request")
)

// Catalog resolves genres and soundscapes to tracks.
type Catalog interface {
	Music(ctx context.Context, genre string, exclude ...string) (catalog.Track, error)
	Soundscape(ctx context.Context, id string, exclude ...string) (catalog.Track, error)
	Track(id string) (catalog.Track, bool)
}

// Config holds the engine tunables.
type Config struct {
	MusicVolume      int
	SoundscapeVolume int
	NarrationVolume  int
	// MaxFallbacks bounds replacement lookups after unplayable content.
	MaxFallbacks int
	// ProgressInterval paces music time updates.
	ProgressInterval time.Duration
}

// DefaultConfig keeps music below the other channels so narration stays
// intelligible.
func DefaultConfig() Config {
	return Config{
		MusicVolume:      40,
		SoundscapeVolume: 70,
		NarrationVolume:  100,
		MaxFallbacks:     3,
		ProgressInterval: time.Second,
	}
}

// Engine owns the store, the adapters, the lifecycle manager and the
// platform layer.
type Engine struct {
	cfg      Config
	store    *playback.Store
	catalog  Catalog
	platform *platform.Layer
	life     *lifecycle.Manager
	adapters map[playback.Channel]*source.Adapter

	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool

	hub *hub

	// loop-confined
	genre          string
	scapeID        string
	narrationTitle string
	playlist       []string
	pos            int
	failed         map[playback.Channel][]string
	fallbacks      map[playback.Channel]int
}

// New builds an engine. Run must be called for commands to execute.
func New(cfg Config, factory source.Factory, cat Catalog, layer *platform.Layer) *Engine {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = time.Second
	}
	if layer == nil {
		layer = platform.NewLayer(nil, nil, nil)
	}

	var initial playback.AudioState
	initial.Music.Volume = playback.ClampVolume(cfg.MusicVolume)
	initial.Soundscape.Volume = playback.ClampVolume(cfg.SoundscapeVolume)
	initial.Narration.Volume = playback.ClampVolume(cfg.NarrationVolume)

	e := &Engine{
		cfg:       cfg,
		store:     playback.NewStore(initial),
		catalog:   cat,
		platform:  layer,
		adapters:  make(map[playback.Channel]*source.Adapter, 3),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		hub:       newHub(),
		failed:    make(map[playback.Channel][]string),
		fallbacks: make(map[playback.Channel]int),
	}
	e.life = lifecycle.NewManager(controller{e})

	dispatch := func(a playback.Action) { e.store.Dispatch(a) }
	e.adapters[playback.ChannelMusic] = source.NewAdapter(source.Config{
		Channel: playback.ChannelMusic, Kind: source.KindEmbed, Factory: factory,
		Dispatch: dispatch, Post: e.post, Loop: true, Progress: true,
	})
	e.adapters[playback.ChannelSoundscape] = source.NewAdapter(source.Config{
		Channel: playback.ChannelSoundscape, Kind: source.KindEmbed, Factory: factory,
		Dispatch: dispatch, Post: e.post, Loop: true,
	})
	e.adapters[playback.ChannelNarration] = source.NewAdapter(source.Config{
		Channel: playback.ChannelNarration, Kind: source.KindAudio, Factory: factory,
		Dispatch: dispatch, Post: e.post,
	})
	e.adapters[playback.ChannelMusic].SetNextTrack(e.advancePlaylist)
	e.adapters[playback.ChannelMusic].SetVolume(initial.Music.Volume)
	e.adapters[playback.ChannelSoundscape].SetVolume(initial.Soundscape.Volume)
	e.adapters[playback.ChannelNarration].SetVolume(initial.Narration.Volume)

	e.store.Subscribe(e.observe)
	layer.SetActionHandler(e.Transport)
	return e
}

// Run executes posted work and the progress ticker until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.ProgressInterval)
	defer ticker.Stop()

	log.Info().Int("music_volume", e.cfg.MusicVolume).Int("max_fallbacks", e.cfg.MaxFallbacks).
		Msg("Audio engine started")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-e.wake:
			e.drain()
		case <-ticker.C:
			e.tick()
		}
	}
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() playback.AudioState { return e.store.State() }

// Subscribe returns a stream of state snapshots. Slow subscribers miss
// intermediate snapshots rather than stall the engine.
func (e *Engine) Subscribe() *Subscription { return e.hub.subscribe() }

// Unsubscribe stops a subscription.
func (e *Engine) Unsubscribe(s *Subscription) { e.hub.unsubscribe(s) }

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// post schedules f on the loop. It never blocks.
func (e *Engine) post(f func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.tasks = append(e.tasks, f)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// call runs f on the loop and waits for its result.
func (e *Engine) call(f func() error) error {
	res := make(chan error, 1)
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	e.post(func() { res <- f() })
	select {
	case err := <-res:
		return err
	case <-e.done:
		return ErrClosed
	}
}

func (e *Engine) drain() {
	for {
		e.mu.Lock()
		tasks := e.tasks
		e.tasks = nil
		e.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, f := range tasks {
			f()
		}
	}
}

// settle waits until the queue is empty, including work queued by the
// work it waited for.
func (e *Engine) settle() {
	for {
		if err := e.call(func() error { return nil }); err != nil {
			return
		}
		e.mu.Lock()
		n := len(e.tasks)
		e.mu.Unlock()
		if n == 0 {
			return
		}
	}
}

func (e *Engine) tick() {
	if e.store.State().Music.Playing {
		e.adapters[playback.ChannelMusic].Poll()
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	e.closed = true
	e.tasks = nil
	e.mu.Unlock()

	for _, ch := range playback.Channels {
		e.adapters[ch].Stop()
	}
	e.platform.Release()
	e.store.Close()
	e.hub.close()
	close(e.done)
	log.Info().Msg("Audio engine stopped")
}
