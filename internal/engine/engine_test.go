package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fjaycandido99-afk/momentum/internal/catalog"
	"github.com/fjaycandido99-afk/momentum/internal/lifecycle"
	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/playback"
	"github.com/fjaycandido99-afk/momentum/internal/source"
	"github.com/fjaycandido99-afk/momentum/internal/source/sourcetest"
)

const testCatalog = `
genres:
  lofi:
    adjacent: [jazz]
    tracks:
      - id: lofi-1
        title: Lofi Radio
      - id: lofi-2
        title: Lofi Beats
  jazz:
    adjacent: [lofi]
    tracks:
      - id: jazz-1
soundscapes:
  rain:
    tracks:
      - id: rain-1
        title: Rain
      - id: rain-2
        title: Storm
`

type caps struct {
	mu    sync.Mutex
	wake  []string
	meta  []platform.Metadata
	state []platform.PlaybackState
}

func (c *caps) Acquire() error { c.add(&c.wake, "acquire"); return nil }
func (c *caps) Release() error { c.add(&c.wake, "release"); return nil }
func (c *caps) Clear() error   { return nil }

func (c *caps) SetMetadata(m platform.Metadata) error {
	c.mu.Lock()
	c.meta = append(c.meta, m)
	c.mu.Unlock()
	return nil
}

func (c *caps) SetPlaybackState(st platform.PlaybackState, _ float64) error {
	c.mu.Lock()
	c.state = append(c.state, st)
	c.mu.Unlock()
	return nil
}

func (c *caps) add(dst *[]string, s string) {
	c.mu.Lock()
	*dst = append(*dst, s)
	c.mu.Unlock()
}

func (c *caps) wakeCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.wake)
}

func (c *caps) lastTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.meta) == 0 {
		return ""
	}
	return c.meta[len(c.meta)-1].Title
}

type harness struct {
	e       *Engine
	factory *sourcetest.Factory
	caps    *caps
	layer   *platform.Layer
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog), catalog.WithSource(rand.NewPCG(3, 5)))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ProgressInterval = time.Hour
	for _, m := range mutate {
		m(&cfg)
	}

	h := &harness{factory: &sourcetest.Factory{}, caps: &caps{}}
	h.layer = platform.NewLayer(h.caps, h.caps, nil)
	h.e = New(cfg, h.factory, cat, h.layer)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.e.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.e.Done()
	})
	return h
}

func (h *harness) state() playback.AudioState {
	h.e.settle()
	return h.e.Snapshot()
}

// start brings a freshly created player to playing.
func (h *harness) start(p *sourcetest.Player) {
	p.Ready()
	p.Playing()
	h.e.settle()
}

func (h *harness) playMusic(t *testing.T) *sourcetest.Player {
	t.Helper()
	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	p := h.factory.Last()
	h.start(p)
	return p
}

func (h *harness) playSoundscape(t *testing.T) *sourcetest.Player {
	t.Helper()
	require.NoError(t, h.e.PlaySoundscape(context.Background(), "rain"))
	p := h.factory.Last()
	h.start(p)
	return p
}

func lastCall(p *sourcetest.Player) string {
	calls := p.Calls()
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1]
}

func countCalls(p *sourcetest.Player, name string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

// --- Scenarios ---

func TestBasicPlayback(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	p := h.factory.Last()
	require.Equal(t, source.KindEmbed, p.Kind)

	st := h.state()
	require.False(t, st.Music.Playing)
	require.False(t, st.Music.ReadyForPlayback)

	p.Ready()
	st = h.state()
	require.True(t, st.Music.ReadyForPlayback)
	require.Equal(t, []string{"volume 40", "load " + st.Music.VideoID + " 0 true"}, p.Calls())

	p.Playing()
	st = h.state()
	require.True(t, st.Music.Playing)
	require.True(t, st.HomeAudioActive)
	require.Contains(t, []string{"Lofi Radio", "Lofi Beats"}, h.caps.lastTitle())
	require.Equal(t, []string{"acquire"}, h.caps.wakeCalls())
	require.Equal(t, playback.ChannelMusic, h.layer.Owner())
}

func TestSessionInterruption(t *testing.T) {
	h := newHarness(t)
	music := h.playMusic(t)
	scape := h.playSoundscape(t)

	require.NoError(t, h.e.EnterGuidedSession())
	require.Equal(t, "pause", lastCall(music))
	require.Equal(t, "pause", lastCall(scape))

	require.NoError(t, h.e.PlayNarration("https://cdn.example/breathe.mp3", 120, "Breathe"))
	narr := h.factory.Last()
	require.Equal(t, source.KindAudio, narr.Kind)
	h.start(narr)

	st := h.state()
	require.False(t, st.Music.Playing)
	require.False(t, st.Soundscape.Playing)
	require.True(t, st.Narration.Playing)
	require.Equal(t, playback.Suspension{Active: true, Music: true, Soundscape: true}, st.SuspendedForForeground)
	require.Equal(t, playback.ChannelNarration, h.layer.Owner())
	require.Equal(t, "Breathe", h.caps.lastTitle())

	narr.Ended()
	require.False(t, h.state().Narration.Playing)

	require.NoError(t, h.e.ExitGuidedSession())
	require.Equal(t, "play", lastCall(music))
	require.Equal(t, "play", lastCall(scape))

	music.Playing()
	scape.Playing()
	st = h.state()
	require.True(t, st.Music.Playing)
	require.True(t, st.Soundscape.Playing)
	require.False(t, st.Narration.Playing)
	require.Equal(t, playback.Suspension{}, st.SuspendedForForeground)
	require.Equal(t, 3, h.factory.Count())
}

func TestSessionRestoresOnlyPlaying(t *testing.T) {
	h := newHarness(t)
	h.playMusic(t)
	scape := h.playSoundscape(t)
	require.NoError(t, h.e.PauseSoundscape())
	plays := countCalls(scape, "play")

	require.NoError(t, h.e.EnterGuidedSession())
	require.NoError(t, h.e.ExitGuidedSession())
	h.e.settle()

	require.Equal(t, plays, countCalls(scape, "play"), "paused soundscape resumed after session")
	require.True(t, h.state().Soundscape.Held)
}

func TestResumeDeferredDuringSession(t *testing.T) {
	h := newHarness(t)
	music := h.playMusic(t)
	require.NoError(t, h.e.PauseMusic())
	require.NoError(t, h.e.EnterGuidedSession())

	require.NoError(t, h.e.ResumeMusic())
	require.Equal(t, "pause", lastCall(music))
	require.True(t, h.state().SuspendedForForeground.Music)

	require.NoError(t, h.e.ExitGuidedSession())
	require.Equal(t, "play", lastCall(music))
}

func TestAutoplayDuringSessionSilenced(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	p := h.factory.Last()
	require.NoError(t, h.e.EnterGuidedSession())

	h.start(p)
	require.Equal(t, "pause", lastCall(p))
	st := h.state()
	require.False(t, st.Music.Playing)
	require.True(t, st.SuspendedForForeground.Music)

	require.NoError(t, h.e.ExitGuidedSession())
	require.Equal(t, "play", lastCall(p))
}

func TestLoadDuringSessionWaits(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.EnterGuidedSession())
	require.NoError(t, h.e.PlaySoundscape(context.Background(), "rain"))
	p := h.factory.Last()
	p.Ready()
	h.e.settle()
	require.Contains(t, lastCall(p), " false")

	require.NoError(t, h.e.ExitGuidedSession())
	require.Equal(t, "play", lastCall(p))
}

func TestBackgroundForegroundAlivePlayer(t *testing.T) {
	h := newHarness(t)
	p := h.playMusic(t)
	p.Emit(source.Event{Type: source.EventTime, Time: 30, Duration: 200})

	h.e.HostVisibility(true)
	p.SetPosition(42, 200)
	h.e.HostVisibility(false)

	st := h.state()
	require.Equal(t, 1, h.factory.Count(), "live player must not be recreated")
	require.Equal(t, "play", lastCall(p))
	require.Equal(t, 42.0, st.Music.CurrentTime)
}

func TestBackgroundForegroundDeadPlayer(t *testing.T) {
	h := newHarness(t)
	p := h.playMusic(t)
	p.Emit(source.Event{Type: source.EventTime, Time: 42, Duration: 200})
	videoID := h.state().Music.VideoID

	h.e.HostVisibility(true)
	p.Kill()
	h.e.HostVisibility(false)
	h.e.settle()

	require.Equal(t, 2, h.factory.Count())
	replacement := h.factory.Last()
	replacement.Ready()
	st := h.state()
	require.Equal(t, videoID, st.Music.VideoID)
	require.Equal(t, 42.0, st.Music.CurrentTime)
	require.Equal(t, 200.0, st.Music.Duration)
	require.Contains(t, replacement.Calls(), "load "+videoID+" 42 true")

	replacement.Playing()
	require.True(t, h.state().Music.Playing)
}

func TestHostAttachedRebuildsWaitingPlayers(t *testing.T) {
	h := newHarness(t)

	// loaded before any host could create the player
	require.NoError(t, h.e.PlaySoundscape(context.Background(), "rain"))
	h.factory.Last().Kill()

	// paused by the user, then the host went away
	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	music := h.factory.Last()
	h.start(music)
	require.NoError(t, h.e.PauseMusic())
	music.Emit(source.Event{Type: source.EventPaused})
	music.Kill()
	before := h.factory.Count()

	h.e.HostAttached()
	h.e.settle()

	require.Equal(t, before+1, h.factory.Count(), "only the waiting soundscape is rebuilt")
	rebuilt := h.factory.Last()
	require.Equal(t, source.KindEmbed, rebuilt.Kind)
	rebuilt.Ready()
	st := h.state()
	require.Equal(t, st.Soundscape.VideoID, rebuilt.Media())
	require.False(t, st.Music.Playing)

	// a second attach with healthy players changes nothing
	h.e.HostAttached()
	h.e.settle()
	require.Equal(t, before+1, h.factory.Count())
}

func TestStaleEventsAfterSkip(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	first := h.factory.Last()
	firstID := h.state().Music.VideoID

	require.NoError(t, h.e.SkipMusic(context.Background()))
	second := h.factory.Last()
	require.NotSame(t, first, second)

	first.Ready()
	first.Playing()
	st := h.state()
	require.False(t, st.Music.ReadyForPlayback)
	require.False(t, st.Music.Playing)
	require.NotEqual(t, firstID, st.Music.VideoID)

	h.start(second)
	require.True(t, h.state().Music.Playing)
}

func TestStopAllIdempotent(t *testing.T) {
	h := newHarness(t)
	music := h.playMusic(t)
	require.NoError(t, h.e.PlayNarration("https://cdn.example/n.mp3", 60, ""))
	h.start(h.factory.Last())

	require.NoError(t, h.e.StopAll())
	once := h.state()
	require.NoError(t, h.e.StopAll())
	twice := h.state()

	require.Equal(t, once, twice)
	require.False(t, once.HomeAudioActive)
	require.Equal(t, []string{"acquire", "release"}, h.caps.wakeCalls())
	require.False(t, music.Alive())

	music.Playing()
	require.False(t, h.state().Music.Playing, "event from destroyed player applied")
}

func TestPlaylistAdvance(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.PlayPlaylist(context.Background(), []string{"lofi-1", "track-b"}))
	first := h.factory.Last()
	h.start(first)
	require.Equal(t, "Lofi Radio", h.caps.lastTitle())

	first.Ended()
	h.e.settle()
	require.Equal(t, 2, h.factory.Count())
	second := h.factory.Last()
	h.start(second)
	require.Equal(t, "track-b", h.state().Music.VideoID)
	require.Equal(t, 0, countCalls(first, "seek 0"), "first track looped instead of advancing")

	second.Ended()
	h.e.settle()
	require.Equal(t, 2, h.factory.Count(), "exhausted playlist must loop, not load")
	calls := second.Calls()
	require.Equal(t, []string{"seek 0", "play"}, calls[len(calls)-2:])
}

func TestStopAllEndsSession(t *testing.T) {
	h := newHarness(t)
	h.playMusic(t)
	require.NoError(t, h.e.EnterGuidedSession())
	require.NoError(t, h.e.StopAll())
	require.Equal(t, playback.Suspension{}, h.state().SuspendedForForeground)

	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	p := h.factory.Last()
	h.start(p)
	st := h.state()
	require.Equal(t, "load "+st.Music.VideoID+" 0 true", p.Calls()[1])
	require.True(t, st.Music.Playing)
	require.Equal(t, lifecycle.Active, h.e.life.State(playback.ChannelMusic))

	require.NoError(t, h.e.PauseMusic())
	require.NoError(t, h.e.ResumeMusic())
	require.Equal(t, "play", lastCall(p))

	p.Playing()
	require.NoError(t, h.e.EnterGuidedSession())
	require.Equal(t, "pause", lastCall(p))
	require.True(t, h.state().SuspendedForForeground.Music)
}

func TestLoopKeepsWakeLock(t *testing.T) {
	h := newHarness(t)
	p := h.playMusic(t)

	p.Ended()
	st := h.state()
	require.True(t, st.Music.Playing)
	require.Equal(t, []string{"seek 0", "play"}, p.Calls()[len(p.Calls())-2:])

	p.Playing()
	h.e.settle()
	require.Equal(t, []string{"acquire"}, h.caps.wakeCalls())
	require.Equal(t, playback.ChannelMusic, h.layer.Owner())
}

func TestPlaylistAdvanceKeepsWakeLock(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.e.PlayPlaylist(context.Background(), []string{"lofi-1", "lofi-2"}))
	first := h.factory.Last()
	h.start(first)

	first.Ended()
	st := h.state()
	require.True(t, st.Music.Advancing)
	require.False(t, st.Music.Playing)
	require.True(t, h.layer.WakeHeld())

	h.start(h.factory.Last())
	st = h.state()
	require.True(t, st.Music.Playing)
	require.False(t, st.Music.Advancing)
	require.Equal(t, []string{"acquire"}, h.caps.wakeCalls())
}

func TestUnplayableFallback(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxFallbacks = 1 })
	scape := h.playSoundscape(t)

	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	first := h.factory.Last()
	firstID := h.state().Music.VideoID
	first.Ready()
	first.Fail(150)
	h.e.settle()

	require.Equal(t, 3, h.factory.Count())
	st := h.state()
	require.NotEqual(t, firstID, st.Music.VideoID)
	require.Empty(t, st.Music.Error)

	second := h.factory.Last()
	second.Ready()
	second.Fail(101)
	h.e.settle()

	require.Equal(t, 3, h.factory.Count(), "fallback budget exceeded")
	st = h.state()
	require.Equal(t, "this content could not be played", st.Music.Error)
	require.True(t, st.Soundscape.Playing)
	require.True(t, scape.Alive())
}

// --- Commands ---

func TestVolume(t *testing.T) {
	h := newHarness(t)
	p := h.playMusic(t)

	require.ErrorIs(t, h.e.SetMusicVolume(150), ErrInvalid)
	require.NoError(t, h.e.SetMusicVolume(20))
	require.Equal(t, 20, h.state().Music.Volume)
	require.Equal(t, "volume 20", lastCall(p))

	st := h.state()
	require.Equal(t, 70, st.Soundscape.Volume)
	require.Equal(t, 100, st.Narration.Volume)
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.e.PlayMusic(context.Background(), " "), ErrInvalid)
	require.ErrorIs(t, h.e.PlayMusic(context.Background(), "polka"), catalog.ErrUnknown)
	require.ErrorIs(t, h.e.PlayPlaylist(context.Background(), nil), ErrInvalid)
	require.ErrorIs(t, h.e.ResumeMusic(), ErrNothingQueued)
	require.ErrorIs(t, h.e.SkipSoundscape(context.Background()), ErrNothingQueued)
	require.ErrorIs(t, h.e.PlayNarration("", 0, ""), ErrInvalid)
	require.Equal(t, 0, h.factory.Count())
}

func TestFactoryFailureReported(t *testing.T) {
	h := newHarness(t)
	h.factory.Refuse = true
	err := h.e.PlayMusic(context.Background(), "lofi")
	require.True(t, errors.Is(err, sourcetest.ErrRefused))
	require.NotEmpty(t, h.state().Music.Error)
}

func TestTransportRoutesToOwner(t *testing.T) {
	h := newHarness(t)
	music := h.playMusic(t)

	h.layer.HandleAction(platform.Action{Kind: platform.ActionPause})
	require.Equal(t, "pause", lastCall(music))
	require.True(t, h.state().Music.Held)

	h.layer.HandleAction(platform.Action{Kind: platform.ActionPlay})
	require.Equal(t, "play", lastCall(music))

	h.layer.HandleAction(platform.Action{Kind: platform.ActionSeekTo, Position: 15})
	require.Equal(t, "seek 15", lastCall(music))

	h.layer.HandleAction(platform.Action{Kind: platform.ActionNextTrack})
	require.Equal(t, 2, h.factory.Count())
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	h := newHarness(t)
	sub := h.e.Subscribe()
	require.Equal(t, 1, h.e.hub.count())
	defer func() {
		h.e.Unsubscribe(sub)
		require.Equal(t, 0, h.e.hub.count())
	}()

	require.NoError(t, h.e.PlayMusic(context.Background(), "lofi"))
	select {
	case st := <-sub.C:
		require.NotEmpty(t, st.Music.VideoID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}

func TestClosedEngine(t *testing.T) {
	h := newHarness(t)
	h.playMusic(t)
	h.cancel()
	<-h.e.Done()

	require.ErrorIs(t, h.e.StopAll(), ErrClosed)
	require.Equal(t, []string{"acquire", "release"}, h.caps.wakeCalls())
}
