package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/playback"
	"github.com/fjaycandido99-afk/momentum/internal/source"
)

func newServer(t *testing.T, opts Options) (*Host, *httptest.Server) {
	t.Helper()
	h := NewHost(opts)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, h *Host, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.Eventually(t, h.Connected, time.Second, 5*time.Millisecond)
	return c
}

func read(t *testing.T, c *websocket.Conn) Message {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func write(t *testing.T, c *websocket.Conn, m Message) {
	t.Helper()
	require.NoError(t, c.WriteJSON(m))
}

type events chan source.Event

func (e events) on(ev source.Event) { e <- ev }

func (e events) next(t *testing.T) source.Event {
	t.Helper()
	select {
	case ev := <-e:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for player event")
		return source.Event{}
	}
}

func TestPlayerCommandsReachHost(t *testing.T) {
	h, srv := newServer(t, Options{})
	c := dial(t, h, srv)

	p, err := h.NewPlayer(source.KindEmbed, nil)
	require.NoError(t, err)
	create := read(t, c)
	require.Equal(t, TypePlayerCreate, create.Type)
	require.Equal(t, "embed", create.Kind)
	require.NotEmpty(t, create.ID)

	require.NoError(t, p.Load("abc123", 42, true))
	load := read(t, c)
	require.Equal(t, TypePlayerLoad, load.Type)
	require.Equal(t, create.ID, load.ID)
	require.Equal(t, "abc123", load.Media)
	require.Equal(t, 42.0, load.Start)
	require.True(t, load.Autoplay)

	require.NoError(t, p.SetVolume(0))
	vol := read(t, c)
	require.Equal(t, TypePlayerVolume, vol.Type)
	require.NotNil(t, vol.Volume, "zero volume must be sent")
	require.Equal(t, 0, *vol.Volume)

	require.NoError(t, p.Seek(7.5))
	require.Equal(t, 7.5, read(t, c).Seconds)
	require.NoError(t, p.Play())
	require.Equal(t, TypePlayerPlay, read(t, c).Type)
	require.NoError(t, p.Pause())
	require.Equal(t, TypePlayerPause, read(t, c).Type)

	require.True(t, p.Alive())
	require.NoError(t, p.Destroy())
	destroy := read(t, c)
	require.Equal(t, TypePlayerDestroy, destroy.Type)
	require.Equal(t, create.ID, destroy.ID)
	require.False(t, p.Alive())
	require.NoError(t, p.Destroy())
}

func TestPlayerEventsDelivered(t *testing.T) {
	h, srv := newServer(t, Options{})
	c := dial(t, h, srv)

	evs := make(events, 8)
	p, _ := h.NewPlayer(source.KindAudio, evs.on)
	id := read(t, c).ID

	_, _, ok := p.Position()
	require.False(t, ok, "no position before the host reports one")

	write(t, c, Message{Type: TypePlayerEvent, ID: id, Event: "ready"})
	require.Equal(t, source.EventReady, evs.next(t).Type)

	write(t, c, Message{Type: TypePlayerEvent, ID: id, Event: "time", Time: 12, Duration: 300})
	ev := evs.next(t)
	require.Equal(t, source.EventTime, ev.Type)
	require.Equal(t, 12.0, ev.Time)
	at, dur, ok := p.Position()
	require.True(t, ok)
	require.Equal(t, 12.0, at)
	require.Equal(t, 300.0, dur)

	write(t, c, Message{Type: TypePlayerEvent, ID: id, Event: "error", Code: 4, Message: "MEDIA_ERR_SRC_NOT_SUPPORTED"})
	ev = evs.next(t)
	require.Equal(t, source.EventError, ev.Type)
	require.Equal(t, 4, ev.Code)

	// unknown players and events are ignored
	write(t, c, Message{Type: TypePlayerEvent, ID: "nope", Event: "ready"})
	write(t, c, Message{Type: TypePlayerEvent, ID: id, Event: "buffering"})
	write(t, c, Message{Type: TypePlayerEvent, ID: id, Event: "gone"})
	require.Eventually(t, func() bool { return !p.Alive() }, time.Second, 5*time.Millisecond)
	select {
	case ev := <-evs:
		t.Fatalf("unexpected event %v", ev.Type)
	default:
	}
}

func TestPlayerWithoutHostIsDead(t *testing.T) {
	h := NewHost(Options{})
	p, err := h.NewPlayer(source.KindEmbed, nil)
	require.NoError(t, err)
	require.False(t, p.Alive())
	require.ErrorIs(t, p.Load("abc", 0, true), ErrNotConnected)
	require.NoError(t, p.Destroy())
	require.ErrorIs(t, h.PushState(playback.AudioState{}), ErrNotConnected)
}

func TestSupersedeOrphansPlayers(t *testing.T) {
	h, srv := newServer(t, Options{})
	connects := make(chan struct{}, 2)
	h.SetConnectFunc(func() { connects <- struct{}{} })

	first := dial(t, h, srv)
	<-connects
	evs := make(events, 4)
	p, _ := h.NewPlayer(source.KindEmbed, evs.on)
	id := read(t, first).ID
	require.True(t, p.Alive())

	second := dial(t, h, srv)
	<-connects
	require.Eventually(t, func() bool { return !p.Alive() }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, p.Play(), ErrNotConnected)

	// the superseded socket is closed
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	require.Error(t, first.ReadJSON(&m))

	// the new host cannot drive the orphan either
	write(t, second, Message{Type: TypePlayerEvent, ID: id, Event: "ready"})
	select {
	case <-evs:
		t.Fatal("orphaned player received an event")
	case <-time.After(50 * time.Millisecond):
	}

	fresh, _ := h.NewPlayer(source.KindEmbed, nil)
	require.Equal(t, TypePlayerCreate, read(t, second).Type)
	require.True(t, fresh.Alive())
}

func TestDisconnectReportsHidden(t *testing.T) {
	h, srv := newServer(t, Options{})
	hidden := make(chan bool, 1)
	h.SetVisibilityFunc(func(v bool) { hidden <- v })

	c := dial(t, h, srv)
	p, _ := h.NewPlayer(source.KindEmbed, nil)
	read(t, c)
	c.Close()

	select {
	case v := <-hidden:
		require.True(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	require.False(t, h.Connected())
	require.False(t, p.Alive())
}

func TestVisibilityRefreshesPositions(t *testing.T) {
	h, srv := newServer(t, Options{})
	hidden := make(chan bool, 2)
	h.SetVisibilityFunc(func(v bool) { hidden <- v })
	c := dial(t, h, srv)

	p, _ := h.NewPlayer(source.KindEmbed, nil)
	id := read(t, c).ID

	write(t, c, Message{Type: TypeVisibility, Hidden: false, Positions: map[string]Position{
		id: {Time: 95.5, Duration: 240},
	}})
	require.False(t, <-hidden)
	at, dur, ok := p.Position()
	require.True(t, ok)
	require.Equal(t, 95.5, at)
	require.Equal(t, 240.0, dur)
}

func TestNavigateAndMediaActions(t *testing.T) {
	h, srv := newServer(t, Options{})
	type nav struct {
		route  string
		guided bool
	}
	navs := make(chan nav, 2)
	actions := make(chan platform.Action, 2)
	h.SetNavigateFunc(func(route string, guided bool) error {
		navs <- nav{route, guided}
		return errors.New("engine closed")
	})
	h.SetActionFunc(func(a platform.Action) { actions <- a })
	c := dial(t, h, srv)

	write(t, c, Message{Type: TypeNavigate, Route: "/session/breathe", Guided: true})
	require.Equal(t, nav{"/session/breathe", true}, <-navs)

	write(t, c, Message{Type: TypeMediaAction, Action: "rewind"})
	write(t, c, Message{Type: TypeMediaAction, Action: "seekto", Position: 42})
	a := <-actions
	require.Equal(t, platform.ActionSeekTo, a.Kind)
	require.Equal(t, 42.0, a.Position)
}

func TestCommandResults(t *testing.T) {
	h, srv := newServer(t, Options{})
	c := dial(t, h, srv)

	// no handler yet
	write(t, c, Message{Type: TypeCommand, Ref: "1", Command: "music/pause"})
	res := read(t, c)
	require.Equal(t, TypeCommandResult, res.Type)
	require.Equal(t, "1", res.Ref)
	require.NotEmpty(t, res.Error)

	got := make(chan json.RawMessage, 1)
	h.SetCommandFunc(func(name string, args json.RawMessage) error {
		if name == "music/play" {
			got <- args
			return nil
		}
		return errors.New("unknown command")
	})

	write(t, c, Message{Type: TypeCommand, Ref: "2", Command: "music/play", Args: json.RawMessage(`{"genre":"lofi"}`)})
	res = read(t, c)
	require.Equal(t, "2", res.Ref)
	require.Empty(t, res.Error)
	require.JSONEq(t, `{"genre":"lofi"}`, string(<-got))

	write(t, c, Message{Type: TypeCommand, Ref: "3", Command: "dance"})
	res = read(t, c)
	require.Equal(t, "3", res.Ref)
	require.Equal(t, "unknown command", res.Error)
}

func TestCapabilities(t *testing.T) {
	h, srv := newServer(t, Options{ClipURL: "/clip.wav"})
	c := dial(t, h, srv)

	require.NoError(t, h.WakeLock().Acquire())
	require.Equal(t, TypeWakeAcquire, read(t, c).Type)
	require.NoError(t, h.WakeLock().Release())
	require.Equal(t, TypeWakeRelease, read(t, c).Type)

	require.NoError(t, h.NowPlaying().SetMetadata(platform.Metadata{Title: "Velvet Lofi", Channel: "music"}))
	meta := read(t, c)
	require.Equal(t, TypeSessionMeta, meta.Type)
	require.Equal(t, "Velvet Lofi", meta.Metadata.Title)

	require.NoError(t, h.NowPlaying().SetPlaybackState(platform.StatePlaying, 12))
	st := read(t, c)
	require.Equal(t, "playing", st.State)
	require.Equal(t, 12.0, st.Position)

	require.NoError(t, h.NowPlaying().Clear())
	require.Equal(t, TypeSessionClear, read(t, c).Type)

	require.NoError(t, h.Keepalive().Start())
	ka := read(t, c)
	require.Equal(t, TypeKeepaliveStart, ka.Type)
	require.Equal(t, "/clip.wav", ka.Media)
	require.NoError(t, h.Keepalive().Stop())
	require.Equal(t, TypeKeepaliveStop, read(t, c).Type)

	var s playback.AudioState
	s.Music.VideoID = "abc"
	s.Music.Playing = true
	require.NoError(t, h.PushState(s))
	push := read(t, c)
	require.Equal(t, TypeState, push.Type)
	require.True(t, push.Snapshot.Music.Playing)
}

func TestOriginCheck(t *testing.T) {
	h, srv := newServer(t, Options{Origins: []string{"https://app.example"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	c, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example"}})
	require.NoError(t, err)
	defer c.Close()
	require.Eventually(t, h.Connected, time.Second, 5*time.Millisecond)
}

func TestCloseDisconnects(t *testing.T) {
	h, srv := newServer(t, Options{})
	c := dial(t, h, srv)
	h.Close()

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	err := c.ReadJSON(&m)
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Eventually(t, func() bool { return !h.Connected() }, time.Second, 5*time.Millisecond)
}
