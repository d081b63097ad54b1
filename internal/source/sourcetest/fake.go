// Package sourcetest provides in-memory players for tests.
package sourcetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fjaycandido99-afk/momentum/internal/source"
)

// Player records the commands it receives. Events are injected with Emit.
type Player struct {
	Kind source.Kind

	mu       sync.Mutex
	calls    []string
	onEvent  func(source.Event)
	alive    bool
	time     float64
	duration float64
	media    string
}

// Emit delivers an event as the remote player would.
func (p *Player) Emit(ev source.Event) { p.onEvent(ev) }

// Ready emits EventReady.
func (p *Player) Ready() { p.Emit(source.Event{Type: source.EventReady}) }

// Playing emits EventPlaying.
func (p *Player) Playing() { p.Emit(source.Event{Type: source.EventPlaying}) }

// Ended emits EventEnded.
func (p *Player) Ended() { p.Emit(source.Event{Type: source.EventEnded}) }

// Fail emits EventError with code.
func (p *Player) Fail(code int) { p.Emit(source.Event{Type: source.EventError, Code: code}) }

// Kill marks the player as torn down by the platform.
func (p *Player) Kill() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

// SetPosition sets what Position reports.
func (p *Player) SetPosition(t, duration float64) {
	p.mu.Lock()
	p.time, p.duration = t, duration
	p.mu.Unlock()
}

// Calls returns the commands received so far.
func (p *Player) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Media returns the last loaded content id.
func (p *Player) Media() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.media
}

func (p *Player) record(format string, args ...any) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *Player) Load(media string, start float64, autoplay bool) error {
	p.mu.Lock()
	p.media = media
	p.time = start
	p.mu.Unlock()
	p.record("load %s %g %t", media, start, autoplay)
	return nil
}

func (p *Player) Play() error  { p.record("play"); return nil }
func (p *Player) Pause() error { p.record("pause"); return nil }

func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	p.time = seconds
	p.mu.Unlock()
	p.record("seek %g", seconds)
	return nil
}

func (p *Player) SetVolume(v int) error { p.record("volume %d", v); return nil }

func (p *Player) Position() (float64, float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time, p.duration, p.alive
}

func (p *Player) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *Player) Destroy() error {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
	p.record("destroy")
	return nil
}

// ErrRefused is returned by a Factory with Refuse set.
var ErrRefused = errors.New("player creation refused")

// Factory hands out Players and remembers them in creation order.
type Factory struct {
	Refuse bool

	mu      sync.Mutex
	players []*Player
}

// NewPlayer implements source.Factory.
func (f *Factory) NewPlayer(kind source.Kind, onEvent func(source.Event)) (source.Player, error) {
	if f.Refuse {
		return nil, ErrRefused
	}
	p := &Player{Kind: kind, onEvent: onEvent, alive: true}
	f.mu.Lock()
	f.players = append(f.players, p)
	f.mu.Unlock()
	return p, nil
}

// Players returns every player created so far.
func (f *Factory) Players() []*Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Player(nil), f.players...)
}

// Last returns the newest player, or nil.
func (f *Factory) Last() *Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.players) == 0 {
		return nil
	}
	return f.players[len(f.players)-1]
}

// Count returns the number of players created.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}
