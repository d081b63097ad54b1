package bridge

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/source"
)

// NewPlayer asks the host to create a player. With no host attached the
// player is created dead, so the lifecycle manager rebuilds it once a
// host attaches and reports itself visible.
func (h *Host) NewPlayer(kind source.Kind, onEvent func(source.Event)) (source.Player, error) {
	p := &remotePlayer{h: h, id: uuid.NewString(), kind: kind, onEvent: onEvent}

	h.mu.Lock()
	p.connID = h.connID
	if p.connID != "" {
		h.players[p.id] = p
	}
	h.mu.Unlock()

	if err := h.sendTo(p.connID, Message{Type: TypePlayerCreate, ID: p.id, Kind: kind.String()}); err != nil {
		log.Debug().Err(err).Str("id", p.id).Str("kind", kind.String()).Msg("Player created without host")
	}
	return p, nil
}

// remotePlayer drives one player living on the host.
type remotePlayer struct {
	h       *Host
	id      string
	kind    source.Kind
	connID  string
	onEvent func(source.Event)

	mu        sync.Mutex
	pos       Position
	reported  bool
	gone      bool
	destroyed bool
}

func (p *remotePlayer) Load(media string, start float64, autoplay bool) error {
	p.mu.Lock()
	p.pos, p.reported = Position{Time: start}, false
	p.mu.Unlock()
	return p.send(Message{Type: TypePlayerLoad, Media: media, Start: start, Autoplay: autoplay})
}

func (p *remotePlayer) Play() error  { return p.send(Message{Type: TypePlayerPlay}) }
func (p *remotePlayer) Pause() error { return p.send(Message{Type: TypePlayerPause}) }

func (p *remotePlayer) Seek(seconds float64) error {
	return p.send(Message{Type: TypePlayerSeek, Seconds: seconds})
}

func (p *remotePlayer) SetVolume(volume int) error {
	return p.send(Message{Type: TypePlayerVolume, Volume: &volume})
}

// Position returns the latest playhead the host reported. Positions
// arrive with time events and with every visibility change.
func (p *remotePlayer) Position() (t, duration float64, ok bool) {
	p.mu.Lock()
	pos, reported := p.pos, p.reported
	p.mu.Unlock()
	return pos.Time, pos.Duration, reported && p.Alive()
}

func (p *remotePlayer) Alive() bool {
	p.mu.Lock()
	dead := p.gone || p.destroyed
	p.mu.Unlock()
	if dead || p.connID == "" {
		return false
	}
	p.h.mu.Lock()
	defer p.h.mu.Unlock()
	return p.h.connID == p.connID
}

func (p *remotePlayer) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.mu.Unlock()

	p.h.mu.Lock()
	delete(p.h.players, p.id)
	p.h.mu.Unlock()

	err := p.h.sendTo(p.connID, Message{Type: TypePlayerDestroy, ID: p.id})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

func (p *remotePlayer) send(m Message) error {
	m.ID = p.id
	return p.h.sendTo(p.connID, m)
}

func (p *remotePlayer) report(t, duration float64) {
	p.mu.Lock()
	p.pos = Position{Time: t, Duration: duration}
	p.reported = true
	p.mu.Unlock()
}

// deliver translates a host event for this player.
func (p *remotePlayer) deliver(m Message) {
	if m.Event == EventGone {
		p.mu.Lock()
		p.gone = true
		p.mu.Unlock()
		log.Info().Str("id", p.id).Str("kind", p.kind.String()).Msg("Host discarded player")
		return
	}

	typ, ok := source.ParseEventType(m.Event)
	if !ok {
		log.Debug().Str("id", p.id).Str("event", m.Event).Msg("Ignoring unknown player event")
		return
	}
	if m.Time != 0 || m.Duration != 0 || typ == source.EventTime {
		p.report(m.Time, m.Duration)
	}
	if p.onEvent != nil {
		p.onEvent(source.Event{
			Type: typ, Code: m.Code, Time: m.Time, Duration: m.Duration, Message: m.Message,
		})
	}
}
