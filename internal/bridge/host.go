// Package bridge connects the daemon to the view host over a WebSocket.
// The host owns the real players and device resources; the bridge turns
// them into source.Player and platform capabilities, and turns host
// messages into engine inputs.
package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/playback"
	"github.com/fjaycandido99-afk/momentum/internal/source"
)

// ErrNotConnected is returned when a message targets a host that is not
// (or no longer) connected.
var ErrNotConnected = errors.New("no host connected")

// Options configures a Host.
type Options struct {
	// Origins lists the accepted Origin headers. Empty accepts any.
	Origins []string
	// ClipURL is the keepalive clip the host loops while playing.
	ClipURL string
	// WriteTimeout bounds a single message write.
	WriteTimeout time.Duration
}

// Host is the daemon side of the host bridge. One host is attached at a
// time; a new connection supersedes the old one and orphans its players.
type Host struct {
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	connID  string
	players map[string]*remotePlayer

	onConnect    func()
	onVisibility func(hidden bool)
	onNavigate   func(route string, guided bool) error
	onAction     func(platform.Action)
	onCommand    func(name string, args json.RawMessage) error

	writeMu sync.Mutex
}

// NewHost creates a host bridge.
func NewHost(opts Options) *Host {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ClipURL == "" {
		opts.ClipURL = "/keepalive.wav"
	}
	h := &Host{opts: opts, players: make(map[string]*remotePlayer)}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// SetConnectFunc registers a callback for every newly attached host.
func (h *Host) SetConnectFunc(fn func()) {
	h.mu.Lock()
	h.onConnect = fn
	h.mu.Unlock()
}

// SetVisibilityFunc registers the receiver of visibility changes. Losing
// the connection is reported as hidden.
func (h *Host) SetVisibilityFunc(fn func(hidden bool)) {
	h.mu.Lock()
	h.onVisibility = fn
	h.mu.Unlock()
}

// SetNavigateFunc registers the receiver of route changes.
func (h *Host) SetNavigateFunc(fn func(route string, guided bool) error) {
	h.mu.Lock()
	h.onNavigate = fn
	h.mu.Unlock()
}

// SetActionFunc registers the receiver of now-playing transport actions.
func (h *Host) SetActionFunc(fn func(platform.Action)) {
	h.mu.Lock()
	h.onAction = fn
	h.mu.Unlock()
}

// SetCommandFunc registers the receiver of inbound commands.
func (h *Host) SetCommandFunc(fn func(name string, args json.RawMessage) error) {
	h.mu.Lock()
	h.onCommand = fn
	h.mu.Unlock()
}

// Connected reports whether a host is attached.
func (h *Host) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

func (h *Host) checkOrigin(r *http.Request) bool {
	if len(h.opts.Origins) == 0 {
		return true
	}
	return slices.Contains(h.opts.Origins, r.Header.Get("Origin"))
}

// ServeHTTP upgrades the request and serves the host until it
// disconnects or is superseded.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Host upgrade failed")
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	old := h.conn
	h.conn, h.connID = conn, id
	// players of a superseded host are gone with it
	clear(h.players)
	onConnect := h.onConnect
	h.mu.Unlock()

	if old != nil {
		log.Info().Str("conn", id).Msg("Host superseded")
		old.Close()
	}
	log.Info().Str("conn", id).Str("remote", r.RemoteAddr).Msg("Host connected")
	if onConnect != nil {
		onConnect()
	}

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("conn", id).Msg("Host read failed")
			}
			break
		}
		h.handle(id, m)
	}
	h.detach(id)
}

// detach forgets connection id if it is still the current one.
func (h *Host) detach(id string) {
	h.mu.Lock()
	if h.connID != id {
		h.mu.Unlock()
		return
	}
	conn := h.conn
	h.conn, h.connID = nil, ""
	clear(h.players)
	onVisibility := h.onVisibility
	h.mu.Unlock()

	conn.Close()
	log.Info().Str("conn", id).Msg("Host disconnected")
	if onVisibility != nil {
		onVisibility(true)
	}
}

// Close disconnects the current host.
func (h *Host) Close() {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return
	}
	h.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.opts.WriteTimeout))
	h.writeMu.Unlock()
	conn.Close()
}

func (h *Host) handle(connID string, m Message) {
	h.mu.Lock()
	var (
		player       = h.players[m.ID]
		onVisibility = h.onVisibility
		onNavigate   = h.onNavigate
		onAction     = h.onAction
		onCommand    = h.onCommand
	)
	h.mu.Unlock()

	switch m.Type {
	case TypePlayerEvent:
		if player == nil || player.connID != connID {
			log.Debug().Str("id", m.ID).Str("event", m.Event).Msg("Event for unknown player")
			return
		}
		player.deliver(m)

	case TypeVisibility:
		for id, pos := range m.Positions {
			h.mu.Lock()
			p := h.players[id]
			h.mu.Unlock()
			if p != nil {
				p.report(pos.Time, pos.Duration)
			}
		}
		if onVisibility != nil {
			onVisibility(m.Hidden)
		}

	case TypeNavigate:
		if onNavigate == nil {
			return
		}
		if err := onNavigate(m.Route, m.Guided); err != nil {
			log.Warn().Err(err).Str("route", m.Route).Msg("Navigation not applied")
		}

	case TypeMediaAction:
		kind, err := platform.ParseAction(m.Action)
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring media action")
			return
		}
		if onAction != nil {
			onAction(platform.Action{Kind: kind, Position: m.Position})
		}

	case TypeCommand:
		reply := Message{Type: TypeCommandResult, Ref: m.Ref, Command: m.Command}
		if onCommand == nil {
			reply.Error = "commands not accepted"
		} else if err := onCommand(m.Command, m.Args); err != nil {
			reply.Error = err.Error()
		}
		if err := h.sendTo(connID, reply); err != nil {
			log.Debug().Err(err).Str("command", m.Command).Msg("Command result not delivered")
		}

	default:
		log.Debug().Str("type", m.Type).Msg("Ignoring host message")
	}
}

// PushState sends a state snapshot to the host.
func (h *Host) PushState(s playback.AudioState) error {
	return h.send(Message{Type: TypeState, Snapshot: &s})
}

func (h *Host) send(m Message) error {
	h.mu.Lock()
	id := h.connID
	h.mu.Unlock()
	return h.sendTo(id, m)
}

// sendTo writes m only if connID is still the attached host.
func (h *Host) sendTo(connID string, m Message) error {
	h.mu.Lock()
	conn := h.conn
	current := h.connID
	h.mu.Unlock()
	if conn == nil || connID == "" || connID != current {
		return ErrNotConnected
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	return conn.WriteJSON(m)
}

var _ source.Factory = (*Host)(nil)
