package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fjaycandido99-afk/momentum/internal/playback"
)

var (
	// ErrUnknownCommand is returned for a command name with no handler.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBadRequest marks malformed command arguments.
	ErrBadRequest = errors.New("bad request")
)

// Controller is the engine surface the API drives.
type Controller interface {
	PlayMusic(ctx context.Context, genre string) error
	PlayPlaylist(ctx context.Context, ids []string) error
	PauseMusic() error
	ResumeMusic() error
	StopMusic() error
	SkipMusic(ctx context.Context) error
	SetMusicVolume(v int) error

	PlaySoundscape(ctx context.Context, id string) error
	PauseSoundscape() error
	ResumeSoundscape() error
	StopSoundscape() error
	SkipSoundscape(ctx context.Context) error
	SetSoundscapeVolume(v int) error

	PlayNarration(url string, durationHint float64, title string) error
	PauseNarration() error
	ResumeNarration() error
	StopNarration() error
	SetNarrationVolume(v int) error

	EnterGuidedSession() error
	ExitGuidedSession() error
	StopAll() error

	Snapshot() playback.AudioState
}

type args struct {
	Genre    string   `json:"genre"`
	Tracks   []string `json:"tracks"`
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Duration float64  `json:"duration"`
	Title    string   `json:"title"`
	Volume   *int     `json:"volume"`
}

type command func(ctx context.Context, c Controller, a args) error

func noArgs(f func(Controller) error) command {
	return func(_ context.Context, c Controller, _ args) error { return f(c) }
}

func volume(f func(Controller, int) error) command {
	return func(_ context.Context, c Controller, a args) error {
		if a.Volume == nil {
			return fmt.Errorf("%w: volume is required", ErrBadRequest)
		}
		return f(c, *a.Volume)
	}
}

var commands = map[string]command{
	"music/play": func(ctx context.Context, c Controller, a args) error {
		if strings.TrimSpace(a.Genre) == "" {
			return fmt.Errorf("%w: genre is required", ErrBadRequest)
		}
		return c.PlayMusic(ctx, a.Genre)
	},
	"music/playlist": func(ctx context.Context, c Controller, a args) error {
		if len(a.Tracks) == 0 {
			return fmt.Errorf("%w: tracks are required", ErrBadRequest)
		}
		return c.PlayPlaylist(ctx, a.Tracks)
	},
	"music/pause":  noArgs(Controller.PauseMusic),
	"music/resume": noArgs(Controller.ResumeMusic),
	"music/stop":   noArgs(Controller.StopMusic),
	"music/skip": func(ctx context.Context, c Controller, _ args) error {
		return c.SkipMusic(ctx)
	},
	"music/volume": volume(Controller.SetMusicVolume),

	"soundscape/play": func(ctx context.Context, c Controller, a args) error {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("%w: id is required", ErrBadRequest)
		}
		return c.PlaySoundscape(ctx, a.ID)
	},
	"soundscape/pause":  noArgs(Controller.PauseSoundscape),
	"soundscape/resume": noArgs(Controller.ResumeSoundscape),
	"soundscape/stop":   noArgs(Controller.StopSoundscape),
	"soundscape/skip": func(ctx context.Context, c Controller, _ args) error {
		return c.SkipSoundscape(ctx)
	},
	"soundscape/volume": volume(Controller.SetSoundscapeVolume),

	"narration/play": func(_ context.Context, c Controller, a args) error {
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: url is required", ErrBadRequest)
		}
		if a.Duration < 0 {
			return fmt.Errorf("%w: duration must not be negative", ErrBadRequest)
		}
		return c.PlayNarration(a.URL, a.Duration, a.Title)
	},
	"narration/pause":  noArgs(Controller.PauseNarration),
	"narration/resume": noArgs(Controller.ResumeNarration),
	"narration/stop":   noArgs(Controller.StopNarration),
	"narration/volume": volume(Controller.SetNarrationVolume),

	"session/enter": noArgs(Controller.EnterGuidedSession),
	"session/exit":  noArgs(Controller.ExitGuidedSession),
	"stop":          noArgs(Controller.StopAll),
}

// Commands lists every command name, sorted.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named command with JSON arguments. Empty arguments
// are allowed for commands that take none.
func Run(ctx context.Context, c Controller, name string, raw json.RawMessage) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	var a args
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
	}
	return cmd(ctx, c, a)
}
