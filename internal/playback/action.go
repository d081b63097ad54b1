package playback

// ActionType names a state transition.
type ActionType int

const (
	ActionNone ActionType = iota

	MusicLoad
	MusicLoaded
	MusicPlaying
	MusicPaused
	MusicEnded
	MusicTimeUpdate
	MusicError
	PauseMusic
	ResumeMusic
	StopMusic

	SoundscapeLoad
	SoundscapeLoaded
	SoundscapePlaying
	SoundscapePaused
	SoundscapeEnded
	SoundscapeError
	PauseSoundscape
	ResumeSoundscape
	StopSoundscape

	NarrationLoad
	NarrationPlaying
	NarrationPaused
	NarrationEnded
	NarrationError
	PauseNarration
	StopNarration

	SetVolume
	EnterSession
	ExitSession
	StopAll
)

var actionNames = map[ActionType]string{
	MusicLoad:         "MUSIC_LOAD",
	MusicLoaded:       "MUSIC_LOADED",
	MusicPlaying:      "MUSIC_PLAYING",
	MusicPaused:       "MUSIC_PAUSED",
	MusicEnded:        "MUSIC_ENDED",
	MusicTimeUpdate:   "MUSIC_TIME_UPDATE",
	MusicError:        "MUSIC_ERROR",
	PauseMusic:        "PAUSE_MUSIC",
	ResumeMusic:       "RESUME_MUSIC",
	StopMusic:         "STOP_MUSIC",
	SoundscapeLoad:    "SOUNDSCAPE_LOAD",
	SoundscapeLoaded:  "SOUNDSCAPE_LOADED",
	SoundscapePlaying: "SOUNDSCAPE_PLAYING",
	SoundscapePaused:  "SOUNDSCAPE_PAUSED",
	SoundscapeEnded:   "SOUNDSCAPE_ENDED",
	SoundscapeError:   "SOUNDSCAPE_ERROR",
	PauseSoundscape:   "PAUSE_SOUNDSCAPE",
	ResumeSoundscape:  "RESUME_SOUNDSCAPE",
	StopSoundscape:    "STOP_SOUNDSCAPE",
	NarrationLoad:     "NARRATION_LOAD",
	NarrationPlaying:  "NARRATION_PLAYING",
	NarrationPaused:   "NARRATION_PAUSED",
	NarrationEnded:    "NARRATION_ENDED",
	NarrationError:    "NARRATION_ERROR",
	PauseNarration:    "PAUSE_NARRATION",
	StopNarration:     "STOP_NARRATION",
	SetVolume:         "SET_VOLUME",
	EnterSession:      "ENTER_SESSION",
	ExitSession:       "EXIT_SESSION",
	StopAll:           "STOP_ALL",
}

// String returns the canonical action name, e.g. MUSIC_TIME_UPDATE.
func (t ActionType) String() string {
	if n, ok := actionNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Reported reports whether the action originates from a remote player
// event, and therefore carries a generation tag that must be checked.
func (t ActionType) Reported() bool {
	switch t {
	case MusicLoaded, MusicPlaying, MusicPaused, MusicEnded, MusicTimeUpdate, MusicError,
		SoundscapeLoaded, SoundscapePlaying, SoundscapePaused, SoundscapeEnded, SoundscapeError,
		NarrationPlaying, NarrationPaused, NarrationEnded, NarrationError:
		return true
	}
	return false
}

// Channel returns the channel an action applies to, or ChannelNone for
// actions spanning several channels.
func (t ActionType) Channel() Channel {
	switch {
	case t >= MusicLoad && t <= StopMusic:
		return ChannelMusic
	case t >= SoundscapeLoad && t <= StopSoundscape:
		return ChannelSoundscape
	case t >= NarrationLoad && t <= StopNarration:
		return ChannelNarration
	}
	return ChannelNone
}

// Action is one immutable state transition request.
type Action struct {
	Type ActionType

	// Gen tags reported actions with the generation of the player that
	// produced them.
	Gen uint64

	Media       string  // video id or narration URL for *_LOAD
	CurrentTime float64 // start position for MUSIC_LOAD, position for MUSIC_TIME_UPDATE
	Duration    float64
	Volume      int
	Channel     Channel // SET_VOLUME target
	Err         string
	// Continue marks a MUSIC_LOAD that follows on from a track that
	// played through.
	Continue bool
}

// Reported builds an adapter-originated action for a channel event.
func Reported(t ActionType, gen uint64) Action {
	return Action{Type: t, Gen: gen}
}
