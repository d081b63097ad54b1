// Package playback holds the single authoritative model of what is playing.
//
// All three channels (music, soundscape, narration) are described by one
// AudioState value. The state only changes through Reduce, driven by Actions
// that the coordinator and the source adapters submit to a Store.
package playback

// Channel identifies one of the independent audio roles.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelMusic
	ChannelSoundscape
	ChannelNarration
)

// Channels lists every playable channel in priority order, lowest first.
var Channels = []Channel{ChannelMusic, ChannelSoundscape, ChannelNarration}

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelMusic:
		return "music"
	case ChannelSoundscape:
		return "soundscape"
	case ChannelNarration:
		return "narration"
	default:
		return "none"
	}
}

// ParseChannel maps a channel name back to its Channel.
func ParseChannel(s string) (Channel, bool) {
	for _, c := range Channels {
		if c.String() == s {
			return c, true
		}
	}
	return ChannelNone, false
}

// MusicState is the background-music channel.
type MusicState struct {
	Playing          bool    `json:"playing"`
	VideoID          string  `json:"video_id,omitempty"`
	ReadyForPlayback bool    `json:"ready_for_playback"`
	CurrentTime      float64 `json:"current_time"`
	Duration         float64 `json:"duration"`

	Volume     int    `json:"volume"`
	Held       bool   `json:"held"` // paused, expected to resume
	Error      string `json:"error,omitempty"`
	Generation uint64 `json:"generation"`
	// Advancing is set while the next playlist track loads after the
	// previous one played through.
	Advancing bool `json:"advancing,omitempty"`
}

// SoundscapeState is the ambient soundscape channel.
type SoundscapeState struct {
	Playing          bool   `json:"playing"`
	VideoID          string `json:"video_id,omitempty"`
	ReadyForPlayback bool   `json:"ready_for_playback"`

	Volume     int    `json:"volume"`
	Held       bool   `json:"held"`
	Error      string `json:"error,omitempty"`
	Generation uint64 `json:"generation"`
}

// NarrationState is the spoken guide channel.
type NarrationState struct {
	Playing      bool    `json:"playing"`
	SourceURL    string  `json:"source_url,omitempty"`
	DurationHint float64 `json:"duration_hint,omitempty"`

	Volume     int    `json:"volume"`
	Held       bool   `json:"held"`
	Error      string `json:"error,omitempty"`
	Generation uint64 `json:"generation"`
}

// Suspension records which ambient channels a guided session silenced.
type Suspension struct {
	Active     bool `json:"active"`
	Music      bool `json:"music"`
	Soundscape bool `json:"soundscape"`
}

// AudioState is the complete playback model.
type AudioState struct {
	Music      MusicState      `json:"music"`
	Soundscape SoundscapeState `json:"soundscape"`
	Narration  NarrationState  `json:"narration"`

	// HomeAudioActive is true when anything is playing or held for resume.
	HomeAudioActive        bool       `json:"home_audio_active"`
	SuspendedForForeground Suspension `json:"suspended_for_foreground"`
}

// channelView is the part of a channel's state shared by all three.
type channelView struct {
	playing bool
	held    bool
	gen     uint64
	media   string
	err     string
}

func (s AudioState) view(c Channel) channelView {
	switch c {
	case ChannelMusic:
		m := s.Music
		return channelView{m.Playing, m.Held, m.Generation, m.VideoID, m.Error}
	case ChannelSoundscape:
		m := s.Soundscape
		return channelView{m.Playing, m.Held, m.Generation, m.VideoID, m.Error}
	case ChannelNarration:
		m := s.Narration
		return channelView{m.Playing, m.Held, m.Generation, m.SourceURL, m.Error}
	}
	return channelView{}
}

// Playing reports whether the given channel is audible.
func (s AudioState) Playing(c Channel) bool { return s.view(c).playing }

// Active reports whether the channel is audible or moving straight on to
// its next track.
func (s AudioState) Active(c Channel) bool {
	return s.Playing(c) || (c == ChannelMusic && s.Music.Advancing)
}

// Held reports whether the channel is paused but expected to resume.
func (s AudioState) Held(c Channel) bool { return s.view(c).held }

// Generation returns the current load generation of a channel.
func (s AudioState) Generation(c Channel) uint64 { return s.view(c).gen }

// Media returns the content identifier loaded on a channel.
func (s AudioState) Media(c Channel) string { return s.view(c).media }

// Err returns the channel's error message, empty when healthy.
func (s AudioState) Err(c Channel) string { return s.view(c).err }

// AnyPlaying reports whether at least one channel is audible.
func (s AudioState) AnyPlaying() bool {
	return s.Music.Playing || s.Soundscape.Playing || s.Narration.Playing
}

// AnyActive is AnyPlaying, also counting music between playlist tracks.
func (s AudioState) AnyActive() bool { return s.AnyPlaying() || s.Music.Advancing }

// Owner returns the channel entitled to the now-playing surface.
// Narration always wins while it plays; otherwise music takes precedence
// over soundscape, and playing channels over held ones.
func (s AudioState) Owner() Channel {
	for _, c := range []Channel{ChannelNarration, ChannelMusic, ChannelSoundscape} {
		if s.Active(c) {
			return c
		}
	}
	for _, c := range []Channel{ChannelNarration, ChannelMusic, ChannelSoundscape} {
		if s.Held(c) {
			return c
		}
	}
	return ChannelNone
}
