package playback

// Reduce applies one action to a state and returns the resulting state.
// It performs no I/O and reads no clock, so replaying the same action
// sequence from the same initial state always yields the same result.
func Reduce(s AudioState, a Action) AudioState {
	if a.Type.Reported() && a.Gen != s.Generation(a.Type.Channel()) {
		// superseded load or stopped channel
		return s
	}

	switch a.Type {
	case MusicLoad:
		continuing := a.Continue && s.Active(ChannelMusic)
		s.Music = MusicState{
			VideoID:     a.Media,
			CurrentTime: a.CurrentTime,
			Duration:    a.Duration,
			Volume:      s.Music.Volume,
			Generation:  s.Music.Generation + 1,
		}
		clampTime(&s.Music)
		if s.SuspendedForForeground.Active {
			s.SuspendedForForeground.Music = true
			s.Music.Held = true
		} else {
			s.Music.Advancing = continuing
		}
	case MusicLoaded:
		s.Music.ReadyForPlayback = true
	case MusicPlaying:
		if !s.Music.ReadyForPlayback {
			break
		}
		s.Music.Advancing = false
		if s.SuspendedForForeground.Active {
			// the coordinator pauses it again; restore it on exit
			s.Music.Held = true
			s.SuspendedForForeground.Music = true
			break
		}
		s.Music.Playing = true
		s.Music.Held = false
		s.Music.Error = ""
	case MusicPaused:
		s.Music.Playing = false
		s.Music.Advancing = false
	case MusicEnded:
		// the adapter loops or advances right after, so the channel
		// stays playing
		s.Music.CurrentTime = s.Music.Duration
	case MusicTimeUpdate:
		if a.Duration > 0 {
			s.Music.Duration = a.Duration
		}
		s.Music.CurrentTime = a.CurrentTime
		clampTime(&s.Music)
	case MusicError:
		s.Music.Playing = false
		s.Music.Advancing = false
		s.Music.Held = false
		s.Music.Error = a.Err
	case PauseMusic:
		if s.Music.VideoID == "" {
			break
		}
		s.Music.Playing = false
		s.Music.Advancing = false
		s.Music.Held = true
		s.SuspendedForForeground.Music = false
	case ResumeMusic:
		if s.Music.VideoID == "" {
			break
		}
		s.Music.Held = true
		if s.SuspendedForForeground.Active {
			s.SuspendedForForeground.Music = true
		}
	case StopMusic:
		s = stopMusic(s)

	case SoundscapeLoad:
		s.Soundscape = SoundscapeState{
			VideoID:    a.Media,
			Volume:     s.Soundscape.Volume,
			Generation: s.Soundscape.Generation + 1,
		}
		if s.SuspendedForForeground.Active {
			s.SuspendedForForeground.Soundscape = true
			s.Soundscape.Held = true
		}
	case SoundscapeLoaded:
		s.Soundscape.ReadyForPlayback = true
	case SoundscapePlaying:
		if !s.Soundscape.ReadyForPlayback {
			break
		}
		if s.SuspendedForForeground.Active {
			// the coordinator pauses it again; restore it on exit
			s.Soundscape.Held = true
			s.SuspendedForForeground.Soundscape = true
			break
		}
		s.Soundscape.Playing = true
		s.Soundscape.Held = false
		s.Soundscape.Error = ""
	case SoundscapePaused:
		s.Soundscape.Playing = false
	case SoundscapeEnded:
		// looped by the adapter
	case SoundscapeError:
		s.Soundscape.Playing = false
		s.Soundscape.Held = false
		s.Soundscape.Error = a.Err
	case PauseSoundscape:
		if s.Soundscape.VideoID == "" {
			break
		}
		s.Soundscape.Playing = false
		s.Soundscape.Held = true
		s.SuspendedForForeground.Soundscape = false
	case ResumeSoundscape:
		if s.Soundscape.VideoID == "" {
			break
		}
		s.Soundscape.Held = true
		if s.SuspendedForForeground.Active {
			s.SuspendedForForeground.Soundscape = true
		}
	case StopSoundscape:
		s = stopSoundscape(s)

	case NarrationLoad:
		s.Narration = NarrationState{
			SourceURL:    a.Media,
			DurationHint: a.Duration,
			Volume:       s.Narration.Volume,
			Generation:   s.Narration.Generation + 1,
		}
	case NarrationPlaying:
		s.Narration.Playing = true
		s.Narration.Held = false
		s.Narration.Error = ""
	case NarrationPaused, PauseNarration:
		if s.Narration.SourceURL == "" {
			break
		}
		s.Narration.Playing = false
		s.Narration.Held = true
	case NarrationEnded:
		s.Narration.Playing = false
		s.Narration.Held = false
	case NarrationError:
		s.Narration.Playing = false
		s.Narration.Held = false
		s.Narration.Error = a.Err
	case StopNarration:
		s = stopNarration(s)

	case SetVolume:
		v := ClampVolume(a.Volume)
		switch a.Channel {
		case ChannelMusic:
			s.Music.Volume = v
		case ChannelSoundscape:
			s.Soundscape.Volume = v
		case ChannelNarration:
			s.Narration.Volume = v
		}
	case EnterSession:
		if s.SuspendedForForeground.Active {
			break
		}
		s.SuspendedForForeground = Suspension{
			Active:     true,
			Music:      s.Active(ChannelMusic),
			Soundscape: s.Soundscape.Playing,
		}
		if s.Active(ChannelMusic) {
			s.Music.Playing = false
			s.Music.Advancing = false
			s.Music.Held = true
		}
		if s.Soundscape.Playing {
			s.Soundscape.Playing = false
			s.Soundscape.Held = true
		}
	case ExitSession:
		s.SuspendedForForeground = Suspension{}
	case StopAll:
		s = stopMusic(s)
		s = stopSoundscape(s)
		s = stopNarration(s)
		s.SuspendedForForeground = Suspension{}
	}

	s.HomeAudioActive = s.AnyActive() || s.Music.Held || s.Soundscape.Held || s.Narration.Held
	return s
}

// ClampVolume bounds a volume to 0–100.
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// clampTime keeps 0 <= CurrentTime <= Duration. An unknown duration
// follows the reported position.
func clampTime(m *MusicState) {
	if m.CurrentTime < 0 {
		m.CurrentTime = 0
	}
	if m.Duration < 0 {
		m.Duration = 0
	}
	if m.CurrentTime > m.Duration {
		if m.Duration > 0 {
			m.CurrentTime = m.Duration
		} else {
			m.Duration = m.CurrentTime
		}
	}
}

func stopMusic(s AudioState) AudioState {
	s.SuspendedForForeground.Music = false
	if (s.Music == MusicState{Volume: s.Music.Volume, Generation: s.Music.Generation}) {
		return s
	}
	s.Music = MusicState{Volume: s.Music.Volume, Generation: s.Music.Generation + 1}
	return s
}

func stopSoundscape(s AudioState) AudioState {
	s.SuspendedForForeground.Soundscape = false
	if (s.Soundscape == SoundscapeState{Volume: s.Soundscape.Volume, Generation: s.Soundscape.Generation}) {
		return s
	}
	s.Soundscape = SoundscapeState{Volume: s.Soundscape.Volume, Generation: s.Soundscape.Generation + 1}
	return s
}

func stopNarration(s AudioState) AudioState {
	if (s.Narration == NarrationState{Volume: s.Narration.Volume, Generation: s.Narration.Generation}) {
		return s
	}
	s.Narration = NarrationState{Volume: s.Narration.Volume, Generation: s.Narration.Generation + 1}
	return s
}
