package stream

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/audio"
)

// ClipHandler serves a short near-silent WAV that hosts loop on an audio
// element. The clip is rendered on first request.
type ClipHandler struct {
	length time.Duration

	once    sync.Once
	data    []byte
	err     error
	modTime time.Time
}

// NewClipHandler creates a handler for a clip of the given length.
func NewClipHandler(length time.Duration) *ClipHandler {
	if length <= 0 {
		length = 2 * time.Second
	}
	return &ClipHandler{length: length}
}

func (h *ClipHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.data, h.err = RenderWAV(audio.Clip(h.length, 1))
		h.modTime = time.Now()
		if h.err == nil {
			log.Debug().Int("bytes", len(h.data)).Dur("length", h.length).Msg("Keepalive clip rendered")
		}
	})
	if h.err != nil {
		log.Error().Err(h.err).Msg("Keepalive clip unavailable")
		http.Error(w, "keepalive clip unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, "keepalive.wav", h.modTime, bytes.NewReader(h.data))
}

// RenderWAV encodes interleaved stereo samples as a 16-bit WAV file.
// The encoder needs to seek back to patch the header, so it writes
// through a temporary file.
func RenderWAV(samples []int16) ([]byte, error) {
	f, err := os.CreateTemp("", "momentum-keepalive-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create clip file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(f, audio.SampleRate, audio.BitDepth, audio.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: audio.Channels, SampleRate: audio.SampleRate},
		Data:           data,
		SourceBitDepth: audio.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode clip: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish clip: %w", err)
	}

	out, err := os.ReadFile(f.Name())
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	return out, nil
}
