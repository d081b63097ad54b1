package audio

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Generator emits keepalive frames in real time while started. Stopped,
// it emits nothing and listeners hear silence.
type Generator struct {
	frameCh chan []int16
	fade    time.Duration

	mu      sync.Mutex
	running bool
	sent    int // frames since the last Start
	rng     *rand.Rand
}

// NewGenerator creates a stopped generator. Every Start ramps the noise
// floor up over fade.
func NewGenerator(fade time.Duration) *Generator {
	return &Generator{
		frameCh: make(chan []int16, 100),
		fade:    fade,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
	}
}

// Frames returns the frame channel. It is closed when Run returns.
func (g *Generator) Frames() <-chan []int16 {
	return g.frameCh
}

// Start begins emitting. Starting a running generator is a no-op.
func (g *Generator) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		g.running = true
		g.sent = 0
		log.Debug().Msg("Keepalive generator started")
	}
	return nil
}

// Stop halts emission.
func (g *Generator) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.running = false
		log.Debug().Int("frames", g.sent).Msg("Keepalive generator stopped")
	}
	return nil
}

// Running reports whether the generator is emitting.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Run paces frames out every FrameDuration until ctx is done.
func (g *Generator) Run(ctx context.Context) {
	defer close(g.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := g.next()
		if frame == nil {
			continue
		}
		select {
		case g.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// next renders the next frame, or nil while stopped.
func (g *Generator) next() []int16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return nil
	}

	frame := make([]int16, FrameSamples)
	Dither(g.rng, frame, DitherAmplitude)
	if g.fade > 0 {
		if progress := float64(time.Duration(g.sent)*FrameDuration) / float64(g.fade); progress < 1 {
			frame = FadeIn(frame, progress)
		}
	}
	g.sent++
	return frame
}
