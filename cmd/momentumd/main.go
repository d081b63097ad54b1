package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fjaycandido99-afk/momentum/internal/api"
	"github.com/fjaycandido99-afk/momentum/internal/audio"
	"github.com/fjaycandido99-afk/momentum/internal/bridge"
	"github.com/fjaycandido99-afk/momentum/internal/catalog"
	"github.com/fjaycandido99-afk/momentum/internal/config"
	"github.com/fjaycandido99-afk/momentum/internal/engine"
	"github.com/fjaycandido99-afk/momentum/internal/platform"
	"github.com/fjaycandido99-afk/momentum/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "momentumd: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Msg("momentum starting up...")

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Catalog not available")
	}
	log.Info().Int("genres", len(cat.Genres())).Int("soundscapes", len(cat.Soundscapes())).
		Msg("Catalog loaded")

	// Host bridge: remote players and device capabilities
	host := bridge.NewHost(bridge.Options{Origins: cfg.Origins, ClipURL: "/keepalive.wav"})

	// Keepalive: the host loops a clip, WebRTC peers get a live track
	gen := audio.NewGenerator(cfg.KeepaliveFade)
	broadcaster := stream.NewBroadcaster()
	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.ICEServers...)
	clip := stream.NewClipHandler(cfg.ClipLength)

	layer := platform.NewLayer(host.WakeLock(), host.NowPlaying(),
		platform.MultiKeepalive{host.Keepalive(), gen})

	eng := engine.New(engine.Config{
		MusicVolume:      cfg.MusicVolume,
		SoundscapeVolume: cfg.SoundscapeVolume,
		NarrationVolume:  cfg.NarrationVolume,
		MaxFallbacks:     cfg.MaxFallbacks,
		ProgressInterval: cfg.ProgressInterval,
	}, host, cat, layer)

	host.SetConnectFunc(func() {
		layer.Reassert()
		eng.HostAttached()
	})
	host.SetVisibilityFunc(eng.HostVisibility)
	host.SetNavigateFunc(eng.HostNavigation)
	host.SetActionFunc(layer.HandleAction)
	host.SetCommandFunc(func(name string, args json.RawMessage) error {
		return api.Run(ctx, eng, name, args)
	})

	router := api.NewRouter(eng, api.Options{
		JWTSecret: cfg.JWTSecret,
		Connected: host.Connected,
		Bridge:    host,
		Clip:      clip,
		Offer:     webrtcHandler,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		gen.Run(gctx)
		return nil
	})
	g.Go(func() error {
		broadcaster.Run(gctx, gen.Frames())
		return nil
	})
	g.Go(func() error {
		pushState(gctx, eng, host)
		return nil
	})
	if cfg.WatchCatalog {
		g.Go(func() error {
			if err := cat.Watch(gctx); err != nil {
				log.Warn().Err(err).Msg("Catalog hot reload disabled")
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info().Str("addr", addr).Bool("auth", cfg.JWTSecret != "").Msg("momentum live")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")
		host.Close()
		webrtcHandler.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("momentum stopped")
	}
}

// pushState forwards every snapshot to the attached host.
func pushState(ctx context.Context, eng *engine.Engine, host *bridge.Host) {
	sub := eng.Subscribe()
	defer eng.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sub.C:
			if !ok {
				return
			}
			if err := host.PushState(s); err != nil && !errors.Is(err, bridge.ErrNotConnected) {
				log.Debug().Err(err).Msg("State push failed")
			}
		}
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.DurationFieldUnit = time.Millisecond
	if !cfg.LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
