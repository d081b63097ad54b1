// Package api serves the HTTP control surface: inbound commands for every
// channel and the current state snapshot.
package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fjaycandido99-afk/momentum/internal/catalog"
	"github.com/fjaycandido99-afk/momentum/internal/engine"
)

// Options configures the router.
type Options struct {
	// JWTSecret enables HS256 bearer auth on /api except health.
	JWTSecret string
	// Connected reports whether a view host is attached.
	Connected func() bool

	// Mounted outside /api when set.
	Bridge http.Handler // host bridge WebSocket
	Clip   http.Handler // keepalive WAV
	Offer  http.Handler // keepalive WebRTC offers
}

// NewRouter builds the HTTP router.
func NewRouter(c Controller, opts Options) *echo.Echo {
	r := echo.New()
	r.HTTPErrorHandler = errorHandler
	r.Use(middleware.Recover())
	r.Use(requestLogger)

	if opts.Bridge != nil {
		r.GET("/bridge", echo.WrapHandler(opts.Bridge))
	}
	if opts.Clip != nil {
		r.GET("/keepalive.wav", echo.WrapHandler(opts.Clip))
	}
	if opts.Offer != nil {
		r.Any("/keepalive/offer", echo.WrapHandler(opts.Offer))
	}

	router := r.Group("/api")
	router.GET("/health", func(ctx echo.Context) error {
		resp := echo.Map{"status": "ok"}
		if opts.Connected != nil {
			resp["host_connected"] = opts.Connected()
		}
		return ctx.JSON(http.StatusOK, resp)
	})

	authed := router.Group("")
	if opts.JWTSecret != "" {
		authed.Use(middleware.JWTWithConfig(middleware.JWTConfig{
			SigningKey:    []byte(opts.JWTSecret),
			SigningMethod: middleware.AlgorithmHS256,
		}))
		authed.Use(logClaims)
	}

	authed.GET("/state", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, c.Snapshot())
	})
	for _, name := range Commands() {
		authed.POST("/"+name, commandHandler(c, name))
	}
	return r
}

func commandHandler(c Controller, name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, 64<<10))
		if err != nil {
			return err
		}
		if err := Run(ctx.Request().Context(), c, name, body); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, echo.Map{"ok": true, "state": c.Snapshot()})
	}
}

// StatusCode maps a command error to an HTTP status.
func StatusCode(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, catalog.ErrUnknown), errors.Is(err, ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, engine.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNothingQueued), errors.Is(err, engine.ErrSuperseded),
		errors.Is(err, catalog.ErrExhausted):
		return http.StatusConflict
	case errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(err error, ctx echo.Context) {
	code := StatusCode(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if s, ok := he.Message.(string); ok {
			msg = s
		}
	}
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.Path()).Msg("Request failed")
	}
	if ctx.Response().Committed {
		return
	}
	if err := ctx.JSON(code, echo.Map{"error": msg}); err != nil {
		log.Warn().Err(err).Msg("Error response not written")
	}
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		status := ctx.Response().Status
		if err != nil {
			status = StatusCode(err)
		}
		log.Debug().
			Str("method", ctx.Request().Method).
			Str("uri", ctx.Request().RequestURI).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("HTTP request")
		return err
	}
}

// logClaims records who issued the request. The JWT middleware has
// already validated the token.
func logClaims(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if tok, ok := ctx.Get("user").(*jwt.Token); ok {
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				user, _ := claims["sub"].(string)
				if user == "" {
					user, _ = claims["user_id"].(string)
				}
				log.Info().Str("user", user).Str("path", ctx.Path()).Msg("Authorized request")
			}
		}
		return next(ctx)
	}
}
