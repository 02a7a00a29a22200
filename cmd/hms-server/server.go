package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/calendar"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/websocket"
)

// serverDeps are the services behind the HTTP API. Nil appointment or
// billing services leave their routes unregistered; a nil pinger reports the
// database as disabled.
type serverDeps struct {
	calendar     *calendar.Service
	appointments *appointment.Service
	billing      *billing.Service
	hub          *websocket.Hub
	pinger       db.Pinger
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())

	e.GET("/health", db.HealthHandler(deps.pinger))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	if cfg.AuthMode() == "development" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	if deps.calendar != nil {
		calendar.NewHandler(deps.calendar).RegisterRoutes(apiV1)
	}
	if deps.appointments != nil {
		appointment.NewHandler(deps.appointments).RegisterRoutes(apiV1)
	}
	if deps.billing != nil {
		billing.NewHandler(deps.billing).RegisterRoutes(apiV1)
	}
	// Browsers open the socket with ?access_token= in JWT mode.
	if deps.hub != nil {
		websocket.NewHandler(deps.hub, cfg.CORSOrigins).RegisterRoutes(apiV1)
	}
	return e
}
