// Package web implements the HTTP gateway the chat front end forwards commands to.
package web

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/adopsbot/adopsbot/internal/config"
	accesslog "github.com/adopsbot/adopsbot/internal/logger/adapter/fiber"
	"github.com/adopsbot/adopsbot/internal/web/handler"
	commandhandler "github.com/adopsbot/adopsbot/internal/web/handler/command"
)

// Options carries the collaborators of the gateway.
type Options struct {
	// Dispatcher runs the commands.
	Dispatcher commandhandler.Dispatcher
	// Gatherer is exposed on /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	// LimiterStorage backs the per identity rate limit. Nil keeps counters in memory.
	LimiterStorage fiber.Storage
}

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "adopsbot",
			CaseSensitive:  true,
			Immutable:      true,
			BodyLimit:      64 * 1024,
			ErrorHandler:   errorHandler,
		},
	)

	service := &Service{
		App:          app,
		cfg:          cfg,
		fastShutDown: cfg.DevMode,
	}
	service.alive.Store(true)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: handler.CheckAlivePath,
	}))

	app.Get(handler.CheckAlivePath, service.checkAlive)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	app.Get(handler.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if err := commandhandler.Handler.Init(app, cfg, opts.Dispatcher, opts.LimiterStorage); err != nil {
		return nil, err
	}

	return service, nil
}

// checkAlive reports 503 while the service is shutting down.
func (s *Service) checkAlive(c fiber.Ctx) error {
	if !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}

	return c.SendString("OK")
}

// Start listens on addr until Shutdown is called.
func (s *Service) Start(addr string) error {
	err := s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err //nolint:wrapcheck
	}

	return nil
}

// Shutdown stops the server gracefully.
// Unless in dev mode, /checkalive returns 503 for Webserver.ShutDownTime seconds first,
// so load balancers can take the instance out of rotation.
func (s *Service) Shutdown(ctx context.Context) error {
	s.alive.Store(false)

	if !s.fastShutDown {
		wait := time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second

		log.Info().Dur("wait", wait).Msg("graceful shutdown: returning 503 on checkalive")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.ShutdownWithContext(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().Msg("http server was stopped")

	return nil
}

// errorHandler renders errors as JSON.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
