// Package command implements the endpoint receiving chat commands.
package command

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/rs/zerolog/log"

	botcommand "github.com/adopsbot/adopsbot/internal/command"
	"github.com/adopsbot/adopsbot/internal/config"
	accesslog "github.com/adopsbot/adopsbot/internal/logger/adapter/fiber"
	"github.com/adopsbot/adopsbot/internal/permission"
	"github.com/adopsbot/adopsbot/internal/web/handler"
	"github.com/adopsbot/adopsbot/internal/web/middleware/auth"
)

const requestLocal = "commandRequest"

// Dispatcher runs one chat command.
type Dispatcher interface {
	Dispatch(ctx context.Context, identity permission.Identity, text string) botcommand.Reply
}

// Request is the body of a command request.
type Request struct {
	// Identity is the chat platform user id of the sender.
	Identity int64 `json:"identity" validate:"required"`
	// Text is the message, e.g. "/unlockuser IvanovVP".
	Text string `json:"text" validate:"required,max=4096"`
}

// Response is the body of a command response.
type Response struct {
	Success bool `json:"success"`
	// Messages are the reply split into chat sized parts.
	Messages []string `json:"messages"`
	// ExpireAfterSeconds is set when the messages hold a secret and must be removed after that time.
	ExpireAfterSeconds int `json:"expireAfterSeconds,omitempty"`
}

// Service is the command handler service.
type Service struct {
	cfg        *config.Config
	dispatcher Dispatcher
	validator  *validator.Validate
}

// Handler is the command handler.
var Handler = Service{}

// Init registers the command route.
func (s *Service) Init(app *fiber.App, cfg *config.Config, dispatcher Dispatcher, storage fiber.Storage) error {
	if app == nil || cfg == nil || dispatcher == nil {
		return errors.New("app, cfg or dispatcher is nil")
	}

	s.cfg = cfg
	s.dispatcher = dispatcher
	s.validator = validator.New()

	limit := func(c fiber.Ctx) error { return c.Next() }

	if cfg.Webserver.RateLimit > 0 {
		limit = limiter.New(limiter.Config{
			Max:        cfg.Webserver.RateLimit,
			Expiration: time.Duration(cfg.Webserver.RateLimitWindow) * time.Second,
			KeyGenerator: func(c fiber.Ctx) string {
				return "command:" + strconv.FormatInt(fiber.Locals[int64](c, accesslog.IdentityLocal), 10)
			},
			LimitReached: func(_ fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many commands, try again later")
			},
			Storage: storage,
		})
	}

	app.Post(handler.CommandPath, auth.New(cfg.Webserver.APITokenHash), s.bind, limit, s.Post)

	return nil
}

// bind decodes and validates the body, and stores it for the next handlers.
func (s *Service) bind(c fiber.Ctx) error {
	var req Request

	if err := c.Bind().JSON(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	c.Locals(accesslog.IdentityLocal, req.Identity)
	c.Locals(requestLocal, req)

	return c.Next()
}

// Post runs the command and returns the reply.
func (s *Service) Post(c fiber.Ctx) error {
	req, ok := c.Locals(requestLocal).(Request)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "missing request")
	}

	reply := s.dispatcher.Dispatch(c.Context(), permission.Identity(req.Identity), req.Text)

	log.Debug().
		Int64("identity", req.Identity).
		Bool("success", reply.Success).
		Msg("command handled")

	return c.JSON(Response{
		Success:            reply.Success,
		Messages:           reply.Chunks(botcommand.MaxMessageLength),
		ExpireAfterSeconds: int(reply.ExpireAfter / time.Second),
	})
}
