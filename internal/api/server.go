package api

import (
	"time"

	"push-relay/internal/common/logger"
	"push-relay/internal/common/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the fiber application.
type Options struct {
	AppName      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
	// MetricsPath serves the prometheus registry when set.
	MetricsPath string
}

// NewServer builds the application with every route registered.
func NewServer(h *Handler, obs *observability.Observability, log logger.Logger, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               opts.AppName,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger(log, obs))

	app.Get("/health", h.Health)
	if opts.MetricsPath != "" {
		app.Get(opts.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Post("/register-device", h.RegisterDevice)
	app.Post("/unregister-device", h.UnregisterDevice)

	app.Post("/send-sms", h.SendSMS)
	app.Post("/send-notification", h.SendNotification)
	app.Post("/send-notification-multiple", h.SendNotificationMultiple)
	app.Post("/send-to-topic", h.SendToTopic)
	app.Post("/subscribe-to-topic", h.SubscribeToTopic)

	app.Post("/register-webhook", h.RegisterWebhook)
	app.Post("/unregister-webhook", h.UnregisterWebhook)
	app.Get("/webhooks/:userId", h.ListWebhooks)
	app.Post("/send-webhook-logs", h.SendWebhookLogs)

	return app
}
