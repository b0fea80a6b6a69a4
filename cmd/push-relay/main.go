// cmd/push-relay/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"push-relay/internal/api"
	awsclient "push-relay/internal/common/aws"
	"push-relay/internal/common/config"
	httpclient "push-relay/internal/common/http"
	"push-relay/internal/common/logger"
	"push-relay/internal/common/observability"
	"push-relay/internal/devices"
	"push-relay/internal/push"
	"push-relay/internal/storage"
	"push-relay/internal/webhooks"

	"github.com/benbjohnson/clock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console", "stderr")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting push relay...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("pushProvider", cfg.Push.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	indexes := storage.Indexes{webhooks.Collection: {webhooks.UserIDField}}
	store, closeStore, err := storage.Open(ctx, cfg.Storage, indexes, log)
	if err != nil {
		zapLog.Fatal("storage init failed", zap.Error(err))
	}
	defer closeStore()
	store = storage.WithTimeout(store, config.GetDuration(cfg.Storage.Timeout))

	// --- Push gateway ---
	gateway, err := newGateway(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("push gateway init failed", zap.Error(err))
	}

	// --- Observability ---
	var obs *observability.Observability
	metricsPath := ""
	if cfg.Metrics.Enabled {
		obs = observability.New(cfg.App.Name)
		defer obs.Shutdown()
		metricsPath = cfg.Metrics.Path
	}

	clk := clock.New()
	deviceRegistry := devices.NewRegistry(store, clk, log)
	webhookRegistry := webhooks.NewRegistry(store, clk, log)
	dispatcher := push.NewDispatcher(gateway, log, config.GetDuration(cfg.Push.Timeout))
	notifier := webhooks.NewNotifier(
		webhookRegistry,
		httpclient.NewClient(config.GetDuration(cfg.Webhooks.Timeout), cfg.Webhooks.UserAgent),
		clk,
		log,
		config.GetDuration(cfg.Webhooks.Timeout),
	)

	handler := api.NewHandler(deviceRegistry, webhookRegistry, dispatcher, notifier, clk, log)
	app := api.NewServer(handler, obs, log, api.Options{
		AppName:      cfg.App.Name,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		BodyLimit:    cfg.Server.BodyLimit,
		MetricsPath:  metricsPath,
	})

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address()))
		if err := app.Listen(cfg.Server.Address()); err != nil {
			zapLog.Error("HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down push relay...")

	if err := app.ShutdownWithTimeout(config.GetDuration(cfg.Server.ShutdownTimeout)); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	// Webhook deliveries carry their own timeout, so this is bounded.
	notifier.Wait()
	zapLog.Info("Push relay stopped")
}

func newGateway(ctx context.Context, cfg *config.Config, log logger.Logger) (push.Gateway, error) {
	switch cfg.Push.Provider {
	case config.ProviderLog:
		log.Warn("Using log push gateway; no messages will reach devices", nil)
		return push.NewLogGateway(log), nil
	case config.ProviderSNS:
		client, err := awsclient.NewSNSClient(ctx, cfg.Push.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		log.Info("Using SNS push gateway", map[string]interface{}{"region": cfg.Push.AWS.Region})
		return push.NewSNSGateway(client, cfg.Push.AWS.PlatformApplicationARN, log), nil
	default:
		return nil, fmt.Errorf("unsupported push provider: %s", cfg.Push.Provider)
	}
}
