package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatcart/pkg/channel"
	"chatcart/pkg/channel/telegram"
	"chatcart/pkg/commerce"
	"chatcart/pkg/config"
	"chatcart/pkg/engine"
	"chatcart/pkg/gateway"
	"chatcart/pkg/logger"
	"chatcart/pkg/store"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

const telegramChannelName = "telegram"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run channel gateway mode",
	Long:  "Runs ChatCart as a channel gateway with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.gateway")

		adapter, adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return
		}

		kv := store.NewRedisKV(cfg.Redis)
		defer kv.Close()
		flows := store.NewRedisFlowStore(kv)

		shop, err := commerceStore(cfg)
		if err != nil {
			log.Error("Failed to open commerce store", "error", err)
			return
		}
		defer shop.Close()

		telemetry, err := engine.NewOTelTelemetry(otel.GetMeterProvider().Meter("chatcart"))
		if err != nil {
			log.Error("Failed to initialize telemetry", "error", err)
			return
		}

		eng := engine.New(engine.Deps{
			Config:    cfg.Engine,
			Commerce:  cfg.Commerce,
			KV:        kv,
			Flows:     flows,
			Shop:      shop,
			Sender:    adapter,
			Logger:    log,
			Telemetry: telemetry,
		})

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, eng, kv, adapters, log)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "redis", cfg.Redis.Addr, "database", cfg.Database.Path)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

// enabledAdapters builds the configured channel adapters and returns
// the one the engine replies through. With a single channel enabled
// the sender is that channel's adapter.
func enabledAdapters(cfg *config.Config, log *slog.Logger) (channel.Sender, []channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)
	var sender channel.Sender

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
		sender = adapter
	}

	if len(adapters) == 0 {
		return nil, nil, errors.New("no channels are enabled")
	}

	return sender, adapters, nil
}

func commerceStore(cfg *config.Config) (*commerce.SQLiteStore, error) {
	path := strings.TrimSpace(cfg.Database.Path)
	if path == "" {
		path = "chatcart.db"
	}

	return commerce.OpenSQLite(path)
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
