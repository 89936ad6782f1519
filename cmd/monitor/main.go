package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stellarperps/perpmon/internal/config"
	"github.com/stellarperps/perpmon/internal/infrastructure/logger"
	"github.com/stellarperps/perpmon/internal/infrastructure/notify"
	"github.com/stellarperps/perpmon/internal/infrastructure/oracle"
	"github.com/stellarperps/perpmon/internal/infrastructure/storage"
	"github.com/stellarperps/perpmon/internal/usecase"
	"github.com/stellarperps/perpmon/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Notifier
	notifier := notify.NewWebhookNotifier(cfg.Notifications.URL,
		time.Duration(cfg.Notifications.TimeoutMs)*time.Millisecond)

	// 5. Init Services
	positions := usecase.NewPositionStore(store)
	if err := positions.Load(context.Background()); err != nil {
		log.Fatal("Failed to load positions", zap.Error(err))
	}

	evaluator := usecase.NewLiquidationEvaluator(cfg.Monitor.LiquidationThreshold)
	monitor := usecase.NewMonitorService(positions, evaluator, store, notifier,
		cfg.Monitor.PriceAlertThreshold, log)
	funding := usecase.NewFundingService(monitor, store, notifier,
		cfg.Funding.Volatility, time.Duration(cfg.Funding.IntervalMs)*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 6. Optional REST price poller (fallback ingestion channel)
	if cfg.Oracle.RESTEndpoint != "" {
		poller := oracle.NewPricePoller(cfg.Oracle.RESTEndpoint, cfg.Oracle.VsCurrency,
			cfg.Oracle.AssetIDs, time.Duration(cfg.Oracle.PollMs)*time.Millisecond, log)
		poller.OnPriceUpdate(func(asset string, price float64, timestamp int64) {
			prev := monitor.LastPrice(asset)
			if _, err := monitor.ProcessPriceUpdate(ctx, asset, price, prev, timestamp); err != nil {
				log.Error("Error processing polled price", zap.String("asset", asset), zap.Error(err))
			}
		})
		go poller.Run(ctx)
	}

	// 7. Optional ticker stream (mark prices for funding)
	if cfg.Oracle.WSEndpoint != "" {
		stream := oracle.NewTickerStream(cfg.Oracle.WSEndpoint, log)
		stream.OnPriceUpdate(func(asset string, price float64, timestamp int64) {
			funding.SetMarkPrice(asset, price)
		})
		defer stream.Close()

		// Resubscribe periodically so positions opened at runtime get a feed.
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				assets := positions.ActiveAssets()
				if len(assets) > 0 {
					if err := stream.Subscribe(assets); err != nil {
						log.Error("Failed to subscribe ticker stream", zap.Error(err))
					}
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// 8. Funding Loop
	go funding.Run(ctx)

	// 9. Web Server
	server := web.NewServer(web.Options{
		Port:             cfg.Server.Port,
		VerifySignature:  cfg.Webhook.VerifySignature,
		TrustedVerifiers: cfg.Webhook.TrustedVerifiers,
		RateLimitPerSec:  cfg.Webhook.RateLimitPerSec,
		RateLimitBurst:   cfg.Webhook.RateLimitBurst,
	}, positions, monitor, store, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 10. Wait for Shutdown
	<-stop

	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	monitor.Close()
}
