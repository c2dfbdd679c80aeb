package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/imaker-dev/restro-backend-sub004/config"
	"github.com/imaker-dev/restro-backend-sub004/internal/api"
	"github.com/imaker-dev/restro-backend-sub004/internal/db"
	"github.com/imaker-dev/restro-backend-sub004/internal/escpos"
	"github.com/imaker-dev/restro-backend-sub004/internal/netprint"
	"github.com/imaker-dev/restro-backend-sub004/internal/notify"
	"github.com/imaker-dev/restro-backend-sub004/internal/queue"
	"github.com/imaker-dev/restro-backend-sub004/internal/registry"
	"github.com/imaker-dev/restro-backend-sub004/internal/status"
)

func main() {
	logger := log.New(os.Stdout, "printerd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys not configured; operator push alerts are disabled")
	}

	reg := registry.New(gormDB)
	hub := notify.NewHub()
	alerts := notify.NewAlertPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
	alerts.Start(ctx)

	q := queue.New(gormDB, reg, cfg.Print.MaxAttempts, hub, alerts)
	netClient := netprint.NewClient(cfg.Print.SettleDelay)
	tracker := status.New(reg, netClient, cfg.Print.ProbeTimeout, cfg.Print.StatusStaleWindow, cfg.Print.BridgeOnlineWindow)

	// Rasterize the outlet logo once at startup. A failure here degrades
	// receipts to no logo, it never blocks printing.
	var logo []byte
	if cfg.Print.Logo.Source != "" {
		logo, err = escpos.ImageToBitmap(cfg.Print.Logo.Source, escpos.BitmapOptions{
			MaxWidth:  cfg.Print.Logo.MaxWidth,
			MaxHeight: cfg.Print.Logo.MaxHeight,
			Threshold: cfg.Print.Logo.Threshold,
		})
		if err != nil {
			logger.Printf("Warning: failed to rasterize logo %q: %v; receipts will print without it", cfg.Print.Logo.Source, err)
			logo = nil
		}
	}

	handler := api.NewHandler(reg, q, tracker, netClient, hub, webpushOptions, cfg.Print, logo)
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
