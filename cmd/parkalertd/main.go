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
	"github.com/joho/godotenv"

	"parking-lifecycle-backend/config"
	"parking-lifecycle-backend/internal/api"
	"parking-lifecycle-backend/internal/db"
	"parking-lifecycle-backend/internal/ledger"
	"parking-lifecycle-backend/internal/lifecycle"
	"parking-lifecycle-backend/internal/notification"
	"parking-lifecycle-backend/internal/scanner"
	"parking-lifecycle-backend/internal/source"
	"parking-lifecycle-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "parkalert ", log.LstdFlags)

	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file found, using process environment")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	hub := notification.NewHub()

	notifiers := notification.Multi{hub}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys are not configured; web push notifications are disabled")
	} else {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions)
		pool.Start(ctx)
		notifiers = append(notifiers, pool)
		logger.Printf("notification worker pool started with %d workers", cfg.WorkerPool.Size)
	}
	if cfg.Broker.Enabled {
		notifiers = append(notifiers, notification.NewBrokerNotifier(cfg.Broker))
		logger.Printf("publishing alerts to queue %q", cfg.Broker.Queue)
	}
	notifier := notification.WithRecorder(notifiers, appStore)

	bookings := source.NewHTTPSource(cfg.Source)
	rates := lifecycle.DefaultRates().WithOverrides(cfg.Penalty.Rates)

	scannerSvc, err := scanner.NewService(cfg.Scanner, bookings, notifier, ledger.NewMemory(), rates)
	if err != nil {
		logger.Fatalf("failed to create scanner: %v", err)
	}
	hub.OnConnect(scannerSvc.Trigger)
	go scannerSvc.Run(ctx)

	handler := api.NewHandler(appStore, bookings, scannerSvc, hub, &webpushOptions)
	router := api.NewRouter(cfg.Server, handler)
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
	cancel()
	hub.Stop()
	notifier.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
