package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DilipViharika/PostgresTool-sub003/internal/config"
	"github.com/DilipViharika/PostgresTool-sub003/internal/database"
	"github.com/DilipViharika/PostgresTool-sub003/internal/handler"
	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/mqtt"
	"github.com/DilipViharika/PostgresTool-sub003/internal/notifier"
	"github.com/DilipViharika/PostgresTool-sub003/internal/probe"
	"github.com/DilipViharika/PostgresTool-sub003/internal/repository"
	"github.com/DilipViharika/PostgresTool-sub003/internal/server"
	"github.com/DilipViharika/PostgresTool-sub003/internal/service"
	"github.com/DilipViharika/PostgresTool-sub003/internal/websocket"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger since main logger isn't ready
		panic("Failed to load configuration: " + err.Error())
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: %v", err)
	}

	cfg.Print()
	log.Info("Starting Postgres Health Monitor")

	// 3. Database Connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Info("Database connected successfully")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := repository.EnsureSchema(ctx, db.DB); err != nil {
		log.Fatal("Failed to prepare alert schema: %v", err)
	}

	// 4. Alert Store
	alertRepo := repository.NewAlertRepository(db.DB)

	// 5. Realtime Hub
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	// 6. Notification Dispatcher
	provider := notifier.NewSMTPProvider(cfg.Notification)
	dispatcher := notifier.NewDispatcher(provider, cfg.Notification, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	// 7. Optional MQTT fan-out
	var events service.EventPublisher
	if cfg.MQTT.Enabled {
		publisher := mqtt.NewPublisher(&cfg.MQTT, log)
		if err := publisher.Connect(); err != nil {
			// Fan-out is best-effort; run without it rather than abort.
			log.Error("MQTT fan-out disabled: %v", err)
		} else {
			events = publisher
			defer publisher.Disconnect()
		}
	}

	// 8. Alert Engine
	alertService := service.NewAlertService(alertRepo, hub, dispatcher, events, log)
	hub.SetSnapshotProvider(alertService.Snapshot)

	probes := probe.All(db.DB, cfg.Thresholds.LongQuerySeconds)
	monitorService := service.NewMonitorService(alertService, probes, cfg.Monitor, cfg.Thresholds, log)

	if cfg.Monitor.Enabled {
		monitorService.Start(cfg.Monitor.Interval)
	}
	defer monitorService.Stop()

	// 9. Handlers
	alertHandler := handler.NewAlertHandler(alertService, hub, log)
	monitorHandler := handler.NewMonitorHandler(monitorService, cfg.Monitor.Interval, log)
	notificationHandler := handler.NewNotificationHandler(dispatcher, alertService, log)
	healthHandler := handler.NewHealthHandler(db, monitorService, hub, log)

	// 10. Start HTTP Server
	srv := server.New(cfg, log)
	srv.RegisterHandlers(alertHandler, monitorHandler, notificationHandler, healthHandler)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server failed: %v", err)
		}
	}()

	log.Info("API server ready on http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v", err)
	}

	monitorService.Stop()

	log.Info("Shutdown complete")
}
