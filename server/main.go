package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/app"
	"github.com/phambaophuc/blob-thumbnail/internal/config"
	"github.com/phambaophuc/blob-thumbnail/internal/http/handlers"
	"github.com/phambaophuc/blob-thumbnail/internal/http/routes"
	"github.com/phambaophuc/blob-thumbnail/internal/services/queue"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	logger, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize services
	thumbnails, err := app.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to initialize thumbnail generator", zap.Error(err))
	}
	defer thumbnails.Close()

	var (
		publisher handlers.EventPublisher
		queueSvc  *queue.QueueService
	)
	if cfg.RabbitMQ.URL != "" {
		queueSvc, err = queue.NewQueueService(queue.Options{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Prefetch:   cfg.RabbitMQ.Workers,
			MaxRetries: cfg.RabbitMQ.MaxRetries,
			RetryDelay: cfg.RabbitMQ.RetryDelay,
		}, thumbnails.Handler, logger, thumbnails.Metrics)
		if err != nil {
			// Continue without queue service, events are handled inline
			logger.Warn("Failed to initialize queue service", zap.Error(err))
		} else {
			defer queueSvc.Close()
			publisher = queueSvc

			for i := 1; i <= cfg.RabbitMQ.Workers; i++ {
				if err := queueSvc.StartWorker(ctx, i); err != nil {
					logger.Fatal("Failed to start worker", zap.Int("worker_id", i), zap.Error(err))
				}
			}
		}
	}

	queueHealth := func(context.Context) map[string]string {
		if queueSvc == nil {
			return map[string]string{"rabbitmq": "not configured"}
		}
		return map[string]string{"rabbitmq": queueSvc.HealthCheck()}
	}

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(
		thumbnails.Handler,
		publisher,
		logger,
		thumbnails.Metrics,
		thumbnails.StorageHealth,
		thumbnails.RedisHealth,
		queueHealth,
	)

	router := routes.NewRouter(eventHandler, nil, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      router.SetupRoutes(),
	}

	// Start server
	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop workers before draining HTTP requests
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
