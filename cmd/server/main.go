package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/infrastructure/kafka"
	"gigmarket/internal/infrastructure/logger"
	"gigmarket/internal/infrastructure/metrics"
	"gigmarket/internal/infrastructure/mysql"
	"gigmarket/internal/notification"
	notificationsvc "gigmarket/internal/notification/service"
	"gigmarket/internal/order"
	"gigmarket/internal/promotion"
	"gigmarket/internal/review"
	"gigmarket/internal/server"
)

func main() {
	cfg, err := commons.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mysql.Migrate(migrateCtx, db); err != nil {
		cancelMigrate()
		zapLogger.Fatal("migrating schema", zap.Error(err))
	}
	cancelMigrate()

	m := metrics.New()
	tx := mysql.NewTransactor(db, zapLogger, cfg.Storage.TxTimeout, cfg.Storage.MaxRetryAttempts).WithObserver(m)

	var publisher notificationsvc.EventPublisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled() {
		p := kafka.NewPublisher(cfg.Kafka)
		defer p.Close()
		publisher = p
		zapLogger.Info("publishing notification events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	notifications := notification.NewModule(db, tx, publisher, m, zapLogger)
	promotions := promotion.NewModule(db, tx, notifications.Dispatcher, m, zapLogger)
	notifications.Dispatcher.WithRequestResolver(promotions.Workflow)

	controllers := server.Controllers{
		Orders:        order.NewModule(db, tx, notifications.Dispatcher, m, zapLogger),
		Reviews:       review.NewModule(db, tx, notifications.Dispatcher, m, zapLogger),
		Notifications: notifications.Controller,
		Promotions:    promotions.Controller,
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = m.Handler()
	}

	router := server.NewRouter(controllers, db, cfg.Metrics.Path, metricsHandler, zapLogger)

	srv := server.New(cfg.Server, router, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
		return
	}

	zapLogger.Info("server stopped gracefully")
}
