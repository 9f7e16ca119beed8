package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/skilllink/skilllink-api/internal/config"
	"github.com/skilllink/skilllink-api/internal/db"
	"github.com/skilllink/skilllink-api/internal/realtime"
	"github.com/skilllink/skilllink-api/internal/repository"
	"github.com/skilllink/skilllink-api/internal/seed"
	"github.com/skilllink/skilllink-api/internal/server"
	"github.com/skilllink/skilllink-api/internal/services/events"
	"github.com/skilllink/skilllink-api/internal/services/mailer"
	"github.com/skilllink/skilllink-api/internal/services/storage"
	"github.com/skilllink/skilllink-api/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := utils.NewLogger(cfg.Development())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a database that is down at boot does not stop the server; requests
	// fail individually until it is reachable
	gdb, err := db.Connect(cfg.DB.DSN, cfg.DB.FallbackDSN, logger)
	switch {
	case gdb == nil:
		logger.Fatal("postgres not configured", zap.Error(err))
	case err != nil:
		logger.Error("postgres unavailable, serving without schema sync", zap.Error(err))
	default:
		if err := db.Migrate(gdb); err != nil {
			logger.Error("migrate failed", zap.Error(err))
		}
		if n, err := seed.EnsureCategories(gdb); err != nil {
			logger.Error("seed categories failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("seeded categories", zap.Int64("inserted", n))
		}
	}

	messages := repository.NewMemoryMessageRepository()
	if mc, err := db.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.FallbackURI, logger); err != nil {
		logger.Warn("mongodb unavailable, chat history is kept in memory", zap.Error(err))
	} else {
		defer func() { _ = mc.Disconnect(context.Background()) }()
		col := mc.Database(cfg.Mongo.Database).Collection(repository.MessagesCollection)
		if err := repository.EnsureMessageIndexes(ctx, col); err != nil {
			logger.Warn("message indexes", zap.Error(err))
		}
		messages = repository.NewMongoMessageRepository(col)
	}

	hub := realtime.NewHub(logger)
	var presence *realtime.Presence
	if rdb := realtime.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rdb != nil {
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, realtime stays local", zap.Error(err))
		} else {
			relay := realtime.NewRedisRelay(rdb, logger)
			if err := relay.Start(ctx, hub); err != nil {
				logger.Warn("redis relay", zap.Error(err))
			} else {
				hub.UseRelay(relay)
			}
			presence = realtime.NewPresence(rdb)
			hub.UsePresence(presence)
			logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}
	go hub.Run(ctx)

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() { _ = publisher.Close() }()

	var store storage.Store = storage.NewLocalStore(cfg.App.UploadDir, cfg.App.BaseURL)
	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket)
		if err != nil {
			logger.Fatal("s3 config", zap.Error(err))
		}
		store = s3
	}

	app, _ := server.New(ctx, server.Deps{
		Config:   &cfg,
		DB:       gdb,
		Messages: messages,
		Hub:      hub,
		Presence: presence,
		Mailer:   mailer.New(cfg.Mail.PostmarkToken, cfg.Mail.From, logger),
		Events:   publisher,
		Store:    store,
		Log:      logger,
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	addr := ":" + cfg.App.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.App.Env))
	if err := app.Listen(addr); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
