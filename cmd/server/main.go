package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/corpchat/corpchat/internal/api"
	"github.com/corpchat/corpchat/internal/chat"
	"github.com/corpchat/corpchat/internal/config"
	"github.com/corpchat/corpchat/internal/dispatch"
	"github.com/corpchat/corpchat/internal/ephemeral"
	"github.com/corpchat/corpchat/internal/identity"
	"github.com/corpchat/corpchat/internal/logger"
	"github.com/corpchat/corpchat/internal/moderation"
	"github.com/corpchat/corpchat/internal/mutation"
	"github.com/corpchat/corpchat/internal/presence"
	"github.com/corpchat/corpchat/internal/reaction"
	"github.com/corpchat/corpchat/internal/receipt"
	mongostore "github.com/corpchat/corpchat/internal/store/mongo"
	"github.com/corpchat/corpchat/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	mc, err := mongostore.NewClient(cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.DB)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	messages := mongostore.NewMessages(db)
	conversations := mongostore.NewConversations(db)
	reactions := mongostore.NewReactions(db)
	receipts := mongostore.NewReceipts(db)

	backends := moderation.NewHTTPBackends(cfg.Moderation.Backends, cfg.Moderation.MaxRetry)
	if len(backends) == 0 {
		zlog.Warnw("no moderation backends configured, running on local transform only")
	}
	pipeline := moderation.NewPipeline(backends, cfg.Moderation.Timeout.Std(), zlog)

	eph := ephemeral.NewStore(rdb, "corpchat")
	presenceSvc := presence.NewService(eph, cfg.Presence.OnlineTTL.Std(), zlog)
	typing := presence.NewTyping(eph, cfg.Presence.TypingTTL.Std(), cfg.Presence.TypingThrottle.Std(), zlog)

	var natsPub *dispatch.NATSPublisher
	if cfg.NATS.URL != "" {
		natsPub, err = dispatch.NewNATSPublisher(cfg.NATS.URL, zlog)
		if err != nil {
			zlog.Warnw("nats connect failed, conversation events disabled", "err", err)
		}
	}
	defer natsPub.Close()

	var producer *dispatch.KafkaProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = dispatch.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOut)
		defer func() { _ = producer.Close() }()
	}

	cache := chat.NewRecentCache(rdb)
	chatSvc := chat.NewService(messages, conversations, pipeline, cache, natsPub, cfg.Lifecycle.MaxContent, zlog)
	mutationSvc := mutation.NewService(messages, reactions, pipeline, cfg.Lifecycle.EditWindow.Std(), cfg.Lifecycle.DeleteWindow.Std(), cfg.Lifecycle.MaxContent, zlog)
	reactionSvc := reaction.NewService(reactions, messages, zlog)
	receiptSvc := receipt.NewService(receipts, messages, conversations, zlog)

	resolver := identity.NewResolver(cfg.JWT.HSSecret)
	hub := dispatch.NewHub()
	wsHandler := ws.NewHandler(hub, resolver, chatSvc, mutationSvc, reactionSvc, receiptSvc, presenceSvc, typing, producer, zlog)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go typing.RunSweeper(sweepCtx, cfg.Presence.SweepInterval.Std(), cfg.Presence.SweepInterval.Std())

	app := api.NewServer(resolver, chatSvc, mutationSvc, reactionSvc, receiptSvc, presenceSvc, typing, wsHandler, zlog)

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("server started", "port", cfg.App.Port, "env", cfg.App.Env)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zlog.Infow("server stopped")
}
