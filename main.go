package main

import (
	"context"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"classchat-service/internal/cache"
	"classchat-service/internal/config"
	"classchat-service/internal/db"
	"classchat-service/internal/handlers"
	"classchat-service/internal/live"
	applog "classchat-service/internal/log"
	"classchat-service/internal/middleware"
	"classchat-service/internal/notify"
	"classchat-service/internal/observability"
	"classchat-service/internal/presence"
	"classchat-service/internal/rabbitmq"
	"classchat-service/internal/repositories"
	"classchat-service/internal/snapshot"
	"classchat-service/internal/storage"
	"classchat-service/internal/ws"
)

func main() {
	cfg := config.Load()
	applog.Init(cfg.Env)

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	shutdownTracing, err := observability.InitTracing(context.Background(), "classchat-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	var store cache.Cache
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisCache.Close()
		store = redisCache
	} else {
		log.Info().Msg("redis not configured, using in-process cache")
		store = cache.NewMemory()
	}

	var blobs storage.BlobStore
	switch cfg.StorageDriver {
	case "s3":
		blobs, err = storage.NewS3(context.Background(), storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		blobs, err = storage.NewLocal(cfg.StoragePath)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to init blob storage")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Msg("notification publisher ready")

	userRepo := repositories.NewUserRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	receiptRepo := repositories.NewReadReceiptRepo(database)
	reportRepo := repositories.NewReportRepo(database)
	muteRepo := repositories.NewMuteRepo(database)

	tracker := presence.NewTracker(store, userRepo)
	builder := snapshot.NewBuilder(messageRepo, receiptRepo, tracker)
	hub := live.NewHub()
	dispatcher := notify.NewDispatcher(publisher, userRepo, muteRepo, store, cfg.FeatureMuteSettings)

	groupHandler := handlers.NewGroupHandler(groupRepo, muteRepo, builder, dispatcher, cfg.FeatureMuteSettings)
	messageHandler := handlers.NewMessageHandler(groupRepo, messageRepo, receiptRepo, reportRepo, builder, tracker, hub, dispatcher, blobs, cfg.FeatureReports)
	presenceHandler := handlers.NewPresenceHandler(groupRepo, tracker)
	streamHandler := handlers.NewStreamHandler(groupRepo, builder, tracker, hub)
	groupWS := ws.NewGroupStreamHandler(groupRepo, builder, tracker, hub)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Env))
	router.Use(otelgin.Middleware("classchat-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.DebugRoutes {
		debug := router.Group("/debug/pprof")
		debug.GET("/", gin.WrapF(pprof.Index))
		debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		debug.GET("/profile", gin.WrapF(pprof.Profile))
		debug.GET("/symbol", gin.WrapF(pprof.Symbol))
		debug.GET("/trace", gin.WrapF(pprof.Trace))
		debug.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		debug.GET("/block", gin.WrapH(pprof.Handler("block")))
		debug.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		debug.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		log.Warn().Msg("pprof debug routes enabled")
	}

	auth := middleware.Auth(cfg.JWTSecret, userRepo)

	router.GET("/groups", auth, groupHandler.ListGroups)
	router.POST("/groups", auth, groupHandler.CreateGroup)
	router.POST("/groups/:group_id/mute", auth, groupHandler.ToggleMute)

	router.GET("/groups/:group_id/messages", auth, messageHandler.ListMessages)
	router.POST("/groups/:group_id/messages", auth, messageHandler.PostMessage)
	router.POST("/groups/:group_id/seen", auth, messageHandler.MarkSeen)
	router.GET("/groups/:group_id/stream", auth, streamHandler.Stream)

	router.POST("/groups/:group_id/typing", auth, presenceHandler.SetTyping)
	router.GET("/groups/:group_id/typing", auth, presenceHandler.TypingStatus)
	router.POST("/groups/:group_id/presence", auth, presenceHandler.SetPresence)
	router.GET("/groups/:group_id/presence", auth, presenceHandler.PresenceStatus)

	router.PATCH("/messages/:message_id", auth, messageHandler.EditMessage)
	router.DELETE("/messages/:message_id", auth, messageHandler.DeleteMessage)
	router.POST("/messages/:message_id/pin", auth, messageHandler.TogglePin)
	router.POST("/messages/:message_id/reactions", auth, messageHandler.ToggleReaction)
	router.POST("/messages/:message_id/report", auth, messageHandler.ReportMessage)
	router.GET("/messages/:message_id/media", auth, messageHandler.Media)

	router.GET("/ws/groups/:group_id", auth, groupWS.Handle)

	log.Info().
		Str("port", cfg.Port).
		Bool("reports", cfg.FeatureReports).
		Bool("mute_settings", cfg.FeatureMuteSettings).
		Msg("classchat service listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
