package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/config"
	"github.com/vedran77/partsmarket/internal/database"
	"github.com/vedran77/partsmarket/internal/logging"
	"github.com/vedran77/partsmarket/internal/queue"
	postgresrepo "github.com/vedran77/partsmarket/internal/repository/postgres"
	"github.com/vedran77/partsmarket/internal/service"
	"github.com/vedran77/partsmarket/internal/storage"
	httptransport "github.com/vedran77/partsmarket/internal/transport/http"
	"github.com/vedran77/partsmarket/internal/transport/http/handlers"
	"github.com/vedran77/partsmarket/internal/transport/http/middleware"
	"github.com/vedran77/partsmarket/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty || !cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Str("db", cfg.DBName).Msg("connected to database")

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	rdb, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		log.Info().Msg("connected to redis")
	}

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	convRepo := postgresrepo.NewConversationRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)
	listingRepo := postgresrepo.NewListingRepo(pool)

	// Services
	namer := service.NewNamer(userRepo)
	if rdb != nil {
		namer.SetCache(service.NewRedisNameCache(rdb, cfg.NameCacheTTL))
	}
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	authService.SetNamer(namer)
	convService := service.NewConversationService(convRepo, userRepo, namer)
	messageService := service.NewMessageService(messageRepo, convService)
	listingService := service.NewListingService(listingRepo)

	var fileStore handlers.FileStore
	if cfg.StorageEnabled() {
		store, err := storage.NewS3Store(ctx, storage.Options{
			Endpoint:  cfg.StorageEndpoint,
			Region:    cfg.StorageRegion,
			Bucket:    cfg.StorageBucket,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			UploadTTL: cfg.UploadURLTTL,
		})
		if err != nil {
			return err
		}
		fileStore = store

		cleaner, shutdown, err := imageCleaner(ctx, cfg, store)
		if err != nil {
			return err
		}
		defer shutdown()
		listingService.SetImages(store, cleaner)
		log.Info().Str("bucket", cfg.StorageBucket).Msg("object storage enabled")
	} else {
		log.Warn().Msg("object storage not configured, image uploads disabled")
	}

	// Realtime
	hub := ws.NewHub()
	go hub.Run(ctx)
	messageService.SetNotifier(ws.NewNotifier(newBroker(ctx, rdb, hub)))

	limiter := middleware.NewSendLimiter(cfg.SendRatePerMinute, cfg.SendBurst)
	go limiter.Run(ctx)

	router := httptransport.NewRouter(httptransport.Deps{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		SendLimiter:    limiter,
		RequestTimeout: cfg.WriteTimeout,
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUserHandler(namer),
		Conversations:  handlers.NewConversationHandler(convService, messageService),
		Listings:       handlers.NewListingHandler(listingService),
		Files:          handlers.NewFileHandler(fileStore),
		WebSocket:      ws.ServeWS(hub, cfg.JWTSecret, convService, cfg.AllowedOrigins),
	})

	// Write deadlines would also cut hijacked WebSocket connections, so only
	// header reads are bounded here. API handlers get RequestTimeout instead.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newBroker fans message events out through Redis when it is configured, so
// every server instance reaches its own subscribers.
func newBroker(ctx context.Context, rdb *redis.Client, hub *ws.Hub) ws.Broker {
	if rdb == nil {
		return ws.NewLocalBroker(hub)
	}
	broker := ws.NewRedisBroker(rdb, hub)
	go broker.Subscribe(ctx)
	return broker
}

// imageCleaner deletes abandoned listing images in the background through
// asynq when Redis is available, inline otherwise.
func imageCleaner(ctx context.Context, cfg *config.Config, store *storage.S3Store) (service.ImageCleaner, func(), error) {
	if cfg.RedisURL == "" {
		return queue.InlineCleaner{Store: store}, func() {}, nil
	}

	client, err := queue.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	worker, err := queue.NewWorker(cfg.RedisURL, store)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := worker.Run(workerCtx); err != nil {
			log.Error().Err(err).Msg("background worker stopped")
		}
	}()

	return client, func() {
		cancel()
		client.Close()
		<-done
	}, nil
}
