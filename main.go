package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"guardforce-cctv/be/cache"
	"guardforce-cctv/be/config"
	"guardforce-cctv/be/database"
	"guardforce-cctv/be/handlers"
	"guardforce-cctv/be/logger"
	"guardforce-cctv/be/repository"
	"guardforce-cctv/be/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "guardforce-cctv")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Warn("Redis unreachable, continuing without it", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	registry, users := buildRegistry(ctx, cfg, rdb, zlog)

	hub := services.NewHub(zlog.Named("hub"))
	go hub.Run(ctx)

	opts := []services.DispatcherOption{
		services.WithAlerters(services.NewLogAlerter(zlog.Named("alert")), hub),
	}
	if rdb != nil {
		opts = append(opts, services.WithSinks(services.NewStreamSink(rdb, cfg.Redis.Stream)))
	}
	synth := services.NewSynthesizer(registry, cfg.Dispatcher.Probability, rand.New(rand.NewSource(time.Now().UnixNano())))
	dispatcher := services.NewDispatcher(cfg.Dispatcher.Interval, synth, registry, zlog.Named("dispatcher"), opts...)

	var media services.MediaServer = services.NoopMediaServer{}
	if cfg.MediaMTX.Enabled {
		media = services.NewMediaMTXServer(cfg.MediaMTX, zlog.Named("mediamtx"))
	}
	snapshots := services.NewSnapshotService(cfg.Snapshot, zlog.Named("snapshot"))

	cctv := services.NewCCTVService(registry, media, snapshots, zlog.Named("cctv"))
	monitor := services.NewGeofenceMonitor(registry, dispatcher, cctv, zlog.Named("geofence"))

	router := handlers.SetupRouter(cfg, handlers.Handlers{
		Auth:      handlers.NewAuthHandler(users, cfg.JWT, zlog.Named("auth")),
		Camera:    handlers.NewCameraHandler(registry, cctv, zlog.Named("camera")),
		Zone:      handlers.NewZoneHandler(registry, monitor, zlog.Named("zone")),
		Event:     handlers.NewEventHandler(registry, cctv, dispatcher, hub, zlog.Named("event")),
		Recording: handlers.NewRecordingHandler(registry, cctv, zlog.Named("recording")),
		System:    handlers.NewSystemHandler(cctv, dispatcher, hub, zlog.Named("system")),
	}, zlog)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("Server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("registry", cfg.Registry.Backend),
			zap.Bool("mediamtx", cfg.MediaMTX.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
	dispatcher.Close()
	cctv.Close()
}

func buildRegistry(ctx context.Context, cfg *config.Config, rdb *redis.Client, zlog *zap.Logger) (repository.Registry, repository.UserRepository) {
	util := repository.NewCapacityUtilization(cfg.Capacity)

	switch cfg.Registry.Backend {
	case config.BackendPostgres:
		db, err := database.Initialize(cfg.Database, zlog.Named("database"))
		if err != nil {
			zlog.Fatal("Failed to initialize database", zap.Error(err))
		}
		return repository.NewPostgresRegistry(db, util), repository.NewGormUserRepository(db)

	case config.BackendRemote:
		var kv cache.KV = cache.NewMemoryKV()
		if rdb != nil {
			kv = cache.NewRedisKV(rdb)
		}
		return repository.NewRemoteRegistry(cfg.Remote, kv, zlog.Named("remote")), memoryUsers(ctx, zlog)

	case config.BackendMemory:
	default:
		zlog.Warn("Unknown registry backend, using memory", zap.String("backend", cfg.Registry.Backend))
	}

	registry := repository.NewMemoryRegistry(util)
	if cfg.Registry.Seed {
		if err := registry.LoadFixtures(ctx); err != nil {
			zlog.Fatal("Failed to load fixtures", zap.Error(err))
		}
	}
	return registry, memoryUsers(ctx, zlog)
}

func memoryUsers(ctx context.Context, zlog *zap.Logger) repository.UserRepository {
	users := repository.NewMemoryUserRepository()
	if err := repository.EnsureDefaultAdmin(ctx, users, zlog); err != nil {
		zlog.Fatal("Failed to create default admin", zap.Error(err))
	}
	return users
}
