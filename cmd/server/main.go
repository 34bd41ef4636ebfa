package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"conceptforge/internal/app"
	"conceptforge/internal/cache"
	"conceptforge/internal/config"
	"conceptforge/internal/logger"
	"conceptforge/internal/repository"
	"conceptforge/internal/service"
	"conceptforge/internal/transport/rest"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer zl.Sync()

	aiConfig := config.DefaultAIConfig()
	if aiConfig.IsEnabled() {
		zl.Info("completion provider configured",
			"questions", aiConfig.Models.StageQuestions,
			"finalize", aiConfig.Models.Finalize)
	} else {
		zl.Warn("completion API key not set, using mock generator")
	}

	ctx := context.Background()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		zl.Fatal("failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		zl.Fatal("MongoDB ping failed", "error", err)
	}
	db := mongoClient.Database(cfg.MongoDB)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		zl.Fatal("Redis ping failed", "error", err)
	}

	zl.Info("connected to MongoDB and Redis", "db", cfg.MongoDB)

	deps := &app.App{
		SessionRepo:  repository.NewSessionRepo(db),
		PendingRepo:  repository.NewPendingRepo(db),
		ClusterRepo:  repository.NewClusterRepo(db),
		RecordRepo:   repository.NewRecordRepo(db),
		SessionCache: cache.NewSessionCache(rdb, time.Duration(cfg.SessionTTL)*time.Minute),
	}

	container := &rest.Container{
		Completions: service.NewCompletionService(zl),
		Sessions:    service.NewSessionService(deps.SessionRepo, deps.SessionCache, zl),
		Decisions:   service.NewDecisionService(deps.PendingRepo, deps.RecordRepo, zl),
		Clusters:    service.NewClusterService(deps.ClusterRepo, zl),
		Log:         zl,
	}

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: rest.NewRouter(container),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		zl.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zl.Fatal("server exited", "error", err)
	}
	zl.Info("server stopped")
}
