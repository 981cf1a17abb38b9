package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	_ "github.com/noah-isme/achievement-registry-api/api/swagger"
	"github.com/noah-isme/achievement-registry-api/internal/handler"
	"github.com/noah-isme/achievement-registry-api/internal/middleware"
	"github.com/noah-isme/achievement-registry-api/internal/models"
	"github.com/noah-isme/achievement-registry-api/internal/repository"
	"github.com/noah-isme/achievement-registry-api/internal/service"
	"github.com/noah-isme/achievement-registry-api/pkg/cache"
	"github.com/noah-isme/achievement-registry-api/pkg/config"
	"github.com/noah-isme/achievement-registry-api/pkg/database"
	"github.com/noah-isme/achievement-registry-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/achievement-registry-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/achievement-registry-api/pkg/middleware/requestid"
)

// @title Achievement Registry API
// @version 1.0.0
// @description Student achievement registration, verification and search.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	checks := map[string]handler.Pinger{"postgres": db.PingContext}

	store, closeStore, err := achievementStore(ctx, cfg, db, logr)
	if err != nil {
		return err
	}
	defer closeStore()
	if cfg.Store.Driver == config.StoreDriverMongo {
		if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
			checks["mongo"] = pinger.Ping
		}
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Assistant.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, assistant cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, logr)
			defer redisRepo.Close() //nolint:errcheck
			checks["redis"] = redisRepo.Ping
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Assistant.CacheTTL, logr, cacheRepo != nil,
		service.WithCacheNamespace(cfg.Redis.KeyPrefix))

	auditRepo := repository.NewAuditRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	profileSvc := service.NewProfileService(profileRepo, auditRepo, logr, cfg.Profiles.BootstrapAdmins)
	achievementSvc := service.NewAchievementService(store, auditRepo, logr,
		service.WithAchievementCache(cacheSvc),
		service.WithAchievementMetrics(metrics),
	)

	validate := handler.NewValidator()
	deps := handler.RouteDeps{
		Achievements: handler.NewAchievementHandler(achievementSvc, nil, validate),
		Profiles:     handler.NewProfileHandler(profileSvc, validate),
		Authenticate: middleware.JWT(authSvc),
		Identify:     middleware.OptionalJWT(authSvc),
		LoadProfile:  middleware.LoadProfile(profileSvc),
	}
	if cfg.Exports.Enabled {
		exporter := service.NewExportService(achievementSvc, logr)
		deps.Achievements = handler.NewAchievementHandler(achievementSvc, exporter, validate)
		deps.ExportAudit = middleware.Audit(auditRepo, logr, models.AuditActionPortfolioExport, "portfolio")
	}
	if cfg.Assistant.Enabled {
		assistantSvc := service.NewAssistantService(achievementSvc, cacheSvc, metrics, cfg.Assistant.CacheTTL, logr)
		deps.Assistant = handler.NewAssistantHandler(assistantSvc, validate)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// achievementStore selects the configured backend for achievement records.
func achievementStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) (service.AchievementStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		client, mdb, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoAchievementRepository(mdb)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logr.Info("using mongo achievement store", zap.String("database", cfg.Mongo.Database))
		return mongoStore{repo, client}, func() { _ = client.Disconnect(context.Background()) }, nil
	case config.StoreDriverPostgres:
		return repository.NewAchievementRepository(db), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// mongoStore exposes a readiness ping alongside the repository.
type mongoStore struct {
	*repository.MongoAchievementRepository
	client *mongo.Client
}

func (s mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
