package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fungiscan/internal/clients"
	"fungiscan/internal/config"
	"fungiscan/internal/handlers"
	"fungiscan/internal/metrics"
	"fungiscan/internal/middleware"
	"fungiscan/internal/repository"
	"fungiscan/internal/service"
	"fungiscan/internal/worker"
	"fungiscan/pkg/database"
	"fungiscan/pkg/logger"
	"fungiscan/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()

	zlog, err := logger.New(cfg.App.Debug)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer zlog.Sync()

	if envErr != nil {
		zlog.Info("no .env file found, using environment variables")
	}
	zlog.Info("FungiScan backend starting", zap.String("port", cfg.App.Port))

	db, err := database.Connect(database.Config{
		Driver:   cfg.DB.Driver,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
		Debug:    cfg.App.Debug,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zlog.Fatal("failed to get database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	redisClient, err := redis.Connect(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	if err := database.Migrate(db, zlog); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err))
	}

	// Repositories
	diagnosisRepo := repository.NewDiagnosisRepository(db)
	telemetryRepo := repository.NewTelemetryRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient)

	inferenceClient := clients.NewInferenceClient(clients.InferenceConfig{
		APIKey:       cfg.Inference.APIKey,
		URL:          cfg.Inference.URL,
		Model:        cfg.Inference.Model,
		Referer:      cfg.Inference.Referer,
		Title:        cfg.Inference.Title,
		Timeout:      cfg.Inference.Timeout,
		RetryBackoff: cfg.Inference.RetryBackoff,
	}, zlog)

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	// Services
	analysisService := service.NewAnalysisService(inferenceClient, diagnosisRepo, cacheRepo, appMetrics,
		cfg.Inference.MaxInFlight, zlog)
	telemetryService := service.NewTelemetryService(telemetryRepo, cacheRepo, appMetrics, zlog)
	authService := service.NewAuthService(userRepo, sessionRepo, cfg.Auth.SessionTTL, zlog)
	dashboardService := service.NewDashboardService(telemetryService, analysisService, cacheRepo,
		cfg.Dashboard.SnapshotCacheTTL, zlog)

	ipLimiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)

	// Background workers
	scheduler := worker.NewScheduler(zlog)
	if cfg.Workers.RetentionEnabled {
		scheduler.AddWorker(worker.NewRetentionWorker(telemetryService,
			cfg.Workers.TelemetryRetention, cfg.Workers.RetentionInterval, zlog))
		zlog.Info("telemetry retention enabled",
			zap.Duration("retention", cfg.Workers.TelemetryRetention),
			zap.Duration("interval", cfg.Workers.RetentionInterval))
	}
	scheduler.AddWorker(worker.NewPeriodicWorker("rate-limiter-sweep", 10*time.Minute, func(ctx context.Context) error {
		if n := ipLimiter.Reset(); n > 0 {
			zlog.Debug("idle rate limiters dropped", zap.Int("count", n))
		}
		return nil
	}, zlog))
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.App.MaxUploadBytes
	r.Use(middleware.Recovery(zlog), middleware.RequestLogger(zlog))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", cfg.App.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(r, handlers.Handlers{
		Auth:      handlers.NewAuthHandler(authService, zlog),
		Analysis:  handlers.NewAnalysisHandler(analysisService, authService, cfg.App.MaxUploadBytes, zlog),
		Telemetry: handlers.NewTelemetryHandler(telemetryService, zlog),
		Dashboard: handlers.NewDashboardHandler(dashboardService, analysisService, telemetryService, authService,
			map[string]handlers.HealthCheck{
				"database": sqlDB.PingContext,
				"redis": func(ctx context.Context) error {
					return redisClient.Ping(ctx).Err()
				},
			},
			func(ctx context.Context) (map[string]string, error) {
				return redis.GetStats(ctx, redisClient)
			},
			zlog),
		ImageLimit: middleware.IPRateLimitMiddleware(ipLimiter, zlog),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTPWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zlog.Info("server listening",
			zap.String("addr", server.Addr),
			zap.Duration("write_timeout", server.WriteTimeout))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	zlog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout())
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
		return
	}

	zlog.Info("server exited properly")
}
