package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rental_manager/internal/config"
	"rental_manager/internal/database"
	"rental_manager/internal/handlers"
	"rental_manager/internal/logging"
	"rental_manager/internal/metrics"
	"rental_manager/internal/migrations"
	"rental_manager/internal/redis"
	"rental_manager/internal/rental"
	"rental_manager/internal/repository"
	"rental_manager/internal/scheduler"
	"rental_manager/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logging.NewLogger(cfg.LogFormat, cfg.LogLevel)

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, database.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	ctx := context.Background()
	err = migrations.RunMigrations(ctx, db, migrations.Seed{
		GSTEnabled:        cfg.DefaultGSTEnabled,
		GSTRate:           cfg.DefaultGSTRate,
		GSTIncluded:       cfg.DefaultGSTIncluded,
		LateFeeMultiplier: cfg.LateFeeMultiplier,
		AdminEmail:        cfg.SeedAdminEmail,
		AdminPin:          cfg.SeedAdminPin,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("rental", registry)

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db)
	orderItemRepo := repository.NewOrderItemRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	eventRepo := repository.NewReturnEventRepository(db)

	// Initialize services
	staffService := services.NewStaffService(staffRepo)
	branchService := services.NewBranchService(branchRepo)
	customerService := services.NewCustomerService(customerRepo, branchRepo)
	orderService := services.NewOrderService(services.OrderServiceDeps{
		Orders:     orderRepo,
		Items:      orderItemRepo,
		Branches:   branchRepo,
		Customers:  customerRepo,
		Staff:      staffService,
		Locker:     redisClient,
		Cache:      redisClient,
		Logger:     log,
		Metrics:    m,
		LockTTL:    cfg.OrderLockTTL,
		SummaryTTL: cfg.SummaryCacheTTL,
	})
	returnService := services.NewReturnService(services.ReturnServiceDeps{
		Orders:   orderRepo,
		Events:   eventRepo,
		Branches: branchRepo,
		Staff:    staffService,
		Locker:   redisClient,
		Cache:    redisClient,
		Logger:   log,
		Metrics:  m,
		LockTTL:  cfg.OrderLockTTL,
		LateFee:  &rental.LateFeePolicy{Multiplier: cfg.LateFeeMultiplier},
	})

	jobs, err := scheduler.NewScheduler(cfg.StatusRefreshCron, orderService, log, time.Minute)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	jobs.Start()

	// Initialize handlers
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB")
	}
	apiHandler := handlers.NewAPIHandler(branchService, customerService, staffService, map[string]handlers.HealthCheck{
		"database": sqlDB.PingContext,
		"redis":    redisClient.Ping,
	}, log)
	orderHandler := handlers.NewOrderHandler(orderService, returnService, log)

	// Setup routes
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestLogger(log))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	handlers.RegisterRoutes(router, apiHandler, orderHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	jobs.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
