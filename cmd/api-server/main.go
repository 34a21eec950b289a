package main

import (
	"context"
	"log"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bizgraph/registry-analytics/internal/config"
	"github.com/bizgraph/registry-analytics/internal/nlsql"
	"github.com/bizgraph/registry-analytics/internal/observability"
	"github.com/bizgraph/registry-analytics/internal/registry"
	"github.com/bizgraph/registry-analytics/internal/taxonomy"
	"github.com/bizgraph/registry-analytics/internal/warehouse"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewDefaultLoader().Load(context.Background())
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := observability.NewLogger("api-server")

	// Load embedded reference data
	tax, err := taxonomy.Load()
	if err != nil {
		log.Fatal("Failed to load SSIC taxonomy:", err)
	}
	gaz, err := taxonomy.LoadGazetteer()
	if err != nil {
		log.Fatal("Failed to load area gazetteer:", err)
	}

	// Initialize Redis client
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Initialize warehouse client behind a circuit breaker
	whClient, err := warehouse.NewClient(warehouse.Config{
		Host:     cfg.Warehouse.Host,
		Port:     cfg.Warehouse.Port,
		Database: cfg.Warehouse.Database,
		Username: cfg.Warehouse.Username,
		Password: cfg.Warehouse.Password,
		SSLMode:  cfg.Warehouse.SSLMode,
		Timeout:  cfg.Warehouse.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to connect to warehouse:", err)
	}
	defer whClient.Close()

	breaker := warehouse.NewBreakerClient(whClient, "warehouse", warehouse.DefaultCircuitBreakerConfig)

	// Register health checks
	healthChecker := observability.NewHealthChecker()
	healthChecker.Register("warehouse", observability.WarehouseHealthCheck(func(ctx context.Context) error {
		return whClient.Ping(ctx)
	}))
	healthChecker.Register("redis", observability.RedisHealthCheck(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))
	healthChecker.Register("memory", observability.MemoryHealthCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))

	processor := nlsql.NewProcessor(cfg.NLSQL, tax, gaz, breaker, rdb, logger)
	registrySvc := registry.NewService(whClient, tax, gaz, cfg.NLSQL, logger)

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(observability.RecoveryMiddleware(logger))
	router.Use(observability.RequestLoggingMiddleware(logger))
	router.Use(observability.MetricsMiddleware())
	router.Use(observability.CORSMiddleware(cfg.Server.AllowedOrigins[0]))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		response := healthChecker.GetHealthResponse(c.Request.Context())
		statusCode := http.StatusOK
		if response.Status == observability.HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, response)
	})

	api := router.Group("/api")
	processor.RegisterRoutes(api)
	registrySvc.RegisterRoutes(api)

	logger.Info(context.Background(), "API server starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"version": "1.0.0",
	})
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Error(context.Background(), "Failed to start server", err, nil)
		log.Fatal("Failed to start server:", err)
	}
}
