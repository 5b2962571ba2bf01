package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"obraflow/internal/config"
	"obraflow/internal/handlers"
	"obraflow/internal/middleware"
	"obraflow/internal/models"
	"obraflow/internal/observability"
	"obraflow/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormtracing "gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	// 读取配置文件（默认 ./config.yml）并初始化日志
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	// 允许通过 flags/env 覆盖数据库连接（保持与 migrate 一致的接口）
	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(os.Stdout)
	flagDSN := flagSet.String("dsn", os.Getenv("DB_DSN"), "Postgres DSN, if set overrides other DB flags")
	dbHost := flagSet.String("db-host", getenvDefault("DB_HOST", cfg.Database.Host), "database host")
	dbPort := flagSet.Int("db-port", cfg.Database.Port, "database port")
	dbUser := flagSet.String("db-user", getenvDefault("DB_USER", cfg.Database.User), "database user")
	dbPass := flagSet.String("db-pass", getenvDefault("DB_PASSWORD", cfg.Database.Password), "database password")
	dbName := flagSet.String("db-name", getenvDefault("DB_NAME", cfg.Database.Name), "database name")
	srvHost := flagSet.String("host", getenvDefault("OBRAFLOW_HOST", cfg.Server.Host), "server host (listen)")
	srvPort := flagSet.Int("port", cfg.Server.Port, "server port (listen)")
	_ = flagSet.Parse(os.Args[1:])

	dsn := *flagDSN
	if dsn == "" {
		dsn = databaseDSN(cfg, *dbHost, *dbUser, *dbPass, *dbName, *dbPort)
	}

	if err := config.InitLogger(cfg); err != nil {
		logrus.Warnf("init logger: %v", err)
	}
	appLogger := logrus.StandardLogger()

	// OpenTelemetry 初始化（可选）
	shutdownOTel, err := observability.SetupTracing(context.Background(), cfg)
	if err != nil {
		appLogger.Warnf("init tracing: %v", err)
	} else {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		appLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Monitoring.Tracing.Enabled {
		_ = db.Use(gormtracing.NewPlugin())
	}

	if err := db.AutoMigrate(
		&models.User{}, &models.Lead{}, &models.Obra{}, &models.Approval{},
		&models.RoadmapAction{}, &models.ObraChecklist{}, &models.ChecklistItem{},
		&models.AutomationRule{}, &models.AutomationRun{}, &models.AutomationOutboxEntry{},
	); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化业务服务
	automationService := services.NewAutomationService(db, appLogger)
	leadService := services.NewLeadService(db, appLogger)
	leadService.SetAutomationService(automationService)
	obraService := services.NewObraService(db, appLogger)
	obraService.SetAutomationService(automationService)
	approvalService := services.NewApprovalService(db, appLogger)
	approvalService.SetAutomationService(automationService)
	roadmapService := services.NewRoadmapService(db)

	// 初始化 Gin
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddlewareWithConfig(cfg))
	r.Use(middleware.RateLimitMiddleware(cfg))
	if cfg.Monitoring.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}

	// 健康检查
	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	if cfg.Monitoring.Enabled {
		r.GET(cfg.Monitoring.MetricsPath, handlers.NewMetricsHandler().GetMetrics)
	}

	// API 路由组（全部接口先做鉴权）
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg))

	handlers.RegisterAutomationRoutes(api, handlers.NewAutomationHandler(automationService))
	handlers.RegisterLeadRoutes(api, handlers.NewLeadHandler(leadService))
	handlers.RegisterObraRoutes(api, handlers.NewObraHandler(obraService))
	handlers.RegisterApprovalRoutes(api, handlers.NewApprovalHandler(approvalService))
	handlers.RegisterRoadmapRoutes(api, handlers.NewRoadmapHandler(roadmapService))

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", *srvHost, *srvPort),
		Handler: r,
	}

	go func() {
		appLogger.Infof("Starting server on %s:%d", *srvHost, *srvPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Errorf("Server forced to shutdown: %v", err)
	}
	appLogger.Info("Server exited")
}

func databaseDSN(cfg *config.Config, host, user, pass, name string, port int) string {
	sslmode := cfg.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	tz := cfg.Database.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		host, user, pass, name, port, sslmode, tz)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// corsMiddlewareWithConfig CORS 中间件
func corsMiddlewareWithConfig(cfg *config.Config) gin.HandlerFunc {
	allowedOrigins := "*"
	allowedMethods := "GET, POST, PUT, DELETE, OPTIONS"
	allowedHeaders := "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization"
	if cfg != nil && cfg.Security.CORS.Enabled {
		if len(cfg.Security.CORS.AllowedOrigins) > 0 {
			allowedOrigins = strings.Join(cfg.Security.CORS.AllowedOrigins, ", ")
		}
		if len(cfg.Security.CORS.AllowedMethods) > 0 {
			allowedMethods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
		}
		if len(cfg.Security.CORS.AllowedHeaders) > 0 {
			allowedHeaders = strings.Join(cfg.Security.CORS.AllowedHeaders, ", ")
		}
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigins)
		c.Header("Access-Control-Allow-Methods", allowedMethods)
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
