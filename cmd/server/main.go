package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"rankwell.app/onboard/common/arangodb"
	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/common/llm"
	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/common/otel"
	"rankwell.app/onboard/common/typesense"
	"rankwell.app/onboard/core/config"
	"rankwell.app/onboard/core/db"
	"rankwell.app/onboard/internal/crawl"
	"rankwell.app/onboard/internal/http/middleware"
	httprouter "rankwell.app/onboard/internal/http/router"
	"rankwell.app/onboard/internal/queue"
	"rankwell.app/onboard/internal/service"
	"rankwell.app/onboard/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "onboard server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.RedisStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Queue.RedisStream, slog.Default())
	defer producer.Close()

	deps := service.Dependencies{
		Producer: producer,
		WorkOS:   cfg.WorkOS,
		Credits:  cfg.Credits,
		Crawler: crawl.New(crawl.Config{
			UserAgent:    cfg.Crawler.UserAgent,
			MaxPages:     cfg.Crawler.MaxPages,
			MaxDepth:     cfg.Crawler.MaxDepth,
			MaxBodyBytes: cfg.Crawler.MaxBodyBytes,
			Timeout:      cfg.Crawler.Timeout,
		}),
		CrawlCacheTTL: cfg.Crawler.CacheTTL,
	}

	if cfg.OpenAI.Enabled() {
		llmClient, err := llm.New(llm.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create llm client", "error", err)
			os.Exit(1)
		}
		deps.LLM = llmClient
		slog.InfoContext(ctx, "llm client ready", "model", cfg.OpenAI.Model)
	} else {
		slog.WarnContext(ctx, "llm disabled (no api key), ai actions will not be registered")
	}

	if cfg.Typesense.Enabled() {
		directory, err := typesense.New(typesense.Config{
			URL:        cfg.Typesense.URL,
			APIKey:     cfg.Typesense.APIKey,
			Collection: cfg.Typesense.Collection,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create typesense client", "error", err)
			os.Exit(1)
		}
		deps.Directory = directory
		slog.InfoContext(ctx, "site directory ready", "collection", cfg.Typesense.Collection)
	}

	if cfg.ArangoDB.Enabled() {
		graph, err := arangodb.New(ctx, arangodb.Config{
			URL:      cfg.ArangoDB.URL,
			Username: cfg.ArangoDB.Username,
			Password: cfg.ArangoDB.Password,
			Database: cfg.ArangoDB.Database,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create arangodb client", "error", err)
			os.Exit(1)
		}
		defer graph.Close()
		deps.SiteGraph = graph
		slog.InfoContext(ctx, "site graph ready", "database", cfg.ArangoDB.Database)
	}

	stores := store.NewStores(database.Pool())
	services := service.NewServices(stores, service.NewTxRunner(database), deps)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		DashboardURL: cfg.DashboardURL,
		IsProduction: cfg.IsProduction(),
	})

	return router
}

const banner = `
 ██████╗ ███╗   ██╗██████╗  ██████╗  █████╗ ██████╗ ██████╗     ███████╗███████╗██████╗ ██╗   ██╗███████╗██████╗
██╔═══██╗████╗  ██║██╔══██╗██╔═══██╗██╔══██╗██╔══██╗██╔══██╗    ██╔════╝██╔════╝██╔══██╗██║   ██║██╔════╝██╔══██╗
██║   ██║██╔██╗ ██║██████╔╝██║   ██║███████║██████╔╝██║  ██║    ███████╗█████╗  ██████╔╝██║   ██║█████╗  ██████╔╝
██║   ██║██║╚██╗██║██╔══██╗██║   ██║██╔══██║██╔══██╗██║  ██║    ╚════██║██╔══╝  ██╔══██╗╚██╗ ██╔╝██╔══╝  ██╔══██╗
╚██████╔╝██║ ╚████║██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝    ███████║███████╗██║  ██║ ╚████╔╝ ███████╗██║  ██║
 ╚═════╝ ╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝     ╚══════╝╚══════╝╚═╝  ╚═╝  ╚═══╝  ╚══════╝╚═╝  ╚═╝
`
