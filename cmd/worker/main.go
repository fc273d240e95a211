package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"rankwell.app/onboard/common/arangodb"
	"rankwell.app/onboard/common/id"
	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/common/typesense"
	"rankwell.app/onboard/core/config"
	"rankwell.app/onboard/core/db"
	"rankwell.app/onboard/internal/queue"
	"rankwell.app/onboard/internal/store"
	"rankwell.app/onboard/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)
	logger.Setup(cfg)

	slog.InfoContext(ctx, "onboard worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.RedisGroup,
		"consumer_name", cfg.Queue.RedisConsumer)

	// Different node ID than the server so snowflake IDs never collide
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
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

	var directory typesense.Client
	if cfg.Typesense.Enabled() {
		directory, err = typesense.New(typesense.Config{
			URL:        cfg.Typesense.URL,
			APIKey:     cfg.Typesense.APIKey,
			Collection: cfg.Typesense.Collection,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create typesense client", "error", err)
			os.Exit(1)
		}
		if err := directory.EnsureCollection(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to ensure typesense collection", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "site directory ready", "collection", cfg.Typesense.Collection)
	} else {
		slog.WarnContext(ctx, "typesense disabled, provisioned sites will not be indexed")
	}

	// The worker owns the graph schema: the server's crawl action only writes
	// into collections ensured here.
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
		if err := ensureGraph(ctx, graph); err != nil {
			slog.ErrorContext(ctx, "failed to ensure arangodb schema", "error", err)
			os.Exit(1)
		}
		graph.Close()
		slog.InfoContext(ctx, "site graph schema ready", "database", cfg.ArangoDB.Database)
	}

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Queue.RedisStream,
		Group:        cfg.Queue.RedisGroup,
		Consumer:     cfg.Queue.RedisConsumer,
		DLQStream:    cfg.Queue.RedisDLQStream,
		BatchSize:    1, // Process one interview at a time
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	txRunner := &workerTxRunnerAdapter{db: database}
	provisioner := worker.NewProvisioner(txRunner, directory)

	w := worker.New(consumer, provisioner, worker.Config{
		MaxAttempts: 3,
	})

	reclaimer := worker.NewReclaimer(redisClient, worker.ReclaimerConfig{
		Stream:    cfg.Queue.RedisStream,
		Group:     cfg.Queue.RedisGroup,
		Consumer:  cfg.Queue.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick)
	reclaimer.Stop()

	// Stop worker (may be processing)
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

func ensureGraph(ctx context.Context, graph arangodb.Client) error {
	if err := graph.EnsureDatabase(ctx); err != nil {
		return err
	}
	if err := graph.EnsureCollections(ctx); err != nil {
		return err
	}
	return graph.EnsureGraph(ctx)
}

// workerTxRunnerAdapter bridges db.DB to worker.TxRunner.
type workerTxRunnerAdapter struct {
	db *db.DB
}

func (a *workerTxRunnerAdapter) WithTx(ctx context.Context, fn func(stores worker.StoreProvider) error) error {
	return a.db.WithTx(ctx, func(tx pgx.Tx) error {
		stores := store.NewStores(tx)
		return fn(stores)
	})
}

const banner = `
 ██████╗ ███╗   ██╗██████╗  ██████╗  █████╗ ██████╗ ██████╗     ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔═══██╗████╗  ██║██╔══██╗██╔═══██╗██╔══██╗██╔══██╗██╔══██╗    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██║   ██║██╔██╗ ██║██████╔╝██║   ██║███████║██████╔╝██║  ██║    ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║   ██║██║╚██╗██║██╔══██╗██║   ██║██╔══██║██╔══██╗██║  ██║    ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
╚██████╔╝██║ ╚████║██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
 ╚═════╝ ╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝      ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
