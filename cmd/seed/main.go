// Seeds the questions table from the embedded catalog. Safe to rerun: rows
// are upserted by question id, so edits to the flow roll out without touching
// interviews already in flight.
package main

import (
	"context"
	"log/slog"
	"os"

	"rankwell.app/onboard/common/logger"
	"rankwell.app/onboard/core/config"
	"rankwell.app/onboard/core/db"
	"rankwell.app/onboard/internal/catalog"
	"rankwell.app/onboard/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeSeed)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	questions, err := catalog.Load()
	if err != nil {
		slog.ErrorContext(ctx, "embedded catalog is invalid", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	stores := store.NewStores(database.Pool())
	for i := range questions {
		if err := stores.Questions().Upsert(ctx, &questions[i]); err != nil {
			slog.ErrorContext(ctx, "failed to upsert question",
				"question_id", questions[i].ID,
				"error", err)
			os.Exit(1)
		}
	}

	slog.InfoContext(ctx, "question catalog seeded", "count", len(questions))
}
