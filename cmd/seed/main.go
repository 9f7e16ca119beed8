// Command seed maintains reference data: the category list and the cached
// worker rating aggregates.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/skilllink/skilllink-api/internal/config"
	"github.com/skilllink/skilllink-api/internal/db"
	"github.com/skilllink/skilllink-api/internal/models"
	"github.com/skilllink/skilllink-api/internal/seed"
	"github.com/skilllink/skilllink-api/internal/services/events"
	"github.com/skilllink/skilllink-api/internal/services/notify"
	"github.com/skilllink/skilllink-api/internal/services/rating"
	"github.com/skilllink/skilllink-api/internal/utils"
)

func main() {
	reset := flag.Bool("reset", false, "delete all categories before inserting the built-in list")
	recompute := flag.Bool("recompute-ratings", false, "rebuild every worker's rating from their reviews")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := utils.NewLogger(cfg.Development())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	gdb, err := db.Connect(cfg.DB.DSN, cfg.DB.FallbackDSN, logger)
	if err != nil {
		logger.Fatal("postgres unavailable", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	if *reset {
		if err := seed.ResetCategories(gdb); err != nil {
			logger.Fatal("reset categories", zap.Error(err))
		}
		logger.Info("categories reset")
	} else {
		n, err := seed.EnsureCategories(gdb)
		if err != nil {
			logger.Fatal("seed categories", zap.Error(err))
		}
		logger.Info("categories seeded", zap.Int64("inserted", n))
	}

	if !*recompute {
		return
	}
	ratings := rating.NewRatingService(gdb, notify.NewNotifyService(gdb, nil, nil, logger), events.Nop{}, logger)
	var ids []uuid.UUID
	if err := gdb.Model(&models.Worker{}).Pluck("id", &ids).Error; err != nil {
		logger.Fatal("list workers", zap.Error(err))
	}
	ctx := context.Background()
	for _, id := range ids {
		if err := ratings.Recompute(ctx, id); err != nil {
			logger.Warn("recompute rating", zap.String("worker", id.String()), zap.Error(err))
		}
	}
	logger.Info("ratings recomputed", zap.Int("workers", len(ids)))
}
