package worker

import (
	"context"
	"log"
	"time"

	"bim2osm/internal/config"
	"bim2osm/internal/service/conversion"
)

// StartPersistenceWorker starts the tickers that flush new conversions to
// Redis and PostgreSQL. It stops when ctx is cancelled.
func StartPersistenceWorker(ctx context.Context) {
	conversionService := conversion.GetConversionService()

	startTicker(ctx, "Redis", config.RedisBackupInterval, conversionService.SaveDirtyConversionsToRedis)
	startTicker(ctx, "PostgreSQL", config.PostgresBackupInterval, conversionService.SaveDirtyConversionsToPG)
}

func startTicker(ctx context.Context, name string, interval time.Duration, save func(context.Context) error) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := save(ctx); err != nil {
					log.Printf("Error saving to %s: %v", name, err)
				}
			}
		}
	}()

	log.Printf("%s persistence worker started with interval: %v", name, interval)
}

// Flush saves everything still pending, used on shutdown
func Flush(ctx context.Context) {
	conversionService := conversion.GetConversionService()
	if err := conversionService.SaveDirtyConversionsToRedis(ctx); err != nil {
		log.Printf("Error saving to Redis: %v", err)
	}
	if err := conversionService.SaveDirtyConversionsToPG(ctx); err != nil {
		log.Printf("Error saving to PostgreSQL: %v", err)
	}
}
