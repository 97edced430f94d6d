package worker

import (
	"context"
	"log"
)

// StartAllWorkers initializes and starts all background workers
func StartAllWorkers(ctx context.Context) {
	log.Println("Starting all workers...")

	StartPersistenceWorker(ctx)

	log.Println("All workers started")
}
