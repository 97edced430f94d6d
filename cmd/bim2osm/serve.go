package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"bim2osm/internal/api"
	"bim2osm/internal/bim/catalog"
	"bim2osm/internal/config"
	"bim2osm/internal/converter"
	"bim2osm/internal/postgres"
	"bim2osm/internal/redis"
	"bim2osm/internal/service/conversion"
	"bim2osm/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion API",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			cfg, err := loadConfiguration()
			if err != nil {
				log.Fatalf("Failed to load configuration: %v", err)
			}
			if port != "" {
				cfg.Port = port
			}
			runServer(cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen address, overrides PORT")
	return cmd
}

func runServer(cfg config.Config) {
	setupLogging(cfg.LogFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initializeDatabaseAndCache(cfg)
	defer closeConnections()

	setupSignalHandler(cancel)

	conversionService := initializeServices(ctx, cfg)
	worker.StartAllWorkers(ctx)

	reportMemoryStats(ctx)

	runAPIServer(cfg, conversionService)
}

func setupLogging(path string) {
	if path == "" {
		return
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	// The file stays open for the lifetime of the process

	// Use MultiWriter to output logs to both terminal and file
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
}

func loadConfiguration() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Failed to load config via config package, using fallback method: %v", err)

		cfg.Port = getEnvWithDefault("PORT", ":8080")
		cfg.DBUrl = getEnvWithDefault("DB_URL", "")
		cfg.RedisUrl = getEnvWithDefault("REDIS_URL", "")
		cfg.TagCatalog = getEnvWithDefault("TAG_CATALOG", "")
		cfg.LogFile = getEnvWithDefault("LOG_FILE", "bim2osm.log")
		cfg.LenientDirections = viper.GetBool("LENIENT_DIRECTIONS")
		cfg.Workers = viper.GetInt("WORKERS")
	}

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	value := viper.GetString(key)
	if value == "" {
		log.Printf("%s environment variable is not set, using default", key)
		return defaultValue
	}
	return value
}

// initializeDatabaseAndCache connects the configured backends. Without them
// conversions only live in memory.
func initializeDatabaseAndCache(cfg config.Config) {
	if cfg.DBUrl != "" {
		postgres.Init(cfg.DBUrl)
	} else {
		log.Println("DB_URL not set, conversions are not persisted")
	}

	if cfg.RedisUrl != "" {
		redis.Init(cfg.RedisUrl)
	} else {
		log.Println("REDIS_URL not set, input deduplication is local")
	}
}

func initializeServices(ctx context.Context, cfg config.Config) *conversion.ConversionService {
	opts := converter.Options{Workers: cfg.Workers, LenientDirections: cfg.LenientDirections}
	if cfg.TagCatalog != "" {
		tags, err := catalog.LoadTagCatalog(cfg.TagCatalog)
		if err != nil {
			log.Fatalf("Failed to load tag catalog: %v", err)
		}
		opts.Tags = tags
	}

	conversionService := conversion.GetConversionService()
	conversionService.SetOptions(opts)
	if err := conversionService.InitService(ctx); err != nil {
		log.Fatalf("Failed to initialize conversion service: %v", err)
	}
	return conversionService
}

func runAPIServer(cfg config.Config, conversionService *conversion.ConversionService) {
	r := gin.Default()

	status := map[string]string{
		"port":     cfg.Port,
		"postgres": configured(cfg.DBUrl),
		"redis":    configured(cfg.RedisUrl),
	}
	api.SetupRouter(r, status, conversionService)

	if err := r.Run(cfg.Port); err != nil {
		log.Fatalf("API server stopped: %v", err)
	}
}

func configured(url string) string {
	if url == "" {
		return "disabled"
	}
	return "enabled"
}

func reportMemoryStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				log.Printf("Alloc = %v MiB, TotalAlloc = %v MiB, Sys = %v MiB, NumGC = %v",
					m.Alloc/1024/1024, m.TotalAlloc/1024/1024, m.Sys/1024/1024, m.NumGC)
			}
		}
	}()
}

func closeConnections() {
	if err := postgres.Close(); err != nil {
		log.Printf("Error closing PostgreSQL connection: %v", err)
	}

	if err := redis.Close(); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
	}
}

func setupSignalHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Shutdown signal received, flushing conversions...")
		cancel()

		ctx, done := context.WithTimeout(context.Background(), 30*time.Second)
		worker.Flush(ctx)
		done()

		closeConnections()
		os.Exit(0)
	}()
}
