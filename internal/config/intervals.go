package config

import "time"

// Worker intervals
const (
	// RedisBackupInterval defines how often new conversions are cached in Redis
	RedisBackupInterval = 10 * time.Second

	// PostgresBackupInterval defines how often new conversions are written to PostgreSQL
	PostgresBackupInterval = 60 * time.Second

	// ConversionCacheTTL is how long an input hash maps to its conversion in Redis
	ConversionCacheTTL = 7 * 24 * time.Hour
)
