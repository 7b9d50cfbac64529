package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	JWKSURL     string

	// Node store
	StoreDriver string // "memory" or "postgres"
	DatabaseURL string
	TablePrefix string

	// Library policy
	RootFolderName      string
	MoveCollisionPolicy string // "fail" or "suffix"

	// Byte storage collaborator
	BlobDriver        string // "memory" or "dynamodb"
	BlobTable         string
	QuotaTable        string
	TraineeQuotaBytes int64

	// Logging
	LogDir      string
	LogMaxFiles int
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:                getEnv("PORT", "8080"),
		Environment:         env,
		CORSOrigins:         getEnv("CORS_ORIGINS", "http://localhost:3000"),
		JWKSURL:             getEnv("JWKS_URL", ""),
		StoreDriver:         getEnv("STORE_DRIVER", "memory"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		TablePrefix:         getTablePrefix(env),
		RootFolderName:      getEnv("ROOT_FOLDER_NAME", DefaultRootFolderName),
		MoveCollisionPolicy: getEnv("MOVE_COLLISION_POLICY", "fail"),
		BlobDriver:          getEnv("BLOB_DRIVER", "memory"),
		BlobTable:           getEnv("BLOB_TABLE", "ContentBlobs"),
		QuotaTable:          getEnv("QUOTA_TABLE", "TraineeQuotas"),
		TraineeQuotaBytes:   getEnvInt64("TRAINEE_QUOTA_BYTES", DefaultTraineeQuotaBytes),
		LogDir:              getEnv("LOG_DIR", ""),
		LogMaxFiles:         int(getEnvInt64("LOG_MAX_FILES", 10)),
	}
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}
