package main

import (
	"context"
	"fmt"
	"log/slog"

	"courseware/internal/config"
	libraryRepo "courseware/internal/domain/repositories/library"
	"courseware/internal/domain/services"
	"courseware/internal/repository/memory"
	"courseware/internal/repository/postgres"
	postgresLibrary "courseware/internal/repository/postgres/library"
	"courseware/internal/storage/dynamo"
	storage "courseware/internal/storage/memory"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// openNodeStore selects the node store named by STORE_DRIVER.
// The returned func releases its resources.
func openNodeStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (libraryRepo.NodeRepository, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory node store, data is lost on restart")
		return memory.NewNodeRepository(), func() {}, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.EnsureSchema(ctx, pool, tables, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}

		repo := postgresLibrary.NewNodeRepository(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		})
		return repo, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q (want memory or postgres)", cfg.StoreDriver)
	}
}

// openStorage selects the byte storage collaborators named by BLOB_DRIVER
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.ContentStore, services.QuotaManager, error) {
	switch cfg.BlobDriver {
	case "memory":
		return storage.NewContentStore("http://localhost:" + cfg.Port + "/blobs"),
			storage.NewQuotaManager(cfg.TraineeQuotaBytes), nil

	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)

		logger.Info("dynamodb storage configured",
			"region", awsCfg.Region,
			"blob_table", cfg.BlobTable,
			"quota_table", cfg.QuotaTable,
		)
		return dynamo.NewContentStore(client, cfg.BlobTable),
			dynamo.NewQuotaManager(client, cfg.QuotaTable, cfg.TraineeQuotaBytes), nil

	default:
		return nil, nil, fmt.Errorf("unknown BLOB_DRIVER %q (want memory or dynamodb)", cfg.BlobDriver)
	}
}
