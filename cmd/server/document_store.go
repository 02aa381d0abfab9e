package main

import (
	"context"

	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

func openDocumentStore(ctx context.Context, configuration ServerConfig) (storage.DocumentStore, func() error, error) {
	return storage.OpenDocumentStore(ctx, storage.BackendConfig{
		Backend: configuration.StoreBackend,
		Database: storage.Config{
			DriverName:     configuration.DatabaseDriver,
			DataSourceName: configuration.DatabaseDSN,
		},
		RedisURL: configuration.RedisURL,
	})
}
