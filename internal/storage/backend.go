package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// BackendSQLite keeps documents in a gorm-managed table.
	BackendSQLite = "sqlite"
	// BackendRedis keeps documents in redis keys.
	BackendRedis = "redis"

	errorMessageUnsupportedBackend = "storage: unsupported store backend"
	errorMessageMissingRedisURL    = "storage: missing redis url"
)

var (
	// ErrUnsupportedBackend indicates a store backend other than sqlite or redis.
	ErrUnsupportedBackend = errors.New(errorMessageUnsupportedBackend)
	// ErrMissingRedisURL indicates the redis backend was selected without a URL.
	ErrMissingRedisURL = errors.New(errorMessageMissingRedisURL)
)

// BackendConfig selects and configures a DocumentStore implementation.
type BackendConfig struct {
	Backend  string
	Database Config
	RedisURL string
}

// OpenDocumentStore opens the configured backend, migrating the sqlite schema
// when needed. The returned closer releases the underlying connection.
func OpenDocumentStore(ctx context.Context, configuration BackendConfig) (DocumentStore, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(configuration.Backend)) {
	case BackendRedis:
		if strings.TrimSpace(configuration.RedisURL) == "" {
			return nil, nil, ErrMissingRedisURL
		}
		store, openErr := OpenRedisDocumentStore(ctx, configuration.RedisURL)
		if openErr != nil {
			return nil, nil, openErr
		}
		return store, store.Close, nil
	case BackendSQLite, "":
		database, openErr := OpenDatabase(configuration.Database)
		if openErr != nil {
			return nil, nil, openErr
		}
		if migrateErr := AutoMigrate(database); migrateErr != nil {
			return nil, nil, migrateErr
		}
		sqlDatabase, sqlErr := database.DB()
		if sqlErr != nil {
			return nil, nil, sqlErr
		}
		return NewGormDocumentStore(database), sqlDatabase.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, configuration.Backend)
	}
}
