package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	// DriverNameSQLite identifies the SQLite driver implementation.
	DriverNameSQLite = "sqlite"

	// DefaultBusyTimeout is how long a sqlite connection waits on a lock held
	// by another process sharing the file.
	DefaultBusyTimeout = 5 * time.Second

	sqlitePragmaParameter    = "_pragma"
	sqliteInMemoryMarker     = "mode=memory"
	sqliteInMemoryName       = ":memory:"
	sqliteBusyTimeoutPragma  = "busy_timeout"
	sqliteJournalModePragma  = "journal_mode(WAL)"
	sqliteQuerySeparator     = "?"
	sqliteParameterSeparator = "&"

	errorMessageMissingDatabaseDriverName = "storage: missing database driver name"
	errorMessageUnsupportedDatabaseDriver = "storage: unsupported database driver"
	errorMessageMissingDataSourceName     = "storage: missing database data source name"
	errorMessageOpenDatabase              = "storage: open database"
	errorMessageOpenSQLiteDatabase        = "storage: open sqlite database"
	errorMessageMigrateDocuments          = "storage: migrate documents table"
)

var (
	// ErrMissingDatabaseDriverName indicates the database driver name configuration was omitted.
	ErrMissingDatabaseDriverName = errors.New(errorMessageMissingDatabaseDriverName)
	// ErrUnsupportedDatabaseDriver indicates the provided database driver is not supported.
	ErrUnsupportedDatabaseDriver = errors.New(errorMessageUnsupportedDatabaseDriver)
	// ErrMissingDataSourceName indicates the database data source name configuration was omitted.
	ErrMissingDataSourceName = errors.New(errorMessageMissingDataSourceName)
)

type databaseOpener func(Config) (*gorm.DB, error)

var databaseOpeners = map[string]databaseOpener{
	DriverNameSQLite: openSQLiteDatabase,
}

// Config selects the SQL database backing the documents table. The server and
// leadctl may open the same sqlite file at once, so BusyTimeout bounds how long
// a writer waits for the other process; zero means DefaultBusyTimeout.
type Config struct {
	DriverName     string
	DataSourceName string
	BusyTimeout    time.Duration
}

// OpenDatabase opens the documents database with the configured driver.
func OpenDatabase(configuration Config) (*gorm.DB, error) {
	driverName := strings.TrimSpace(configuration.DriverName)
	if driverName == "" {
		return nil, ErrMissingDatabaseDriverName
	}
	opener, supported := databaseOpeners[driverName]
	if !supported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabaseDriver, driverName)
	}

	configuration.DriverName = driverName
	configuration.DataSourceName = strings.TrimSpace(configuration.DataSourceName)
	database, openErr := opener(configuration)
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenDatabase, openErr)
	}
	return database, nil
}

func openSQLiteDatabase(configuration Config) (*gorm.DB, error) {
	if configuration.DataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}
	database, openErr := gorm.Open(sqlite.Open(sqliteDataSourceName(configuration)), &gorm.Config{})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenSQLiteDatabase, openErr)
	}
	return database, nil
}

// sqliteDataSourceName adds per-connection pragmas: a busy timeout on every
// database, and write-ahead logging on file databases so readers in one
// process do not block writers in another.
func sqliteDataSourceName(configuration Config) string {
	dataSourceName := configuration.DataSourceName
	busyTimeout := configuration.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	pragmas := make([]string, 0, 2)
	if !strings.Contains(dataSourceName, sqliteBusyTimeoutPragma) {
		pragmas = append(pragmas, sqlitePragmaParameter+"="+sqliteBusyTimeoutPragma+"("+strconv.FormatInt(busyTimeout.Milliseconds(), 10)+")")
	}
	inMemory := strings.Contains(dataSourceName, sqliteInMemoryMarker) || strings.HasPrefix(dataSourceName, sqliteInMemoryName)
	if !inMemory && !strings.Contains(dataSourceName, "journal_mode") {
		pragmas = append(pragmas, sqlitePragmaParameter+"="+sqliteJournalModePragma)
	}
	if len(pragmas) == 0 {
		return dataSourceName
	}

	separator := sqliteQuerySeparator
	if strings.Contains(dataSourceName, sqliteQuerySeparator) {
		separator = sqliteParameterSeparator
	}
	return dataSourceName + separator + strings.Join(pragmas, sqliteParameterSeparator)
}

// AutoMigrate creates the documents table.
func AutoMigrate(database *gorm.DB) error {
	if migrateErr := database.AutoMigrate(&model.Document{}); migrateErr != nil {
		return fmt.Errorf("%s: %w", errorMessageMigrateDocuments, migrateErr)
	}
	return nil
}
