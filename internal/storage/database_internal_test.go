package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testOpenDatabaseFailureMessage = "open failure"

func TestOpenDatabaseWrapsOpenerError(testingT *testing.T) {
	originalOpeners := databaseOpeners
	testingT.Cleanup(func() {
		databaseOpeners = originalOpeners
	})

	databaseOpeners = map[string]databaseOpener{
		DriverNameSQLite: func(Config) (*gorm.DB, error) {
			return nil, errors.New(testOpenDatabaseFailureMessage)
		},
	}

	_, openErr := OpenDatabase(Config{
		DriverName:     DriverNameSQLite,
		DataSourceName: "file:invalid",
	})
	require.Error(testingT, openErr)
	require.Contains(testingT, openErr.Error(), errorMessageOpenDatabase)
}

func TestOpenSQLiteDatabaseReportsOpenError(testingT *testing.T) {
	tempDirectory := testingT.TempDir()
	missingDirectory := filepath.Join(tempDirectory, "missing")
	dataSourceName := fmt.Sprintf("file:%s?mode=rwc&_foreign_keys=on", filepath.Join(missingDirectory, "test.db"))

	_, openErr := openSQLiteDatabase(Config{DataSourceName: dataSourceName})
	require.Error(testingT, openErr)
	require.Contains(testingT, openErr.Error(), errorMessageOpenSQLiteDatabase)
}

func TestSQLiteDataSourceNameAddsPragmas(testingT *testing.T) {
	testCases := []struct {
		name          string
		configuration Config
		expected      string
	}{
		{
			name:          "plain file",
			configuration: Config{DataSourceName: "/var/lib/leadloop/leadloop.db"},
			expected:      "/var/lib/leadloop/leadloop.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		{
			name:          "file uri with parameters",
			configuration: Config{DataSourceName: "file:leadloop.db?_foreign_keys=on", BusyTimeout: 2 * time.Second},
			expected:      "file:leadloop.db?_foreign_keys=on&_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)",
		},
		{
			name:          "shared memory",
			configuration: Config{DataSourceName: "file:test?mode=memory&cache=shared"},
			expected:      "file:test?mode=memory&cache=shared&_pragma=busy_timeout(5000)",
		},
		{
			name:          "explicit pragmas kept",
			configuration: Config{DataSourceName: "leadloop.db?_pragma=busy_timeout(100)&_pragma=journal_mode(DELETE)"},
			expected:      "leadloop.db?_pragma=busy_timeout(100)&_pragma=journal_mode(DELETE)",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			require.Equal(testingT, testCase.expected, sqliteDataSourceName(testCase.configuration))
		})
	}
}

func TestOpenDatabaseUsesWriteAheadLogForFiles(testingT *testing.T) {
	database, openErr := OpenDatabase(Config{
		DriverName:     DriverNameSQLite,
		DataSourceName: filepath.Join(testingT.TempDir(), "leadloop.db"),
	})
	require.NoError(testingT, openErr)
	sqlDatabase, sqlErr := database.DB()
	require.NoError(testingT, sqlErr)
	testingT.Cleanup(func() {
		_ = sqlDatabase.Close()
	})

	var journalMode string
	require.NoError(testingT, database.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	require.Equal(testingT, "wal", strings.ToLower(journalMode))

	var busyTimeout int
	require.NoError(testingT, database.Raw("PRAGMA busy_timeout").Scan(&busyTimeout).Error)
	require.Equal(testingT, int(DefaultBusyTimeout.Milliseconds()), busyTimeout)
}
