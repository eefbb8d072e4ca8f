// Package db implements the repository and event store ports on a
// relational database through GORM. SQLite backs embedded deployments and
// tests; PostgreSQL and MySQL back shared ones.
package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Options configures a database connection.
type Options struct {
	// Driver is one of sqlite, postgres, mysql.
	Driver string
	// DSN is the driver-specific connection string. For sqlite it is the
	// database file path, or ":memory:" for an in-process database.
	DSN string
	// LogQueries enables GORM query logging.
	LogQueries bool
}

// Open connects to the configured database with error translation enabled,
// so unique constraint violations surface as gorm.ErrDuplicatedKey across
// drivers.
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case DriverSQLite, "":
		dsn := opts.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverMySQL:
		dialector = mysql.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	logLevel := logger.Silent
	if opts.LogQueries {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}
	return db, nil
}

// AutoMigrate creates or updates every registry table.
func AutoMigrate(db *gorm.DB) error {
	for _, model := range []any{
		&AssetRecord{},
		&AssetTagRecord{},
		&AssetDependencyRecord{},
		&EventRecord{},
	} {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate %T: %w", model, err)
		}
	}
	return nil
}
