package runhistory

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/srprism/srprism-batch/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store records and retrieves RunRecords. SaveRun is best-effort from
// the driver's point of view: the caller logs and continues on error
// rather than failing the run.
type Store interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

type gormStore struct {
	db *gorm.DB
}

// Open opens a Store against dsn, selecting the GORM dialector from its
// scheme/prefix, and applies embedded migrations before returning.
// Recognized forms: a bare path or "sqlite://path" for SQLite (the
// default), "mysql://..." and "postgres://...".
func Open(dsn string) (Store, error) {
	dialector, driverName, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("runhistory: failed to open database: %w", err)
	}

	if err := migrateUp(db, driverName); err != nil {
		return nil, err
	}

	return &gormStore{db: db}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, string, error) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return gormmysql.Open(strings.TrimPrefix(dsn, "mysql://")), "mysql", nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return gormpostgres.Open(dsn), "postgres", nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), "sqlite3", nil
	case dsn == "":
		return nil, "", fmt.Errorf("runhistory: empty DSN")
	default:
		return sqlite.Open(dsn), "sqlite3", nil
	}
}

func migrateUp(db *gorm.DB, driverName string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("runhistory: failed to get underlying *sql.DB: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("runhistory: failed to load embedded migrations: %w", err)
	}

	var dbDriver migratedb.Driver
	switch driverName {
	case "mysql":
		dbDriver, err = migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	case "postgres":
		dbDriver, err = migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	default:
		dbDriver, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	}
	if err != nil {
		return fmt.Errorf("runhistory: failed to construct migrate driver for %s: %w", driverName, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, dbDriver)
	if err != nil {
		return fmt.Errorf("runhistory: failed to construct migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("runhistory: migration failed: %w", err)
	}
	return nil
}

func (s *gormStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		logger.Warnf("runhistory: failed to save run record %q: %v", rec.ID, err)
		return err
	}
	return nil
}

func (s *gormStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	var recs []RunRecord
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
