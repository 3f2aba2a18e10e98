package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB bundles the two handles the repositories use over one connection pool:
// gorm for the transactional stores, sqlx for raw report queries and health.
type DB struct {
	SQL  *sqlx.DB
	Gorm *gorm.DB
}

// SQLDriverName maps the configured driver onto its database/sql name.
func SQLDriverName(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "pgx", nil
	case DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func Open(cfg internal.DatabaseConfig) (*DB, error) {
	driverName, err := SQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Connect(driverName, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// sqlite serialises writers; a single connection also keeps
		// in-memory databases shared between gorm and sqlx.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	db, err := Wrap(conn, cfg.Driver, logger.Warn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Wrap builds the gorm handle on top of an existing sqlx connection.
func Wrap(conn *sqlx.DB, driver string, level logger.LogLevel) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{Conn: conn.DB})
	case DriverSQLite:
		dialector = &sqlite.Dialector{Conn: conn.DB}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise gorm: %w", err)
	}

	return &DB{SQL: conn, Gorm: gdb}, nil
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// IsUniqueViolation reports whether err is a unique-constraint rejection
// from either backing store.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
