package testutil

import (
	"os"

	accessDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/access"
	itemDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/item"
	reservationDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/reservation"
	"github.com/frahmantamala/loan-desk/internal/core/database"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm/logger"
)

// PostgresDSNEnv opts the store suites into running against a real Postgres.
const PostgresDSNEnv = "TEST_POSTGRES_DSN"

// Backend names a store the conformance suites can run against.
type Backend struct {
	Name string
	Open func() (*database.DB, error)
}

// Backends returns sqlite always and Postgres when TEST_POSTGRES_DSN is set.
func Backends() []Backend {
	backends := []Backend{{Name: database.DriverSQLite, Open: NewSQLite}}
	if dsn := os.Getenv(PostgresDSNEnv); dsn != "" {
		backends = append(backends, Backend{
			Name: database.DriverPostgres,
			Open: func() (*database.DB, error) { return NewPostgres(dsn) },
		})
	}
	return backends
}

// NewSQLite opens a fresh in-memory database with the schema migrated.
func NewSQLite() (*database.DB, error) {
	conn, err := sqlx.Connect("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	db, err := database.Wrap(conn, database.DriverSQLite, logger.Silent)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteFile opens a file-backed database with a real connection pool, so
// transactions run on separate connections and contend for the write lock.
func NewSQLiteFile(path string, maxConns int) (*database.DB, error) {
	conn, err := sqlx.Connect("sqlite3", "file:"+path+"?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(maxConns)

	db, err := database.Wrap(conn, database.DriverSQLite, logger.Silent)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgres connects to dsn, migrates and empties every table.
func NewPostgres(dsn string) (*database.DB, error) {
	conn, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(8)

	db, err := database.Wrap(conn, database.DriverPostgres, logger.Silent)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Gorm.Exec(`TRUNCATE permission_epoch, user_roles, permission_flag_actions, permission_flags, reservations, items`).Error; err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *database.DB) error {
	return db.Gorm.AutoMigrate(
		&itemDatamodel.Item{},
		&reservationDatamodel.Reservation{},
		&accessDatamodel.PermissionFlag{},
		&accessDatamodel.FlagAction{},
		&accessDatamodel.UserRole{},
		&accessDatamodel.PermissionEpoch{},
	)
}

// SeedItem inserts a catalog row with the given availability.
func SeedItem(db *database.DB, id, name string, available int) error {
	return db.Gorm.Create(&itemDatamodel.Item{ID: id, Name: name, Available: available}).Error
}
