package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"

	"github.com/frahmantamala/loan-desk/internal/core/database"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations/<driver> directory",
	}
	migrateRollback bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "db/migrations", "sql migrations root; the driver name is appended")
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg := mustLoadConfig()

	driverName, err := database.SQLDriverName(cfg.Database.Driver)
	if err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver(driverName, cfg.Database.Source)
	if err != nil {
		log.Fatalf("goose: failed to open DB: %v\n", err)
	}
	defer db.Close()

	command := "up"
	if migrateRollback {
		command = "down"
	}
	if err := migrateDB(ctx, db, cfg.Database.Driver, command); err != nil {
		log.Fatal(err)
	}

	return nil
}

// migrateDB runs a goose command against the driver's migration directory.
func migrateDB(ctx context.Context, db *sql.DB, driver, command string) error {
	driverName, err := database.SQLDriverName(driver)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(driverName); err != nil {
		return err
	}
	goose.SetTableName("schema_migrations")
	dir := filepath.Join(migrateDir, driver)
	if err := goose.RunContext(ctx, command, db, dir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
