package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	"github.com/jmoiron/sqlx"
)

type OverdueReport struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewOverdueReport(db *sqlx.DB) reservation.ReportAPI {
	return &OverdueReport{db: db, dialect: goqu.Dialect(dialectFor(db.DriverName()))}
}

// dialectFor maps a database/sql driver name onto its goqu dialect.
func dialectFor(driverName string) string {
	if driverName == "sqlite3" {
		return "sqlite3"
	}
	return "postgres"
}

func (o *OverdueReport) buildQuery(now time.Time) (string, []interface{}, error) {
	return o.dialect.
		From(goqu.T("reservations").As("r")).
		Join(goqu.T("items").As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("r.item_id")))).
		Select(
			goqu.I("r.id"),
			goqu.I("r.item_id"),
			goqu.I("i.name").As("item_name"),
			goqu.I("r.holder"),
			goqu.I("r.quantity"),
			goqu.I("r.expiry_time"),
			goqu.I("r.notified"),
		).
		Where(goqu.I("r.expiry_time").Lte(now)).
		Order(goqu.I("r.expiry_time").Asc(), goqu.I("r.id").Asc()).
		Prepared(true).
		ToSQL()
}

func (o *OverdueReport) Overdue(ctx context.Context, now time.Time) ([]reservation.OverdueEntry, error) {
	query, args, err := o.buildQuery(now)
	if err != nil {
		return nil, fmt.Errorf("failed to build overdue report query: %w", err)
	}

	entries := []reservation.OverdueEntry{}
	if err := o.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].ExpiryTime = entries[i].ExpiryTime.UTC()
	}
	return entries, nil
}
