// Package postgres stores the durable session cache in PostgreSQL.
package postgres

import (
	"context"

	"datanomics/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database, checks it is reachable and applies migrations
func Connect(ctx context.Context, databaseURL string, migrate bool) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to ping database", err)
	}
	if migrate {
		if err := NewMigrator(db, nil).Up(ctx); err != nil {
			db.Close()
			return nil, errors.DatabaseError("database migration failed", err)
		}
	}
	return db, nil
}
