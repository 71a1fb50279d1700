package persistence

import (
	"context"
	"database/sql"

	"github.com/motorpool/motorpool/internal/ports"
)

// PostgresSettingRepository implements SettingStore using PostgreSQL
type PostgresSettingRepository struct {
	db *sql.DB
}

// NewPostgresSettingRepository creates a new PostgreSQL setting repository
func NewPostgresSettingRepository(db *sql.DB) ports.SettingStore {
	return &PostgresSettingRepository{db: db}
}

// All returns every stored key/value pair
func (r *PostgresSettingRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, storeErr("failed to read settings", err)
	}
	defer rows.Close()

	values := make(map[string]string)

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, storeErr("failed to scan setting", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating settings", err)
	}

	return values, nil
}

// Set writes one key, overwriting any previous value
func (r *PostgresSettingRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2
	`

	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return storeErr("failed to write setting", err)
	}

	return nil
}
