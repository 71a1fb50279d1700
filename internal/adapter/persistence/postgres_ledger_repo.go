package persistence

import (
	"context"
	"database/sql"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// PostgresLedgerRepository implements LedgerStore using PostgreSQL.
// Rows are insert-only; nothing ever updates or deletes them.
type PostgresLedgerRepository struct {
	db *sql.DB
}

// NewPostgresLedgerRepository creates a new PostgreSQL ledger repository
func NewPostgresLedgerRepository(db *sql.DB) ports.LedgerStore {
	return &PostgresLedgerRepository{db: db}
}

// Append inserts one ledger entry
func (r *PostgresLedgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (recorded_at, actor_id, actor_name, plate, action)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.Timestamp,
		entry.ActorID,
		entry.ActorName,
		entry.Plate,
		string(entry.Action),
	)
	if err != nil {
		return storeErr("failed to append ledger entry", err)
	}

	return nil
}

// ReadAll returns every entry in insertion order. Ordering for the
// projection comes from the timestamps, not from this order.
func (r *PostgresLedgerRepository) ReadAll(ctx context.Context) ([]domain.LedgerEntry, error) {
	query := `
		SELECT recorded_at, actor_id, actor_name, plate, action
		FROM ledger_entries
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("failed to read ledger", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry

	for rows.Next() {
		var entry domain.LedgerEntry
		var action string

		if err := rows.Scan(
			&entry.Timestamp,
			&entry.ActorID,
			&entry.ActorName,
			&entry.Plate,
			&action,
		); err != nil {
			return nil, storeErr("failed to scan ledger entry", err)
		}
		entry.Action = domain.Action(action)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating ledger entries", err)
	}

	return entries, nil
}
