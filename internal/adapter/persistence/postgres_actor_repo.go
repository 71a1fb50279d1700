package persistence

import (
	"context"
	"database/sql"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// PostgresActorRepository implements ActorStore using PostgreSQL
type PostgresActorRepository struct {
	db *sql.DB
}

// NewPostgresActorRepository creates a new PostgreSQL actor repository
func NewPostgresActorRepository(db *sql.DB) ports.ActorStore {
	return &PostgresActorRepository{db: db}
}

// Add creates an actor
func (r *PostgresActorRepository) Add(ctx context.Context, a *domain.Actor) error {
	query := `
		INSERT INTO actors (id, display_name, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET display_name = $2, role = $3
	`

	_, err := r.db.ExecContext(ctx, query, a.ID, a.DisplayName, string(a.Role), a.CreatedAt)
	if err != nil {
		return storeErr("failed to add actor", err)
	}

	return nil
}

// Find retrieves an actor by id
func (r *PostgresActorRepository) Find(ctx context.Context, id int64) (*domain.Actor, error) {
	query := `
		SELECT id, display_name, role, created_at
		FROM actors
		WHERE id = $1
	`

	var a domain.Actor
	var role string

	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.DisplayName, &role, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrActorNotFound
		}
		return nil, storeErr("failed to find actor", err)
	}
	a.Role = domain.Role(role)

	return &a, nil
}

// List returns all actors ordered by creation time
func (r *PostgresActorRepository) List(ctx context.Context) ([]*domain.Actor, error) {
	query := `
		SELECT id, display_name, role, created_at
		FROM actors
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("failed to list actors", err)
	}
	defer rows.Close()

	var actors []*domain.Actor

	for rows.Next() {
		var a domain.Actor
		var role string

		if err := rows.Scan(&a.ID, &a.DisplayName, &role, &a.CreatedAt); err != nil {
			return nil, storeErr("failed to scan actor", err)
		}
		a.Role = domain.Role(role)
		actors = append(actors, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating actors", err)
	}

	return actors, nil
}

// Remove deletes an actor by id
func (r *PostgresActorRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM actors WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return storeErr("failed to remove actor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return domain.ErrActorNotFound
	}

	return nil
}
