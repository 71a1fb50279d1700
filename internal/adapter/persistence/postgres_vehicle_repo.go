package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// PostgresVehicleRepository implements VehicleStore using PostgreSQL
type PostgresVehicleRepository struct {
	db *sql.DB
}

// NewPostgresVehicleRepository creates a new PostgreSQL vehicle repository
func NewPostgresVehicleRepository(db *sql.DB) ports.VehicleStore {
	return &PostgresVehicleRepository{db: db}
}

// Add registers a vehicle
func (r *PostgresVehicleRepository) Add(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles (plate, description, added_at, serviced_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, v.Plate, v.Description, v.AddedAt, v.ServicedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVehicleExists
		}
		return storeErr("failed to add vehicle", err)
	}

	return nil
}

// Find retrieves a vehicle by plate
func (r *PostgresVehicleRepository) Find(ctx context.Context, plate string) (*domain.Vehicle, error) {
	query := `
		SELECT plate, description, added_at, serviced_at
		FROM vehicles
		WHERE plate = $1
	`

	var v domain.Vehicle
	err := r.db.QueryRowContext(ctx, query, domain.NormalizePlate(plate)).Scan(
		&v.Plate,
		&v.Description,
		&v.AddedAt,
		&v.ServicedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, storeErr("failed to find vehicle", err)
	}

	return &v, nil
}

// List returns all vehicles ordered by plate
func (r *PostgresVehicleRepository) List(ctx context.Context) ([]*domain.Vehicle, error) {
	query := `
		SELECT plate, description, added_at, serviced_at
		FROM vehicles
		ORDER BY plate
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("failed to list vehicles", err)
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle

	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(&v.Plate, &v.Description, &v.AddedAt, &v.ServicedAt); err != nil {
			return nil, storeErr("failed to scan vehicle", err)
		}
		vehicles = append(vehicles, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating vehicles", err)
	}

	return vehicles, nil
}

// Remove deletes a vehicle by plate
func (r *PostgresVehicleRepository) Remove(ctx context.Context, plate string) error {
	query := `DELETE FROM vehicles WHERE plate = $1`

	result, err := r.db.ExecContext(ctx, query, domain.NormalizePlate(plate))
	if err != nil {
		return storeErr("failed to remove vehicle", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return domain.ErrVehicleNotFound
	}

	return nil
}

// MarkServiced records a completed service
func (r *PostgresVehicleRepository) MarkServiced(ctx context.Context, plate string, at time.Time) error {
	query := `UPDATE vehicles SET serviced_at = $2 WHERE plate = $1`

	result, err := r.db.ExecContext(ctx, query, domain.NormalizePlate(plate), at)
	if err != nil {
		return storeErr("failed to mark vehicle serviced", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return domain.ErrVehicleNotFound
	}

	return nil
}
