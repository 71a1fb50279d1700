package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// PostgresRequestRepository implements RequestStore using PostgreSQL.
// The conditional UPDATE in Update is the arbiter that makes concurrent
// decisions on one request first-committed-wins.
type PostgresRequestRepository struct {
	db *sql.DB
}

// NewPostgresRequestRepository creates a new PostgreSQL request repository
func NewPostgresRequestRepository(db *sql.DB) ports.RequestStore {
	return &PostgresRequestRepository{db: db}
}

// Create saves a new request
func (r *PostgresRequestRepository) Create(ctx context.Context, req *domain.AccessRequest) error {
	query := `
		INSERT INTO access_requests (id, requester_id, display_name, status, wake_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.RequesterID,
		req.DisplayName,
		string(req.Status),
		req.WakeAt,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return storeErr("failed to create request", err)
	}

	return nil
}

// Find retrieves a request by id
func (r *PostgresRequestRepository) Find(ctx context.Context, id string) (*domain.AccessRequest, error) {
	query := `
		SELECT id, requester_id, display_name, status, wake_at, created_at, updated_at
		FROM access_requests
		WHERE id = $1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByRequester returns the live request for a requester, if any
func (r *PostgresRequestRepository) FindByRequester(ctx context.Context, requesterID int64) (*domain.AccessRequest, error) {
	query := `
		SELECT id, requester_id, display_name, status, wake_at, created_at, updated_at
		FROM access_requests
		WHERE requester_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, requesterID,
		string(domain.RequestPending), string(domain.RequestSnoozed)))
}

// Update persists the request only while its stored status still equals
// from. Zero rows affected means another decision got there first.
func (r *PostgresRequestRepository) Update(ctx context.Context, req *domain.AccessRequest, from domain.RequestStatus) error {
	query := `
		UPDATE access_requests
		SET status = $2, wake_at = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		req.ID,
		string(req.Status),
		req.WakeAt,
		req.UpdatedAt,
		string(from),
	)
	if err != nil {
		return storeErr("failed to update request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeErr("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		exists, err := r.exists(ctx, req.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrRequestNotFound
		}
		return domain.ErrRequestAlreadyResolved
	}

	return nil
}

// ListByStatus returns every request in the given status
func (r *PostgresRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.AccessRequest, error) {
	query := `
		SELECT id, requester_id, display_name, status, wake_at, created_at, updated_at
		FROM access_requests
		WHERE status = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, storeErr("failed to list requests", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ListSnoozedDue returns snoozed requests whose wake time has passed
func (r *PostgresRequestRepository) ListSnoozedDue(ctx context.Context, now time.Time) ([]*domain.AccessRequest, error) {
	query := `
		SELECT id, requester_id, display_name, status, wake_at, created_at, updated_at
		FROM access_requests
		WHERE status = $1 AND wake_at IS NOT NULL AND wake_at <= $2
		ORDER BY wake_at
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.RequestSnoozed), now)
	if err != nil {
		return nil, storeErr("failed to list snoozed requests", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *PostgresRequestRepository) exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_requests WHERE id = $1`, id).Scan(&n)
	if err != nil {
		return false, storeErr("failed to check request", err)
	}
	return n > 0, nil
}

func (r *PostgresRequestRepository) scanOne(row *sql.Row) (*domain.AccessRequest, error) {
	var req domain.AccessRequest
	var status string
	var wakeAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.DisplayName,
		&status,
		&wakeAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRequestNotFound
		}
		return nil, storeErr("failed to find request", err)
	}

	req.Status = domain.RequestStatus(status)
	if wakeAt.Valid {
		t := wakeAt.Time
		req.WakeAt = &t
	}

	return &req, nil
}

func (r *PostgresRequestRepository) scanAll(rows *sql.Rows) ([]*domain.AccessRequest, error) {
	var requests []*domain.AccessRequest

	for rows.Next() {
		var req domain.AccessRequest
		var status string
		var wakeAt sql.NullTime

		if err := rows.Scan(
			&req.ID,
			&req.RequesterID,
			&req.DisplayName,
			&status,
			&wakeAt,
			&req.CreatedAt,
			&req.UpdatedAt,
		); err != nil {
			return nil, storeErr("failed to scan request", err)
		}

		req.Status = domain.RequestStatus(status)
		if wakeAt.Valid {
			t := wakeAt.Time
			req.WakeAt = &t
		}

		requests = append(requests, &req)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("error iterating requests", err)
	}

	return requests, nil
}
