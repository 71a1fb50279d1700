package ports

import (
	"context"
	"errors"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
)

// Transient store failures. The retry shell retries these two kinds and
// nothing else; any other error propagates immediately.
var (
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrRateLimited      = errors.New("record store rate limited")

	// ErrOperationFailed wraps the last transient error once retries
	// are exhausted. It ends the command, not the process.
	ErrOperationFailed = errors.New("operation failed after retries")
)

// LedgerStore is the append-only ledger. There is deliberately no
// update or delete: entries are immutable and ordering is recovered by
// timestamp at projection time, not from storage order. A retried
// append after an ambiguous failure may duplicate an entry; the
// projection tolerates that.
//
// The store offers no compare-and-append, so read-validate-append is
// only serialized by the in-process gate. Multiple process instances
// sharing one store remain a known correctness gap.
type LedgerStore interface {
	// Append adds one entry. It either fully succeeds or fully fails.
	Append(ctx context.Context, entry domain.LedgerEntry) error

	// ReadAll returns every entry in storage order. Rows that do not
	// parse are returned as invalid entries and skipped by the
	// projection.
	ReadAll(ctx context.Context) ([]domain.LedgerEntry, error)
}

// VehicleStore persists the registered pool.
type VehicleStore interface {
	// Add registers a vehicle. Fails with domain.ErrVehicleExists on a
	// duplicate plate.
	Add(ctx context.Context, v *domain.Vehicle) error

	// Find retrieves a vehicle by normalized plate. Fails with
	// domain.ErrVehicleNotFound when absent.
	Find(ctx context.Context, plate string) (*domain.Vehicle, error)

	// List returns all vehicles.
	List(ctx context.Context) ([]*domain.Vehicle, error)

	// Remove deletes a vehicle by plate.
	Remove(ctx context.Context, plate string) error

	// MarkServiced records a completed service at the given time.
	MarkServiced(ctx context.Context, plate string, at time.Time) error
}

// ActorStore persists authorized users.
type ActorStore interface {
	// Add creates an actor.
	Add(ctx context.Context, a *domain.Actor) error

	// Find retrieves an actor by id. Fails with domain.ErrActorNotFound
	// when absent.
	Find(ctx context.Context, id int64) (*domain.Actor, error)

	// List returns all actors.
	List(ctx context.Context) ([]*domain.Actor, error)

	// Remove deletes an actor by id.
	Remove(ctx context.Context, id int64) error
}

// RequestStore persists access requests.
type RequestStore interface {
	// Create saves a new request.
	Create(ctx context.Context, r *domain.AccessRequest) error

	// Find retrieves a request by id. Fails with
	// domain.ErrRequestNotFound when absent.
	Find(ctx context.Context, id string) (*domain.AccessRequest, error)

	// FindByRequester returns the live (non-terminal) request for a
	// requester. Fails with domain.ErrRequestNotFound when there is
	// none.
	FindByRequester(ctx context.Context, requesterID int64) (*domain.AccessRequest, error)

	// Update persists r only if the stored status still equals from.
	// Fails with domain.ErrRequestAlreadyResolved otherwise, which is
	// what makes concurrent decisions first-committed-wins.
	Update(ctx context.Context, r *domain.AccessRequest, from domain.RequestStatus) error

	// ListByStatus returns every request in the given status.
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.AccessRequest, error)

	// ListSnoozedDue returns snoozed requests whose wake time has
	// passed.
	ListSnoozedDue(ctx context.Context, now time.Time) ([]*domain.AccessRequest, error)
}

// SettingStore reads and writes the text key/value toggles. No history
// is kept.
type SettingStore interface {
	// All returns every stored key/value pair.
	All(ctx context.Context) (map[string]string, error)

	// Set writes one key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
}
