package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/gate"
	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/retry"
	"github.com/motorpool/motorpool/internal/service/logger"
)

// AccessUseCase runs the admission lifecycle for unregistered
// requesters and the actor roster. Decisions on one request are
// serialized through the gate and resolved first-committed-wins by the
// request store's conditional update.
type AccessUseCase struct {
	requests  ports.RequestStore
	actors    ports.ActorStore
	settings  ports.SettingStore
	notifier  ports.Notifier
	gate      *gate.Gate
	retry     retry.Config
	log       logger.Logger
	adminChat string
	now       func() time.Time
	newID     func() string
}

// NewAccessUseCase creates an access use case.
func NewAccessUseCase(
	requests ports.RequestStore,
	actors ports.ActorStore,
	settings ports.SettingStore,
	notifier ports.Notifier,
	g *gate.Gate,
	retryCfg retry.Config,
	log logger.Logger,
	adminChat string,
) *AccessUseCase {
	return &AccessUseCase{
		requests:  requests,
		actors:    actors,
		settings:  settings,
		notifier:  notifier,
		gate:      g,
		retry:     retryCfg,
		log:       log,
		adminChat: adminChat,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock overrides the time source. Used in tests.
func (uc *AccessUseCase) WithClock(now func() time.Time) *AccessUseCase {
	uc.now = now
	return uc
}

// RoleOf computes the actor's role fresh from the actor store. Unknown
// actors get RoleUnknown; nothing is cached between calls.
func (uc *AccessUseCase) RoleOf(ctx context.Context, actorID int64) (domain.Role, error) {
	actor, err := uc.actors.Find(ctx, actorID)
	if errors.Is(err, domain.ErrActorNotFound) {
		return domain.RoleUnknown, nil
	}
	if err != nil {
		return domain.RoleUnknown, fmt.Errorf("failed to look up actor: %w", err)
	}
	return actor.Role, nil
}

// Submit registers first contact from an unrecognized requester. If a
// live request already exists it is returned as is; otherwise a pending
// request is created and the admin channel is prompted to decide.
func (uc *AccessUseCase) Submit(ctx context.Context, requesterID int64, displayName string) (*domain.AccessRequest, error) {
	var req *domain.AccessRequest
	created := false

	// Serialized per requester: two concurrent first contacts must not
	// both pass the lookup and create duplicate live requests.
	err := uc.gate.Do(requesterKey(requesterID), func() error {
		existing, err := uc.requests.FindByRequester(ctx, requesterID)
		if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
			return fmt.Errorf("failed to look up request: %w", err)
		}
		if existing != nil {
			req = existing
			return nil
		}

		req = domain.NewAccessRequest(uc.newID(), requesterID, displayName, uc.now())
		err = uc.retry.Do(ctx, "request create", func(ctx context.Context) error {
			return uc.requests.Create(ctx, req)
		})
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		uc.promptAdmins(ctx, req)
	}
	return req, nil
}

// Decide applies an admin decision to a pending request. Concurrent
// decisions on the same request resolve first-committed-wins: the
// losing decision fails with domain.ErrRequestAlreadyResolved and
// creates no duplicate actor or notification.
func (uc *AccessUseCase) Decide(ctx context.Context, requestID string, decision domain.Decision, snoozeFor time.Duration) error {
	var approved *domain.AccessRequest

	err := uc.gate.Do(requestKey(requestID), func() error {
		req, err := uc.requests.Find(ctx, requestID)
		if err != nil {
			return err
		}
		now := uc.now()
		from := req.Status

		switch decision {
		case domain.DecisionApprove:
			if err := req.Approve(now); err != nil {
				return err
			}
		case domain.DecisionReject:
			if err := req.Reject(now); err != nil {
				return err
			}
		case domain.DecisionSnooze:
			settings, err := uc.loadSettings(ctx)
			if err != nil {
				return err
			}
			if !settings.SnoozeAllowed(snoozeFor) {
				return domain.ErrSnoozeNotAllowed
			}
			if err := req.Snooze(now.Add(snoozeFor), now); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown decision %q", decision)
		}

		// The actor is created before the status commit. Should the
		// commit fail, the request stays pending and the approval can
		// be retried; Add is an upsert, so the retry is idempotent. The
		// other order can strand an approved request with no actor.
		if req.Status == domain.RequestApproved {
			actor := domain.NewActor(req.RequesterID, req.DisplayName, domain.RoleDriver, now)
			err := uc.retry.Do(ctx, "actor add", func(ctx context.Context) error {
				return uc.actors.Add(ctx, actor)
			})
			if err != nil {
				return fmt.Errorf("failed to create actor: %w", err)
			}
		}

		err = uc.retry.Do(ctx, "request update", func(ctx context.Context) error {
			return uc.requests.Update(ctx, req, from)
		})
		if err != nil {
			return err
		}

		if req.Status == domain.RequestApproved {
			approved = req
		}
		return nil
	})
	if err != nil {
		return err
	}

	if approved != nil {
		uc.notify(ctx, fmt.Sprintf("%d", approved.RequesterID), "Your access request was approved. You can now take a vehicle.")
		uc.notify(ctx, uc.adminChat, fmt.Sprintf("New driver %s (ID: %d) has been approved.", approved.DisplayName, approved.RequesterID))
	}
	return nil
}

// WakeDue returns every snoozed request whose wake time has passed to
// pending and re-prompts the admin channel. Each wake fires exactly
// once: the conditional update from snoozed guards against a concurrent
// decision landing first.
func (uc *AccessUseCase) WakeDue(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.requests.ListSnoozedDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list snoozed requests: %w", err)
	}

	woken := 0
	for _, req := range due {
		req := req
		err := uc.gate.Do(requestKey(req.ID), func() error {
			if err := req.Wake(now); err != nil {
				return err
			}
			return uc.requests.Update(ctx, req, domain.RequestSnoozed)
		})
		if err != nil {
			if !errors.Is(err, domain.ErrRequestAlreadyResolved) && !errors.Is(err, domain.ErrWakeNotDue) {
				uc.log.Error(ctx, "Failed to wake snoozed request", err, map[string]interface{}{
					"request_id": req.ID,
				})
			}
			continue
		}
		woken++
		uc.promptAdmins(ctx, req)
	}
	return woken, nil
}

// ListPending returns decisions waiting on an admin.
func (uc *AccessUseCase) ListPending(ctx context.Context) ([]*domain.AccessRequest, error) {
	return uc.requests.ListByStatus(ctx, domain.RequestPending)
}

// AddDriver registers an actor directly, bypassing the request flow.
// Admin only, enforced by the caller's authorization predicate.
func (uc *AccessUseCase) AddDriver(ctx context.Context, id int64, displayName string, role domain.Role) (*domain.Actor, error) {
	if role != domain.RoleAdmin && role != domain.RoleDriver {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	actor := domain.NewActor(id, displayName, role, uc.now())
	if err := uc.actors.Add(ctx, actor); err != nil {
		return nil, fmt.Errorf("failed to add actor: %w", err)
	}
	return actor, nil
}

// RemoveActor removes an actor from the roster. Fails with
// domain.ErrLastAdmin when removal would leave zero admins.
func (uc *AccessUseCase) RemoveActor(ctx context.Context, id int64) error {
	actor, err := uc.actors.Find(ctx, id)
	if err != nil {
		return err
	}
	if actor.IsAdmin() {
		all, err := uc.actors.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list actors: %w", err)
		}
		admins := 0
		for _, a := range all {
			if a.IsAdmin() {
				admins++
			}
		}
		if admins <= 1 {
			return domain.ErrLastAdmin
		}
	}
	return uc.actors.Remove(ctx, id)
}

// ListActors returns the full roster.
func (uc *AccessUseCase) ListActors(ctx context.Context) ([]*domain.Actor, error) {
	return uc.actors.List(ctx)
}

// Settings returns the current toggles, parsed fresh from the store.
func (uc *AccessUseCase) Settings(ctx context.Context) (domain.Settings, error) {
	return uc.loadSettings(ctx)
}

// UpdateSetting writes one toggle. The value is stored as text and
// validated on the next read; a bad value falls back to the default.
func (uc *AccessUseCase) UpdateSetting(ctx context.Context, key, value string) error {
	return uc.retry.Do(ctx, "setting write", func(ctx context.Context) error {
		return uc.settings.Set(ctx, key, value)
	})
}

func (uc *AccessUseCase) loadSettings(ctx context.Context) (domain.Settings, error) {
	var values map[string]string
	err := uc.retry.Do(ctx, "settings read", func(ctx context.Context) error {
		var readErr error
		values, readErr = uc.settings.All(ctx)
		return readErr
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return domain.ParseSettings(values), nil
}

func (uc *AccessUseCase) promptAdmins(ctx context.Context, req *domain.AccessRequest) {
	text := fmt.Sprintf("Access request:\nName: %s\nUser ID: %d", req.DisplayName, req.RequesterID)
	actions := [][]ports.Action{{
		{Label: "Approve", Data: fmt.Sprintf("approve|%s", req.ID)},
		{Label: "Reject", Data: fmt.Sprintf("reject|%s", req.ID)},
		{Label: "Snooze 1h", Data: fmt.Sprintf("snooze|%s|1h", req.ID)},
	}}
	uc.notifyWithActions(ctx, uc.adminChat, text, actions)
}

func (uc *AccessUseCase) notify(ctx context.Context, recipient, text string) {
	uc.notifyWithActions(ctx, recipient, text, nil)
}

func (uc *AccessUseCase) notifyWithActions(ctx context.Context, recipient, text string, actions [][]ports.Action) {
	if uc.notifier == nil || recipient == "" {
		return
	}
	if err := uc.notifier.SendMessage(ctx, recipient, text, actions); err != nil {
		uc.log.Error(ctx, "Failed to send notification", err, map[string]interface{}{
			"recipient": recipient,
		})
	}
}
