package usecase

import (
	"fmt"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// commandRoles maps each command kind to the roles allowed to issue it.
// Start is open to everyone so first contact can raise an access
// request.
var commandRoles = map[ports.CommandKind][]domain.Role{
	ports.CommandStart:         {domain.RoleAdmin, domain.RoleDriver, domain.RoleUnknown},
	ports.CommandAcquire:       {domain.RoleAdmin, domain.RoleDriver},
	ports.CommandRelease:       {domain.RoleAdmin, domain.RoleDriver},
	ports.CommandListAvailable: {domain.RoleAdmin, domain.RoleDriver},
	ports.CommandListHeld:      {domain.RoleAdmin, domain.RoleDriver},
	ports.CommandStatus:        {domain.RoleAdmin},
	ports.CommandHistory:       {domain.RoleAdmin},
	ports.CommandAdminDecision: {domain.RoleAdmin},
	ports.CommandAddVehicle:    {domain.RoleAdmin},
	ports.CommandRemoveVehicle: {domain.RoleAdmin},
}

// Authorize is the predicate evaluated before every command. It returns
// nil when the role may issue the command and a typed denial wrapping
// domain.ErrNotAuthorized otherwise; it never replies to the transport
// itself.
func Authorize(role domain.Role, kind ports.CommandKind) error {
	allowed, ok := commandRoles[kind]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", domain.ErrNotAuthorized, kind)
	}
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires one of %v", domain.ErrNotAuthorized, kind, allowed)
}
