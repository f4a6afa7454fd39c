package engine

import (
	"context"

	"tradesim/src/model"
)

// Caller identifies who invoked an engine entry point. Role checks are
// explicit here rather than relying on ambient request context.
type Caller struct {
	UserID uint
	Role   string
}

// SystemCaller is used by in-process automation (the strategy monitor) and
// is allowed to act on any account.
var SystemCaller = Caller{UserID: 0, Role: model.RoleSuperadmin}

// authorize checks that the caller may operate on targetUserID's account:
// traders act on their own account, managers additionally on their clients,
// admins on anyone.
func (e *Engine) authorize(ctx context.Context, caller Caller, targetUserID uint) error {
	switch caller.Role {
	case model.RoleAdmin, model.RoleSuperadmin:
		return nil

	case model.RoleManager:
		if caller.UserID == targetUserID {
			return nil
		}

		target, err := e.users.FindByID(ctx, targetUserID)
		if err != nil {
			return err
		}
		if target != nil && target.ManagerID != nil && *target.ManagerID == caller.UserID {
			return nil
		}
		return ErrUnauthorized

	case model.RoleTrader:
		if caller.UserID == targetUserID {
			return nil
		}
		return ErrUnauthorized

	default:
		return ErrUnauthorized
	}
}
