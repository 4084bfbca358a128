package auth

import (
	"context"

	"remindline/internal/domain"
	"remindline/internal/hierarchy"
)

type Permission string

const (
	// PermLinkManage allows creating and removing manager links.
	PermLinkManage Permission = "link.manage"
	// PermUserAdmin allows changing roles and deactivating people.
	PermUserAdmin Permission = "user.admin"
	// PermViewAll allows listing every task regardless of the hierarchy.
	PermViewAll Permission = "task.view_all"
	// PermSchedulerForce allows running a scheduler tick on demand.
	PermSchedulerForce Permission = "scheduler.force"
	// PermGrantDeveloper allows handing out the developer role.
	PermGrantDeveloper Permission = "user.grant_developer"
)

var rolePermissions = map[domain.Role][]Permission{
	domain.RoleHead:      {PermLinkManage, PermUserAdmin, PermViewAll},
	domain.RoleDeveloper: {PermLinkManage, PermUserAdmin, PermViewAll, PermSchedulerForce, PermGrantDeveloper},
}

// Service answers permission questions against a hierarchy snapshot. The empty
// actor is the system itself and is always allowed.
type Service struct {
	Hierarchy hierarchy.Resolver
}

func Allowed(snap *hierarchy.Snapshot, actorID string, perm Permission) bool {
	if actorID == "" {
		return true
	}
	if snap.IsDeveloper(actorID) {
		return true
	}
	u, ok := snap.User(actorID)
	if !ok || !u.Active {
		return false
	}
	for _, p := range rolePermissions[u.Role] {
		if p == perm {
			return true
		}
	}
	return false
}

func (s Service) Require(ctx context.Context, actorID string, perm Permission) error {
	if actorID == "" {
		return nil
	}
	snap, err := s.Hierarchy.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !Allowed(snap, actorID, perm) {
		return &domain.ForbiddenError{ActorID: actorID, Action: string(perm)}
	}
	return nil
}

// RequireEdit allows the target, anyone above the target, and developers.
func (s Service) RequireEdit(ctx context.Context, actorID, targetID, action string) error {
	if actorID == "" {
		return nil
	}
	snap, err := s.Hierarchy.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !snap.CanEdit(actorID, targetID) {
		return &domain.ForbiddenError{ActorID: actorID, Action: action}
	}
	return nil
}
