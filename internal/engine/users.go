package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"remindline/internal/domain"
	"remindline/internal/engine/auth"
	"remindline/internal/hierarchy"
	"remindline/internal/repo"
)

// EnsureUser registers a chat contact on first sight and refreshes the display
// name afterwards. The configured developer id always carries the developer role.
func (e Engine) EnsureUser(ctx context.Context, id, fullName string) (domain.User, error) {
	now := e.now()
	var out domain.User
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		u, err := e.Repo.GetUser(ctx, tx, id)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			u, err = domain.NewUser(id, fullName, now)
			if err != nil {
				return err
			}
			if e.isConfiguredDeveloper(u.ID) {
				u.Role = domain.RoleDeveloper
				u.Registered = true
			}
			out = u
			return e.Repo.InsertUser(ctx, tx, u)
		case err != nil:
			return err
		}
		changed := false
		if name := strings.TrimSpace(fullName); name != "" && name != u.FullName {
			u.FullName = name
			changed = true
		}
		if e.isConfiguredDeveloper(u.ID) && u.Role != domain.RoleDeveloper {
			u.Role = domain.RoleDeveloper
			changed = true
		}
		out = u
		if !changed {
			return nil
		}
		return e.Repo.UpdateUser(ctx, tx, u)
	})
	return out, err
}

func (e Engine) isConfiguredDeveloper(id string) bool {
	return id != "" && id == e.Hierarchy.DeveloperID
}

// Register completes onboarding with a name and department.
func (e Engine) Register(ctx context.Context, id, fullName, department string) (domain.User, error) {
	return e.updateUser(ctx, "", id, func(u *domain.User) error {
		if name := strings.TrimSpace(fullName); name != "" {
			u.FullName = name
		}
		u.Department = strings.TrimSpace(department)
		u.Registered = true
		return nil
	})
}

func (e Engine) SetRole(ctx context.Context, actorID, userID string, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("unknown role %q", role)
	}
	if err := e.Auth.Require(ctx, actorID, auth.PermUserAdmin); err != nil {
		return domain.User{}, err
	}
	return e.updateUser(ctx, actorID, userID, func(u *domain.User) error {
		if role == u.Role {
			return nil
		}
		if role == domain.RoleDeveloper || u.Role == domain.RoleDeveloper {
			if err := e.Auth.Require(ctx, actorID, auth.PermGrantDeveloper); err != nil {
				return err
			}
		}
		if e.isConfiguredDeveloper(u.ID) && role != domain.RoleDeveloper {
			return &domain.ForbiddenError{ActorID: actorID, Action: "demote the configured developer"}
		}
		u.Role = role
		return nil
	})
}

func (e Engine) SetDepartment(ctx context.Context, actorID, userID, department string) (domain.User, error) {
	if actorID != userID {
		if err := e.Auth.Require(ctx, actorID, auth.PermUserAdmin); err != nil {
			return domain.User{}, err
		}
	}
	return e.updateUser(ctx, actorID, userID, func(u *domain.User) error {
		u.Department = strings.TrimSpace(department)
		return nil
	})
}

// DeactivateUser marks a person as gone and drops every link they take part in.
// Their open tasks stay; reminders to them keep flowing to their former managers
// only through links that still exist.
func (e Engine) DeactivateUser(ctx context.Context, actorID, userID string) (domain.User, error) {
	if e.isConfiguredDeveloper(userID) {
		return domain.User{}, &domain.ForbiddenError{ActorID: actorID, Action: "deactivate the configured developer"}
	}
	if err := e.Auth.Require(ctx, actorID, auth.PermUserAdmin); err != nil {
		return domain.User{}, err
	}
	var out domain.User
	var dropped int64
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		u, err := e.Repo.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		u.Active = false
		if err := e.Repo.UpdateUser(ctx, tx, u); err != nil {
			return err
		}
		dropped, err = e.Repo.DeleteLinksOf(ctx, tx, userID)
		out = u
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	e.logger().Info("user deactivated", zap.String("user_id", userID), zap.String("actor_id", actorID), zap.Int64("links_dropped", dropped))
	return out, nil
}

func (e Engine) ReactivateUser(ctx context.Context, actorID, userID string) (domain.User, error) {
	if err := e.Auth.Require(ctx, actorID, auth.PermUserAdmin); err != nil {
		return domain.User{}, err
	}
	return e.updateUser(ctx, actorID, userID, func(u *domain.User) error {
		u.Active = true
		return nil
	})
}

func (e Engine) updateUser(ctx context.Context, actorID, userID string, fn func(u *domain.User) error) (domain.User, error) {
	var out domain.User
	err := e.withTx(ctx, func(tx *sqlx.Tx) error {
		u, err := e.Repo.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(&u); err != nil {
			return err
		}
		out = u
		return e.Repo.UpdateUser(ctx, tx, u)
	})
	return out, err
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, e.DB, id)
}

func (e Engine) ListUsers(ctx context.Context, f repo.UserFilters) ([]domain.User, error) {
	return e.Repo.FindUsers(ctx, f)
}

// LinkManager makes managerID a manager of subordinateID. The graph is read and
// written in one transaction so two concurrent links cannot close a loop.
func (e Engine) LinkManager(ctx context.Context, actorID, managerID, subordinateID string) (domain.ManagerLink, error) {
	link, err := domain.NewManagerLink(managerID, subordinateID, e.now())
	if err != nil {
		return domain.ManagerLink{}, err
	}
	if err := e.Auth.Require(ctx, actorID, auth.PermLinkManage); err != nil {
		return domain.ManagerLink{}, err
	}
	err = e.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, id := range []string{managerID, subordinateID} {
			u, err := e.Repo.GetUser(ctx, tx, id)
			if err != nil {
				return err
			}
			if !u.Active {
				return fmt.Errorf("user %s is deactivated", id)
			}
		}
		links, err := e.Repo.ListManagerLinksTx(ctx, tx)
		if err != nil {
			return err
		}
		snap := hierarchy.NewSnapshot(nil, links, "")
		if snap.HasLink(managerID, subordinateID) {
			return &domain.DuplicateLinkError{ManagerID: managerID, SubordinateID: subordinateID}
		}
		if snap.WouldCreateCycle(managerID, subordinateID) {
			return &domain.CycleRejectedError{ManagerID: managerID, SubordinateID: subordinateID}
		}
		return e.Repo.InsertManagerLink(ctx, tx, link)
	})
	if err != nil {
		return domain.ManagerLink{}, err
	}
	e.logger().Info("manager linked", zap.String("manager_id", managerID), zap.String("subordinate_id", subordinateID), zap.String("actor_id", actorID))
	return link, nil
}

func (e Engine) UnlinkManager(ctx context.Context, actorID, managerID, subordinateID string) error {
	if err := e.Auth.Require(ctx, actorID, auth.PermLinkManage); err != nil {
		return err
	}
	ok, err := e.Repo.DeleteManagerLink(ctx, e.DB, managerID, subordinateID)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.NotFoundError{Kind: "link", ID: managerID + "->" + subordinateID}
	}
	return nil
}

// ManagersOf returns everyone who hears about the user's overdue tasks.
func (e Engine) ManagersOf(ctx context.Context, userID string) ([]domain.User, error) {
	if _, err := e.Repo.GetUser(ctx, e.DB, userID); err != nil {
		return nil, err
	}
	return e.Hierarchy.ManagersOf(ctx, userID)
}

// Team lists the users below managerID.
func (e Engine) Team(ctx context.Context, managerID string) ([]domain.User, error) {
	snap, err := e.Hierarchy.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.User
	for _, id := range snap.SubordinatesOf(managerID) {
		if u, ok := snap.User(id); ok {
			out = append(out, u)
		}
	}
	return out, nil
}
