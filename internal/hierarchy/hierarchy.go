// Package hierarchy resolves the "who manages whom" graph: the transitive set of
// managers above a user, edit rights, and cycle checks for new links.
package hierarchy

import (
	"context"
	"sort"

	"remindline/internal/domain"
)

// Source supplies the graph. repo.Repo implements it.
type Source interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListManagerLinks(ctx context.Context) ([]domain.ManagerLink, error)
}

type Resolver struct {
	Source Source
	// DeveloperID receives every escalation even when no user row exists for it.
	DeveloperID string
}

// Snapshot loads the graph once. Scheduler ticks take one snapshot and reuse it
// for every task so closures are computed at most once per user.
func (r Resolver) Snapshot(ctx context.Context) (*Snapshot, error) {
	users, err := r.Source.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	links, err := r.Source.ListManagerLinks(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(users, links, r.DeveloperID), nil
}

func (r Resolver) ManagersOf(ctx context.Context, subordinateID string) ([]domain.User, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.ManagersOf(subordinateID), nil
}

func (r Resolver) CanEdit(ctx context.Context, actorID, targetID string) (bool, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return s.CanEdit(actorID, targetID), nil
}

func (r Resolver) WouldCreateCycle(ctx context.Context, managerID, subordinateID string) (bool, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return s.WouldCreateCycle(managerID, subordinateID), nil
}

type Snapshot struct {
	users       map[string]domain.User
	up          map[string][]string
	down        map[string][]string
	developerID string

	above map[string][]string
}

func NewSnapshot(users []domain.User, links []domain.ManagerLink, developerID string) *Snapshot {
	s := &Snapshot{
		users:       make(map[string]domain.User, len(users)),
		up:          map[string][]string{},
		down:        map[string][]string{},
		developerID: developerID,
		above:       map[string][]string{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	for _, l := range links {
		s.up[l.SubordinateID] = append(s.up[l.SubordinateID], l.ManagerID)
		s.down[l.ManagerID] = append(s.down[l.ManagerID], l.SubordinateID)
	}
	return s
}

func (s *Snapshot) User(id string) (domain.User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// closure walks edges breadth-first from id, excluding id itself. The order is
// nearest first.
func closure(edges map[string][]string, id string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

func (s *Snapshot) aboveIDs(id string) []string {
	if ids, ok := s.above[id]; ok {
		return ids
	}
	ids := closure(s.up, id)
	s.above[id] = ids
	return ids
}

// ManagersOf returns the active managers above subordinateID, nearest first,
// followed by every active developer and the configured developer. Inactive
// managers are still walked through.
func (s *Snapshot) ManagersOf(subordinateID string) []domain.User {
	seen := map[string]bool{subordinateID: true}
	var out []domain.User
	add := func(u domain.User) {
		if seen[u.ID] || !u.Active {
			return
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	for _, id := range s.aboveIDs(subordinateID) {
		if u, ok := s.users[id]; ok {
			add(u)
		}
	}

	var devs []domain.User
	for _, u := range s.users {
		if u.Role == domain.RoleDeveloper {
			devs = append(devs, u)
		}
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].ID < devs[j].ID })
	for _, u := range devs {
		add(u)
	}
	if s.developerID != "" {
		u, ok := s.users[s.developerID]
		if !ok {
			u = domain.User{ID: s.developerID, FullName: "developer", Role: domain.RoleDeveloper, Active: true, Registered: true}
		}
		add(u)
	}
	return out
}

// SubordinatesOf returns everyone below managerID, nearest first.
func (s *Snapshot) SubordinatesOf(managerID string) []string {
	return closure(s.down, managerID)
}

// IsDeveloper reports whether id is an active developer or the configured developer.
func (s *Snapshot) IsDeveloper(id string) bool {
	if id != "" && id == s.developerID {
		return true
	}
	u, ok := s.users[id]
	return ok && u.Active && u.Role == domain.RoleDeveloper
}

// CanEdit is true for developers, for anyone above target, and for target itself.
func (s *Snapshot) CanEdit(actorID, targetID string) bool {
	if actorID == "" {
		return false
	}
	if actorID == targetID || s.IsDeveloper(actorID) {
		return true
	}
	for _, id := range s.aboveIDs(targetID) {
		if id == actorID {
			return true
		}
	}
	return false
}

// WouldCreateCycle reports whether making managerID a manager of subordinateID
// would close a loop, i.e. subordinateID already sits above managerID.
func (s *Snapshot) WouldCreateCycle(managerID, subordinateID string) bool {
	if managerID == subordinateID {
		return true
	}
	for _, id := range s.aboveIDs(managerID) {
		if id == subordinateID {
			return true
		}
	}
	return false
}

// HasLink reports whether the direct edge exists.
func (s *Snapshot) HasLink(managerID, subordinateID string) bool {
	for _, id := range s.up[subordinateID] {
		if id == managerID {
			return true
		}
	}
	return false
}
