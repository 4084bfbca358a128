package hierarchy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindline/internal/domain"
)

func user(id string, role domain.Role) domain.User {
	return domain.User{ID: id, FullName: id, Role: role, Active: true, Registered: true}
}

func link(mgr, sub string) domain.ManagerLink {
	return domain.ManagerLink{ManagerID: mgr, SubordinateID: sub}
}

func ids(us []domain.User) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, u.ID)
	}
	return out
}

// emp <- lead <- head, plus a developer outside the graph.
func orgSnapshot() *Snapshot {
	return NewSnapshot(
		[]domain.User{
			user("emp", domain.RoleEmployee),
			user("lead", domain.RoleLead),
			user("head", domain.RoleHead),
			user("dev", domain.RoleDeveloper),
			user("other", domain.RoleEmployee),
		},
		[]domain.ManagerLink{link("lead", "emp"), link("head", "lead")},
		"",
	)
}

func TestManagersOfTransitiveWithDeveloper(t *testing.T) {
	s := orgSnapshot()
	assert.Equal(t, []string{"lead", "head", "dev"}, ids(s.ManagersOf("emp")))
	assert.Equal(t, []string{"head", "dev"}, ids(s.ManagersOf("lead")))
	assert.Equal(t, []string{"dev"}, ids(s.ManagersOf("other")))
}

func TestManagersOfSkipsInactiveButTraverses(t *testing.T) {
	lead := user("lead", domain.RoleLead)
	lead.Active = false
	s := NewSnapshot(
		[]domain.User{user("emp", domain.RoleEmployee), lead, user("head", domain.RoleHead)},
		[]domain.ManagerLink{link("lead", "emp"), link("head", "lead")},
		"",
	)
	assert.Equal(t, []string{"head"}, ids(s.ManagersOf("emp")))
}

func TestManagersOfConfiguredDeveloperWithoutRow(t *testing.T) {
	s := NewSnapshot([]domain.User{user("emp", domain.RoleEmployee)}, nil, "42")
	got := s.ManagersOf("emp")
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ID)
	assert.Equal(t, domain.RoleDeveloper, got[0].Role)
}

func TestManagersOfDiamondDedup(t *testing.T) {
	s := NewSnapshot(
		[]domain.User{user("a", domain.RoleEmployee), user("b", domain.RoleLead), user("c", domain.RoleLead), user("d", domain.RoleHead)},
		[]domain.ManagerLink{link("b", "a"), link("c", "a"), link("d", "b"), link("d", "c")},
		"",
	)
	assert.Equal(t, []string{"b", "c", "d"}, ids(s.ManagersOf("a")))
}

func TestCanEdit(t *testing.T) {
	s := orgSnapshot()
	assert.True(t, s.CanEdit("head", "emp"))
	assert.True(t, s.CanEdit("lead", "emp"))
	assert.True(t, s.CanEdit("emp", "emp"))
	assert.True(t, s.CanEdit("dev", "head"))
	assert.False(t, s.CanEdit("emp", "lead"))
	assert.False(t, s.CanEdit("other", "emp"))
	assert.False(t, s.CanEdit("", "emp"))
}

func TestWouldCreateCycle(t *testing.T) {
	s := orgSnapshot()
	assert.True(t, s.WouldCreateCycle("emp", "head"), "head already manages emp transitively")
	assert.True(t, s.WouldCreateCycle("emp", "lead"))
	assert.True(t, s.WouldCreateCycle("emp", "emp"))
	assert.False(t, s.WouldCreateCycle("head", "other"))
	assert.False(t, s.WouldCreateCycle("head", "emp"), "redundant edge is not a cycle")
}

func TestSubordinatesOf(t *testing.T) {
	s := orgSnapshot()
	assert.Equal(t, []string{"lead", "emp"}, s.SubordinatesOf("head"))
	assert.Empty(t, s.SubordinatesOf("emp"))
}

type fakeSource struct {
	users []domain.User
	links []domain.ManagerLink
	err   error
}

func (f fakeSource) ListUsers(context.Context) ([]domain.User, error) { return f.users, f.err }
func (f fakeSource) ListManagerLinks(context.Context) ([]domain.ManagerLink, error) {
	return f.links, f.err
}

func TestResolverDelegatesToSnapshot(t *testing.T) {
	r := Resolver{Source: fakeSource{
		users: []domain.User{user("emp", domain.RoleEmployee), user("lead", domain.RoleLead)},
		links: []domain.ManagerLink{link("lead", "emp")},
	}}
	ms, err := r.ManagersOf(context.Background(), "emp")
	require.NoError(t, err)
	assert.Equal(t, []string{"lead"}, ids(ms))

	cyc, err := r.WouldCreateCycle(context.Background(), "emp", "lead")
	require.NoError(t, err)
	assert.True(t, cyc)

	ok, err := r.CanEdit(context.Background(), "lead", "emp")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolverPropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	r := Resolver{Source: fakeSource{err: boom}}
	_, err := r.ManagersOf(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}
