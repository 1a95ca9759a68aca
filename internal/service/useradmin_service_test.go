package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/apperrors"
	"orderdesk/internal/identity"
	"orderdesk/internal/model"
	"orderdesk/internal/store"
)

func newUserAdminFixture(t *testing.T) (*store.MemoryStore, *identity.LocalProvider, UserAdminService) {
	t.Helper()
	st := store.NewMemoryStore()
	provider := identity.NewLocalProvider(st)
	gate := NewRoleGate(st, provider)
	svc := NewUserAdminService(st, gate, provider, NewAuditService(st, gate))

	seedProfile(t, st, "admin-1", model.UserProfile{
		Email: "admin@b.co", Role: model.RoleAdmin,
		RegisteredAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	seedProfile(t, st, "user-1", model.UserProfile{
		Email: "user@b.co", Role: model.RoleUser,
		RegisteredAt: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	return st, provider, svc
}

func TestUserListRequiresAdmin(t *testing.T) {
	_, _, svc := newUserAdminFixture(t)

	_, _, err := svc.List(context.Background(), "user-1")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestUserListSortsAndCounts(t *testing.T) {
	st, _, svc := newUserAdminFixture(t)
	inactive := false
	seedProfile(t, st, "user-2", model.UserProfile{
		Email: "off@b.co", Role: model.RoleUser, Active: &inactive,
		RegisteredAt: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
	})

	users, stats, err := svc.List(context.Background(), "admin-1")
	require.NoError(t, err)

	require.Len(t, users, 3)
	assert.Equal(t, "user-1", users[0].ID, "newest registration first")
	assert.Equal(t, "user-2", users[1].ID)
	assert.Equal(t, "admin-1", users[2].ID)

	assert.Equal(t, UserStats{Total: 3, Active: 2, Admins: 1}, stats)
}

func TestChangeRole(t *testing.T) {
	_, _, svc := newUserAdminFixture(t)
	ctx := context.Background()
	actor := identity.Session{UserID: "admin-1", Email: "admin@b.co"}

	require.NoError(t, svc.ChangeRole(ctx, actor, "user-1", model.RoleAdmin))

	users, stats, err := svc.List(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Admins)
	for _, u := range users {
		if u.ID == "user-1" {
			assert.Equal(t, model.RoleAdmin, u.Role)
			assert.Equal(t, "admin-1", u.ModifiedBy)
		}
	}

	assert.ErrorIs(t, svc.ChangeRole(ctx, actor, "user-1", "owner"), apperrors.ErrValidation)
	assert.ErrorIs(t, svc.ChangeRole(ctx, actor, "ghost", model.RoleUser), apperrors.ErrNotFound)
	assert.ErrorIs(t, svc.ChangeRole(ctx, identity.Session{UserID: "user-1"}, "admin-1", model.RoleUser), apperrors.ErrPermissionDenied)
}

func TestSetActiveRevokesSession(t *testing.T) {
	_, provider, svc := newUserAdminFixture(t)
	ctx := context.Background()
	actor := identity.Session{UserID: "admin-1", Email: "admin@b.co"}

	require.NoError(t, svc.SetActive(ctx, actor, "user-1", false))
	assert.False(t, provider.IsSignedIn("user-1"), "deactivation revokes the live session")

	users, stats, err := svc.List(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Active)
	for _, u := range users {
		if u.ID == "user-1" {
			assert.False(t, u.IsActive())
		}
	}

	require.NoError(t, svc.SetActive(ctx, actor, "user-1", true))
	_, stats, err = svc.List(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Active)
}

func TestBootstrapSeedsAdminOnce(t *testing.T) {
	st, provider, svc := newUserAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, provider, "seed@b.co", "initial-pass", "Administrador"))

	session, err := provider.SignIn(ctx, "seed@b.co", "initial-pass")
	require.NoError(t, err)

	gate := NewRoleGate(st, provider)
	profile, err := gate.RequireAdmin(ctx, session.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Administrador", profile.DisplayName)

	// A second bootstrap with the same email is a no-op.
	require.NoError(t, svc.Bootstrap(ctx, provider, "seed@b.co", "other-pass", "Administrador"))
	_, err = provider.SignIn(ctx, "seed@b.co", "initial-pass")
	assert.NoError(t, err)
}

func TestAuditListRecordsMutations(t *testing.T) {
	st := store.NewMemoryStore()
	provider := identity.NewLocalProvider(st)
	gate := NewRoleGate(st, provider)
	audit := NewAuditService(st, gate)
	svc := NewUserAdminService(st, gate, provider, audit)

	seedProfile(t, st, "admin-1", model.UserProfile{Email: "admin@b.co", Role: model.RoleAdmin})
	seedProfile(t, st, "user-1", model.UserProfile{Email: "user@b.co", Role: model.RoleUser})

	ctx := context.Background()
	actor := identity.Session{UserID: "admin-1", Email: "admin@b.co"}

	require.NoError(t, svc.ChangeRole(ctx, actor, "user-1", model.RoleAdmin))
	require.NoError(t, svc.SetActive(ctx, actor, "user-1", false))

	entries, total, err := audit.List(ctx, "admin-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionUserStatusChange, entries[0].Action, "newest first")
	assert.Equal(t, ActionUserRoleChange, entries[1].Action)

	// The admin check runs against the store, not the caller's token claims.
	_, _, err = audit.List(ctx, "user-1", 1, 20)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
}
