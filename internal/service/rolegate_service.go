package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"orderdesk/internal/apperrors"
	"orderdesk/internal/identity"
	"orderdesk/internal/logger"
	"orderdesk/internal/model"
	"orderdesk/internal/store"
)

// RoleGate decides, per call, whether a user may act. Authentication proves
// who the caller is; the gate checks what the profile store currently says
// about them. Missing, unreadable or inactive profiles are all denials.
type RoleGate interface {
	// ResolveSession admits a freshly authenticated session. A denial forces
	// the session out of the identity provider before returning.
	ResolveSession(ctx context.Context, session identity.Session) (model.UserProfile, error)

	// RequireActive returns the caller's profile, or ErrAccessDenied.
	RequireActive(ctx context.Context, userID string) (model.UserProfile, error)

	// RequireAdmin returns the caller's profile, or ErrAccessDenied /
	// ErrPermissionDenied.
	RequireAdmin(ctx context.Context, userID string) (model.UserProfile, error)
}

type roleGate struct {
	store    store.Store
	provider identity.Provider
	log      zerolog.Logger
}

// NewRoleGate builds the gate over the profile store. provider may be nil in
// tests that never call ResolveSession.
func NewRoleGate(s store.Store, provider identity.Provider) RoleGate {
	return &roleGate{
		store:    s,
		provider: provider,
		log:      logger.WithComponent("rolegate"),
	}
}

func (g *roleGate) ResolveSession(ctx context.Context, session identity.Session) (model.UserProfile, error) {
	profile, err := g.RequireActive(ctx, session.UserID)
	if err != nil {
		// Only a definitive denial revokes the session; a transient store
		// error must not sign the user out.
		if errors.Is(err, apperrors.ErrAccessDenied) && g.provider != nil {
			g.log.Warn().Str("userId", session.UserID).Str("email", session.Email).
				Msg("authenticated user denied access, forcing sign-out")
			g.provider.SignOut(session.UserID)
		}
		return model.UserProfile{}, err
	}
	return profile, nil
}

func (g *roleGate) RequireActive(ctx context.Context, userID string) (model.UserProfile, error) {
	profile, err := g.lookup(ctx, userID)
	if err != nil {
		return model.UserProfile{}, err
	}
	if !profile.IsActive() {
		return model.UserProfile{}, fmt.Errorf("%w: user is inactive", apperrors.ErrAccessDenied)
	}
	return profile, nil
}

func (g *roleGate) RequireAdmin(ctx context.Context, userID string) (model.UserProfile, error) {
	profile, err := g.RequireActive(ctx, userID)
	if err != nil {
		return model.UserProfile{}, err
	}
	if profile.EffectiveRole() != model.RoleAdmin {
		return model.UserProfile{}, fmt.Errorf("%w: admin role required", apperrors.ErrPermissionDenied)
	}
	return profile, nil
}

func (g *roleGate) lookup(ctx context.Context, userID string) (model.UserProfile, error) {
	raw, err := g.store.Get(ctx, store.UserPath(userID))
	if err != nil {
		return model.UserProfile{}, err
	}
	if raw == nil {
		return model.UserProfile{}, fmt.Errorf("%w: user is not registered in the system", apperrors.ErrAccessDenied)
	}
	var profile model.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		g.log.Error().Err(err).Str("userId", userID).Msg("unreadable user profile")
		return model.UserProfile{}, fmt.Errorf("%w: user profile is unreadable", apperrors.ErrAccessDenied)
	}
	return profile, nil
}
