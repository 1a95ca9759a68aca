package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orderdesk/internal/apperrors"
	"orderdesk/internal/identity"
	"orderdesk/internal/logger"
	"orderdesk/internal/model"
	"orderdesk/internal/store"
)

// UserStats summarizes the user roster for the admin panel.
type UserStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Admins int `json:"admins"`
}

// UserAdminService manages user profiles. Every operation re-checks the admin
// role at the point of use; role and activation changes stamp the audit fields
// on the profile itself.
type UserAdminService interface {
	List(ctx context.Context, actorID string) ([]model.UserWithID, UserStats, error)
	ChangeRole(ctx context.Context, actor identity.Session, targetID, role string) error
	SetActive(ctx context.Context, actor identity.Session, targetID string, active bool) error

	// Bootstrap provisions one admin credential and profile at startup when
	// none with that email exists. Regular profiles arrive out-of-band.
	Bootstrap(ctx context.Context, reg identity.Registrar, email, password, displayName string) error
}

type userAdminService struct {
	store    store.Store
	gate     RoleGate
	provider identity.Provider
	audit    AuditService
	log      zerolog.Logger
}

// NewUserAdminService returns a UserAdminService backed by the given store.
func NewUserAdminService(s store.Store, gate RoleGate, provider identity.Provider, audit AuditService) UserAdminService {
	return &userAdminService{
		store:    s,
		gate:     gate,
		provider: provider,
		audit:    audit,
		log:      logger.WithComponent("users"),
	}
}

func (s *userAdminService) List(ctx context.Context, actorID string) ([]model.UserWithID, UserStats, error) {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, UserStats{}, err
	}

	profiles, err := s.loadAll(ctx)
	if err != nil {
		return nil, UserStats{}, err
	}

	users := make([]model.UserWithID, 0, len(profiles))
	var stats UserStats
	for id, profile := range profiles {
		users = append(users, model.UserWithID{ID: id, UserProfile: profile})
		stats.Total++
		if profile.IsActive() {
			stats.Active++
		}
		if profile.Role == model.RoleAdmin {
			stats.Admins++
		}
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].RegisteredAt.Equal(users[j].RegisteredAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].RegisteredAt.After(users[j].RegisteredAt)
	})
	return users, stats, nil
}

func (s *userAdminService) ChangeRole(ctx context.Context, actor identity.Session, targetID, role string) error {
	if _, err := s.gate.RequireAdmin(ctx, actor.UserID); err != nil {
		return err
	}
	if role != model.RoleAdmin && role != model.RoleUser {
		return fmt.Errorf("%w: role must be %q or %q", apperrors.ErrValidation, model.RoleAdmin, model.RoleUser)
	}
	if err := s.ensureExists(ctx, targetID); err != nil {
		return err
	}

	err := s.store.Update(ctx, store.UserPath(targetID), map[string]interface{}{
		"role":       role,
		"modifiedBy": actor.UserID,
		"modifiedAt": time.Now(),
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor.UserID,
		ActorEmail: actor.Email,
		Action:     ActionUserRoleChange,
		EntityID:   targetID,
		Details:    map[string]interface{}{"role": role},
	})
	return nil
}

func (s *userAdminService) SetActive(ctx context.Context, actor identity.Session, targetID string, active bool) error {
	if _, err := s.gate.RequireAdmin(ctx, actor.UserID); err != nil {
		return err
	}
	if err := s.ensureExists(ctx, targetID); err != nil {
		return err
	}

	err := s.store.Update(ctx, store.UserPath(targetID), map[string]interface{}{
		"active":     active,
		"modifiedBy": actor.UserID,
		"modifiedAt": time.Now(),
	})
	if err != nil {
		return err
	}

	// A deactivated user loses their session immediately, not at next login.
	if !active {
		s.provider.SignOut(targetID)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor.UserID,
		ActorEmail: actor.Email,
		Action:     ActionUserStatusChange,
		EntityID:   targetID,
		Details:    map[string]interface{}{"active": active},
	})
	return nil
}

func (s *userAdminService) Bootstrap(ctx context.Context, reg identity.Registrar, email, password, displayName string) error {
	profiles, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	for _, profile := range profiles {
		if profile.Email == email {
			return nil
		}
	}

	uid := uuid.NewString()
	if err := reg.Register(ctx, uid, email, password); err != nil {
		return err
	}
	active := true
	err = s.store.Set(ctx, store.UserPath(uid), model.UserProfile{
		Email:        email,
		DisplayName:  displayName,
		Role:         model.RoleAdmin,
		Active:       &active,
		RegisteredAt: time.Now(),
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("email", email).Msg("seed admin provisioned")
	return nil
}

func (s *userAdminService) loadAll(ctx context.Context) (map[string]model.UserProfile, error) {
	raw, err := s.store.Get(ctx, store.UsersRoot)
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]model.UserProfile)
	if raw != nil {
		if err := json.Unmarshal(raw, &profiles); err != nil {
			return nil, fmt.Errorf("parse users collection: %w", err)
		}
	}
	return profiles, nil
}

func (s *userAdminService) ensureExists(ctx context.Context, targetID string) error {
	raw, err := s.store.Get(ctx, store.UserPath(targetID))
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: user %s", apperrors.ErrNotFound, targetID)
	}
	return nil
}
