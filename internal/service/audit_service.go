package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"orderdesk/internal/logger"
	"orderdesk/internal/store"
)

// Audit actions
const (
	ActionOrderCreate      = "ORDER_CREATE"
	ActionOrderUpdate      = "ORDER_UPDATE"
	ActionOrderDelete      = "ORDER_DELETE"
	ActionUserRoleChange   = "USER_ROLE_CHANGE"
	ActionUserStatusChange = "USER_STATUS_CHANGE"
)

// AuditEntry tracks who did what and when for critical changes.
type AuditEntry struct {
	Actor      string                 `json:"actor"`
	ActorEmail string                 `json:"actorEmail"`
	Action     string                 `json:"action"`
	EntityID   string                 `json:"entityId"`
	Details    map[string]interface{} `json:"details,omitempty"`
	At         time.Time              `json:"at"`
}

// AuditService records and lists audit entries at audit/{id}.
type AuditService interface {
	// Record writes an entry best-effort: a failed audit write is logged and
	// never fails the mutation it describes.
	Record(ctx context.Context, entry AuditEntry)

	// List returns entries newest-first. Admin only, re-checked here.
	List(ctx context.Context, actorID string, page, limit int) ([]AuditEntry, int, error)
}

type auditService struct {
	store store.Store
	gate  RoleGate
	log   zerolog.Logger
}

// NewAuditService returns an AuditService backed by the given store.
func NewAuditService(s store.Store, gate RoleGate) AuditService {
	return &auditService{store: s, gate: gate, log: logger.WithComponent("audit")}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	key, err := s.store.Push(ctx, store.AuditRoot)
	if err == nil {
		err = s.store.Set(ctx, store.AuditRoot+"/"+key, entry)
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("action", entry.Action).
			Str("entity_id", entry.EntityID).
			Msg("failed to write audit entry")
	}
}

func (s *auditService) List(ctx context.Context, actorID string, page, limit int) ([]AuditEntry, int, error) {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, 0, err
	}

	raw, err := s.store.Get(ctx, store.AuditRoot)
	if err != nil {
		return nil, 0, err
	}
	entries := []AuditEntry{}
	if raw != nil {
		var all map[string]AuditEntry
		if err := json.Unmarshal(raw, &all); err != nil {
			return nil, 0, err
		}
		for _, e := range all {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].At.After(entries[j].At) })

	total := len(entries)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return entries[start:end], total, nil
}
