package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"orderdesk/internal/apperrors"
	"orderdesk/internal/identity"
	"orderdesk/internal/logger"
	"orderdesk/internal/model"
	"orderdesk/internal/store"
)

// snapshotTimeout bounds the one-shot load of all orders. The load fails with
// ErrFetchTimeout instead of hanging indefinitely.
const snapshotTimeout = 10 * time.Second

// OrderDraft is the caller-supplied part of an order. Totals are always
// recomputed from the draft's inputs, never taken from the client.
type OrderDraft struct {
	OrderNumber         int64            `json:"orderNumber"`
	Date                time.Time        `json:"date"`
	Supplier            model.OrgInfo    `json:"supplier"`
	ExpenseType         string           `json:"expenseType"`
	Items               []model.LineItem `json:"items"`
	Notes               string           `json:"notes"`
	TaxPercent          decimal.Decimal  `json:"taxPercent"`
	WithholdingIncome   decimal.Decimal  `json:"withholdingIncome"`
	WithholdingTurnover decimal.Decimal  `json:"withholdingTurnover"`
}

// OrderFilter narrows a snapshot. Zero values mean "no constraint"; the
// constraints combine with logical AND.
type OrderFilter struct {
	Search      string // case-insensitive substring: supplier name, number, expense type
	ExpenseType string // exact match
	Date        string // calendar date "2006-01-02", time of day discarded
}

// OrderService owns the canonical in-memory snapshot of all orders and the
// create/update/delete protocol against the store of record.
type OrderService interface {
	// LoadSnapshot reads all orders once, bounded by snapshotTimeout, and
	// replaces the cached snapshot.
	LoadSnapshot(ctx context.Context) (map[string]model.Order, error)

	// Snapshot returns a copy of the cached snapshot.
	Snapshot() map[string]model.Order

	// SubscribeSnapshots registers a consumer of the live feed. Each store
	// change under the orders path delivers the entire replaced snapshot.
	SubscribeSnapshots(fn func(map[string]model.Order)) (unsubscribe func())

	// Create validates the draft, assigns a store key, writes the document and
	// raises the counter floor to the consumed number.
	Create(ctx context.Context, actor identity.Session, draft OrderDraft) (string, error)

	// GetByID returns a single order.
	GetByID(ctx context.Context, id string) (model.OrderWithID, error)

	// Update overwrites the full document. Admin only, re-checked here. The
	// original order number is kept and the counter is never touched.
	Update(ctx context.Context, actor identity.Session, id string, draft OrderDraft) error

	// Delete removes the document. Admin only, re-checked here; confirm is the
	// caller's interactive confirmation. The order number is not reclaimed.
	Delete(ctx context.Context, actor identity.Session, id string, confirm func() bool) error

	// Filter applies an OrderFilter to a snapshot, most recent date first.
	Filter(snapshot map[string]model.Order, f OrderFilter) []model.OrderWithID

	Close()
}

type orderService struct {
	store     store.Store
	gate      RoleGate
	numbering NumberingService
	audit     AuditService
	buyer     model.OrgInfo
	log       zerolog.Logger

	mu        sync.RWMutex
	snapshot  map[string]model.Order
	consumers map[int]func(map[string]model.Order)
	nextID    int

	unsubscribe func()
}

// NewOrderService builds the service and attaches it to the store's live feed.
func NewOrderService(s store.Store, gate RoleGate, numbering NumberingService, audit AuditService, buyer model.OrgInfo) OrderService {
	svc := &orderService{
		store:     s,
		gate:      gate,
		numbering: numbering,
		audit:     audit,
		buyer:     buyer,
		log:       logger.WithComponent("orders"),
		snapshot:  make(map[string]model.Order),
		consumers: make(map[int]func(map[string]model.Order)),
	}
	svc.unsubscribe = s.Subscribe(store.OrdersRoot, svc.onStoreSnapshot)
	return svc
}

func (s *orderService) LoadSnapshot(ctx context.Context) (map[string]model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	raw, err := s.store.Get(ctx, store.OrdersRoot)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: loading orders took longer than %s", apperrors.ErrFetchTimeout, snapshotTimeout)
		}
		return nil, err
	}

	snapshot, err := parseOrders(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	return copySnapshot(snapshot), nil
}

func (s *orderService) Snapshot() map[string]model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snapshot)
}

func (s *orderService) SubscribeSnapshots(fn func(map[string]model.Order)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.consumers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.consumers, id)
		s.mu.Unlock()
	}
}

// onStoreSnapshot replaces the cached snapshot wholesale on every feed tick.
// The feed carries the full collection, so no incremental merging happens.
func (s *orderService) onStoreSnapshot(raw json.RawMessage) {
	snapshot, err := parseOrders(raw)
	if err != nil {
		s.log.Error().Err(err).Msg("unreadable orders snapshot from live feed")
		return
	}

	s.mu.Lock()
	s.snapshot = snapshot
	fns := make([]func(map[string]model.Order), 0, len(s.consumers))
	for _, fn := range s.consumers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(copySnapshot(snapshot))
	}
}

func (s *orderService) Create(ctx context.Context, actor identity.Session, draft OrderDraft) (string, error) {
	profile, err := s.gate.RequireActive(ctx, actor.UserID)
	if err != nil {
		return "", err
	}
	if err := validateItems(draft.Items); err != nil {
		return "", err
	}

	number := draft.OrderNumber
	if number == 0 {
		reserved, ok := s.numbering.Reserved(actor.UserID)
		if !ok {
			if reserved, err = s.numbering.ReserveNext(ctx, actor.UserID); err != nil {
				return "", err
			}
		}
		number = reserved
	}

	now := time.Now()
	date := draft.Date
	if date.IsZero() {
		date = now
	}

	items := model.NormalizeItems(draft.Items)
	order := model.Order{
		OrderNumber: number,
		Date:        date,
		Buyer:       s.buyer,
		Supplier:    draft.Supplier,
		ExpenseType: expenseTypeOrDefault(draft.ExpenseType),
		Items:       items,
		Notes:       draft.Notes,
		Totals:      model.ComputeTotals(items, draft.TaxPercent, draft.WithholdingIncome, draft.WithholdingTurnover),
		Status:      model.OrderStatusActive,
		CreatedBy: model.Creator{
			UserID:      actor.UserID,
			Email:       actor.Email,
			DisplayName: profile.DisplayName,
		},
		LastModified: now,
	}

	id, err := s.store.Push(ctx, store.OrdersRoot)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, store.OrderPath(id), order); err != nil {
		return "", err
	}

	// The reservation may have raced with a concurrent session's higher one;
	// the floor-raise guarantees the counter covers the consumed number.
	if err := s.numbering.ReconcileCounterFloor(ctx, number); err != nil {
		return id, err
	}
	s.numbering.Discard(actor.UserID)

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor.UserID,
		ActorEmail: actor.Email,
		Action:     ActionOrderCreate,
		EntityID:   id,
		Details:    map[string]interface{}{"orderNumber": number},
	})
	return id, nil
}

func (s *orderService) GetByID(ctx context.Context, id string) (model.OrderWithID, error) {
	raw, err := s.store.Get(ctx, store.OrderPath(id))
	if err != nil {
		return model.OrderWithID{}, err
	}
	if raw == nil {
		return model.OrderWithID{}, fmt.Errorf("%w: order %s", apperrors.ErrNotFound, id)
	}
	var order model.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return model.OrderWithID{}, err
	}
	return model.OrderWithID{ID: id, Order: order}, nil
}

func (s *orderService) Update(ctx context.Context, actor identity.Session, id string, draft OrderDraft) error {
	if _, err := s.gate.RequireAdmin(ctx, actor.UserID); err != nil {
		return err
	}
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := validateItems(draft.Items); err != nil {
		return err
	}

	items := model.NormalizeItems(draft.Items)
	order := model.Order{
		// The original number is reused unchanged: editing never reserves a
		// new number and never reconciles the counter.
		OrderNumber:  existing.OrderNumber,
		Date:         existing.Date,
		Buyer:        s.buyer,
		Supplier:     draft.Supplier,
		ExpenseType:  expenseTypeOrDefault(draft.ExpenseType),
		Items:        items,
		Notes:        draft.Notes,
		Totals:       model.ComputeTotals(items, draft.TaxPercent, draft.WithholdingIncome, draft.WithholdingTurnover),
		Status:       existing.Status,
		CreatedBy:    existing.CreatedBy,
		LastModified: time.Now(),
	}
	if order.Status == "" {
		order.Status = model.OrderStatusActive
	}

	if err := s.store.Set(ctx, store.OrderPath(id), order); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor.UserID,
		ActorEmail: actor.Email,
		Action:     ActionOrderUpdate,
		EntityID:   id,
		Details:    map[string]interface{}{"orderNumber": order.OrderNumber},
	})
	return nil
}

func (s *orderService) Delete(ctx context.Context, actor identity.Session, id string, confirm func() bool) error {
	if _, err := s.gate.RequireAdmin(ctx, actor.UserID); err != nil {
		return err
	}
	if confirm != nil && !confirm() {
		return apperrors.ErrCancelled
	}
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// The order number stays consumed forever; deletion never reclaims it.
	if err := s.store.Remove(ctx, store.OrderPath(id)); err != nil {
		return err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor.UserID,
		ActorEmail: actor.Email,
		Action:     ActionOrderDelete,
		EntityID:   id,
		Details:    map[string]interface{}{"orderNumber": existing.OrderNumber},
	})
	return nil
}

func (s *orderService) Filter(snapshot map[string]model.Order, f OrderFilter) []model.OrderWithID {
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	search := strings.ToLower(strings.TrimSpace(f.Search))
	result := make([]model.OrderWithID, 0, len(ids))
	for _, id := range ids {
		order := snapshot[id]
		if search != "" && !matchesSearch(order, search) {
			continue
		}
		if f.ExpenseType != "" && order.ExpenseType != f.ExpenseType {
			continue
		}
		if f.Date != "" && !order.Date.IsZero() && order.Date.Format("2006-01-02") != f.Date {
			continue
		}
		result = append(result, model.OrderWithID{ID: id, Order: order})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result
}

func (s *orderService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// validateItems rejects drafts before totals are computed and before any
// counter number is consumed.
func validateItems(items []model.LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", apperrors.ErrValidation)
	}
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("%w: item %d needs a description", apperrors.ErrValidation, i+1)
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: item %d quantity must be greater than zero", apperrors.ErrValidation, i+1)
		}
		if item.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: item %d unit price must be greater than zero", apperrors.ErrValidation, i+1)
		}
	}
	return nil
}

func matchesSearch(order model.Order, search string) bool {
	return strings.Contains(strings.ToLower(order.Supplier.Name), search) ||
		strings.Contains(strconv.FormatInt(order.OrderNumber, 10), search) ||
		strings.Contains(strings.ToLower(order.ExpenseType), search)
}

func expenseTypeOrDefault(t string) string {
	if strings.TrimSpace(t) == "" {
		return model.ExpenseTypePurchase
	}
	return t
}

func parseOrders(raw json.RawMessage) (map[string]model.Order, error) {
	orders := make(map[string]model.Order)
	if len(raw) == 0 || string(raw) == "null" {
		return orders, nil
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("parse orders collection: %w", err)
	}
	return orders, nil
}

func copySnapshot(snapshot map[string]model.Order) map[string]model.Order {
	out := make(map[string]model.Order, len(snapshot))
	for id, order := range snapshot {
		out[id] = order
	}
	return out
}
