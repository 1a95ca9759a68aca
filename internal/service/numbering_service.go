package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"orderdesk/internal/apperrors"
	"orderdesk/internal/logger"
	"orderdesk/internal/store"
)

// The counter seed. The first reserved order number is counterSeed+1.
const counterSeed = 999

// NumberingService hands out consecutive order numbers backed by the shared
// counter document. Numbers are never reused: a discarded reservation leaves
// a gap, and deleting an order does not reclaim its number.
type NumberingService interface {
	// ReserveNext atomically increments the counter and remembers the result
	// for the user until Discard.
	ReserveNext(ctx context.Context, userID string) (int64, error)

	// Reserved returns the user's outstanding reservation, if any.
	Reserved(userID string) (int64, bool)

	// Discard forgets the user's outstanding reservation. The counter is not
	// rolled back.
	Discard(userID string)

	// ReconcileCounterFloor raises the counter to at least used. It never
	// lowers the counter, so a stale floor from a slow writer is harmless.
	ReconcileCounterFloor(ctx context.Context, used int64) error
}

type numberingService struct {
	store store.Store
	log   zerolog.Logger

	mu       sync.Mutex
	reserved map[string]int64
}

// NewNumberingService builds the counter service on top of the store.
func NewNumberingService(s store.Store) NumberingService {
	return &numberingService{
		store:    s,
		log:      logger.WithComponent("numbering"),
		reserved: make(map[string]int64),
	}
}

func (s *numberingService) ReserveNext(ctx context.Context, userID string) (int64, error) {
	result, err := s.store.Transact(ctx, store.CounterPath, func(current json.RawMessage) (interface{}, error) {
		return counterValue(current) + 1, nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrTransactionConflict) {
			return 0, err
		}
		// Contention exhausted the store's retries. Fall back to a plain
		// read-increment-write; the floor-raise after order creation repairs
		// any number this leg loses to a concurrent writer.
		s.log.Warn().Err(err).Msg("counter transaction contended, using non-atomic fallback")
		raw, getErr := s.store.Get(ctx, store.CounterPath)
		if getErr != nil {
			return 0, getErr
		}
		next := counterValue(raw) + 1
		if setErr := s.store.Set(ctx, store.CounterPath, next); setErr != nil {
			return 0, setErr
		}
		s.remember(userID, next)
		return next, nil
	}

	next := counterValue(result)
	s.remember(userID, next)
	return next, nil
}

func (s *numberingService) Reserved(userID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.reserved[userID]
	return n, ok
}

func (s *numberingService) Discard(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, userID)
}

func (s *numberingService) ReconcileCounterFloor(ctx context.Context, used int64) error {
	_, err := s.store.Transact(ctx, store.CounterPath, func(current json.RawMessage) (interface{}, error) {
		cur := counterValue(current)
		if used > cur {
			cur = used
		}
		return cur, nil
	})
	return err
}

func (s *numberingService) remember(userID string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved[userID] = n
}

// counterValue decodes the stored counter. A missing or corrupted document
// counts as the seed, so numbering restarts at counterSeed+1 rather than
// failing every reservation.
func counterValue(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return counterSeed
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return counterSeed
	}
	return n
}
