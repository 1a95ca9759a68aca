package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/apperrors"
	"orderdesk/internal/store"
)

// conflictStore simulates a counter under so much contention that the store
// gives up retrying.
type conflictStore struct {
	*store.MemoryStore
}

func (s *conflictStore) Transact(ctx context.Context, path string, fn store.TransactionFunc) (json.RawMessage, error) {
	return nil, apperrors.ErrTransactionConflict
}

func TestReserveNextStartsAfterSeed(t *testing.T) {
	numbering := NewNumberingService(store.NewMemoryStore())

	n, err := numbering.ReserveNext(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
}

func TestReserveNextIsSequential(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.CounterPath, 1005))

	numbering := NewNumberingService(st)

	first, err := numbering.ReserveNext(ctx, "u1")
	require.NoError(t, err)
	second, err := numbering.ReserveNext(ctx, "u2")
	require.NoError(t, err)

	assert.Equal(t, int64(1006), first)
	assert.Equal(t, int64(1007), second)
}

func TestReserveNextConcurrentReservationsAreDistinct(t *testing.T) {
	numbering := NewNumberingService(store.NewMemoryStore())
	ctx := context.Background()
	const sessions = 25

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := numbering.ReserveNext(ctx, "u1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			assert.False(t, seen[n], "number %d reserved twice", n)
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, sessions)
}

func TestReserveNextRemembersReservation(t *testing.T) {
	numbering := NewNumberingService(store.NewMemoryStore())
	ctx := context.Background()

	n, err := numbering.ReserveNext(ctx, "u1")
	require.NoError(t, err)

	got, ok := numbering.Reserved("u1")
	assert.True(t, ok)
	assert.Equal(t, n, got)

	_, ok = numbering.Reserved("u2")
	assert.False(t, ok)

	numbering.Discard("u1")
	_, ok = numbering.Reserved("u1")
	assert.False(t, ok)
}

func TestReconcileCounterFloorNeverLowers(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.CounterPath, 1007))

	numbering := NewNumberingService(st)

	// A slow writer reporting an older number leaves the counter alone.
	require.NoError(t, numbering.ReconcileCounterFloor(ctx, 1005))
	raw, err := st.Get(ctx, store.CounterPath)
	require.NoError(t, err)
	assert.JSONEq(t, "1007", string(raw))

	require.NoError(t, numbering.ReconcileCounterFloor(ctx, 1042))
	raw, err = st.Get(ctx, store.CounterPath)
	require.NoError(t, err)
	assert.JSONEq(t, "1042", string(raw))
}

func TestReserveNextFallsBackWhenContended(t *testing.T) {
	st := &conflictStore{MemoryStore: store.NewMemoryStore()}
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.CounterPath, 1010))

	numbering := NewNumberingService(st)

	n, err := numbering.ReserveNext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1011), n)

	raw, err := st.Get(ctx, store.CounterPath)
	require.NoError(t, err)
	assert.JSONEq(t, "1011", string(raw))
}

func TestCounterValueToleratesCorruption(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.CounterPath, "not-a-number"))

	numbering := NewNumberingService(st)

	n, err := numbering.ReserveNext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
}
