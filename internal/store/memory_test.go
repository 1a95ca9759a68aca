package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLeafAndBranchReads(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders/a", map[string]interface{}{"orderNumber": 1000}))
	require.NoError(t, s.Set(ctx, "orders/b", map[string]interface{}{"orderNumber": 1001}))

	leaf, err := s.Get(ctx, "orders/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderNumber":1000}`, string(leaf))

	branch, err := s.Get(ctx, "orders")
	require.NoError(t, err)
	var children map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(branch, &children))
	assert.Len(t, children, 2)
	assert.Contains(t, children, "a")
	assert.Contains(t, children, "b")

	missing, err := s.Get(ctx, "orders/none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreUpdateMergesFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1", map[string]interface{}{"role": "user", "email": "a@b.co"}))
	require.NoError(t, s.Update(ctx, "users/u1", map[string]interface{}{"role": "admin"}))

	raw, err := s.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin","email":"a@b.co"}`, string(raw))
}

func TestMemoryStoreRemoveDropsSubtree(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders/a", 1))
	require.NoError(t, s.Set(ctx, "orders/b", 2))
	require.NoError(t, s.Remove(ctx, "orders"))

	raw, err := s.Get(ctx, "orders")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestMemoryStoreSubscribeDeliversSnapshots(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var mu sync.Mutex
	var last json.RawMessage
	unsubscribe := s.Subscribe("orders", func(snapshot json.RawMessage) {
		mu.Lock()
		last = snapshot
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, s.Set(ctx, "orders/a", map[string]interface{}{"orderNumber": 1000}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		if last == nil {
			return false
		}
		var children map[string]json.RawMessage
		return json.Unmarshal(last, &children) == nil && len(children) == 1
	}, time.Second, 5*time.Millisecond)

	// A write outside the subscribed path must not reach this subscriber.
	mu.Lock()
	before := string(last)
	mu.Unlock()
	require.NoError(t, s.Set(ctx, "users/u1", map[string]interface{}{"role": "user"}))
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, before, string(last))
	mu.Unlock()
}

func TestMemoryStoreTransactSerializesIncrements(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	const writers = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transact(ctx, "metadata/lastOrderNumber", func(current json.RawMessage) (interface{}, error) {
				var n int64
				if len(current) > 0 {
					if err := json.Unmarshal(current, &n); err != nil {
						return nil, err
					}
				}
				return n + 1, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	raw, err := s.Get(ctx, "metadata/lastOrderNumber")
	require.NoError(t, err)
	assert.JSONEq(t, "50", string(raw))
}

func TestMemoryStoreTransactPropagatesFnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	wantErr := assert.AnError
	_, err := s.Transact(ctx, "metadata/lastOrderNumber", func(json.RawMessage) (interface{}, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	raw, err := s.Get(ctx, "metadata/lastOrderNumber")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
