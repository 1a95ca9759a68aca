package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and dev mode. Documents are
// leaves in a flat map keyed by full path; branch reads assemble the subtree.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]json.RawMessage
	notifier *notifier
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]json.RawMessage),
		notifier: newNotifier(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buildSubtree(s.docs, path), nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", path, err)
	}

	s.mu.Lock()
	s.docs[path] = raw
	s.mu.Unlock()

	s.notifyWrite(path)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	merged := make(map[string]json.RawMessage)
	if existing, ok := s.docs[path]; ok {
		if err := json.Unmarshal(existing, &merged); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("document at %s is not an object: %w", path, err)
		}
	}
	for key, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("marshal field %s: %w", key, err)
		}
		merged[key] = raw
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[path] = raw
	s.mu.Unlock()

	s.notifyWrite(path)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.docs, path)
	prefix := path + "/"
	for key := range s.docs {
		if strings.HasPrefix(key, prefix) {
			delete(s.docs, key)
		}
	}
	s.mu.Unlock()

	s.notifyWrite(path)
	return nil
}

func (s *MemoryStore) Push(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

func (s *MemoryStore) Subscribe(path string, fn func(snapshot json.RawMessage)) func() {
	return s.notifier.subscribe(path, fn)
}

func (s *MemoryStore) Transact(ctx context.Context, path string, fn TransactionFunc) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current := s.docs[path]
	next, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("marshal transaction result for %s: %w", path, err)
	}
	s.docs[path] = raw
	s.mu.Unlock()

	s.notifyWrite(path)
	return raw, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) notifyWrite(path string) {
	s.notifier.publish(path, func(subPath string) json.RawMessage {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return buildSubtree(s.docs, subPath)
	})
}

// buildSubtree returns the value at path: the leaf document itself, or the JSON
// object of children for a branch, or nil when nothing exists there.
func buildSubtree(docs map[string]json.RawMessage, path string) json.RawMessage {
	if leaf, ok := docs[path]; ok {
		out := make(json.RawMessage, len(leaf))
		copy(out, leaf)
		return out
	}

	prefix := path + "/"
	children := make(map[string]json.RawMessage)
	for key := range docs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		child := rest
		if idx := strings.Index(rest, "/"); idx >= 0 {
			child = rest[:idx]
		}
		if _, done := children[child]; !done {
			children[child] = buildSubtree(docs, prefix+child)
		}
	}
	if len(children) == 0 {
		return nil
	}
	raw, err := json.Marshal(children)
	if err != nil {
		return nil
	}
	return raw
}
