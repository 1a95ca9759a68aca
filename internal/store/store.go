package store

import (
	"context"
	"encoding/json"
)

// Well-known paths of the logical schema.
const (
	OrdersRoot      = "orders"
	UsersRoot       = "users"
	CredentialsRoot = "credentials"
	AuditRoot       = "audit"
	CounterPath     = "metadata/lastOrderNumber"
)

// OrderPath returns the document path of one order.
func OrderPath(id string) string { return OrdersRoot + "/" + id }

// UserPath returns the document path of one user profile.
func UserPath(uid string) string { return UsersRoot + "/" + uid }

// CredentialPath returns the document path of one credential record.
func CredentialPath(uid string) string { return CredentialsRoot + "/" + uid }

// TransactionFunc computes the next value of a document from its current one.
// current is nil when the document does not exist yet.
type TransactionFunc func(current json.RawMessage) (interface{}, error)

// Store is a hierarchical document store keyed by slash-separated paths.
// Reading a branch path returns the JSON object of its children.
//
// Transact serializes concurrent attempts at the same path: the store retries
// internally and returns apperrors.ErrTransactionConflict once those retries
// are exhausted. Subscriptions deliver the entire subtree snapshot on every
// committed write under the subscribed path, in commit order; intermediate
// states may be collapsed (latest wins), never reordered.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, value interface{}) error
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	Remove(ctx context.Context, path string) error
	Push(ctx context.Context, path string) (string, error)
	Subscribe(path string, fn func(snapshot json.RawMessage)) (unsubscribe func())
	Transact(ctx context.Context, path string, fn TransactionFunc) (json.RawMessage, error)
	Close() error
}
