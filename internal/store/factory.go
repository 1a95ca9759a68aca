package store

import "fmt"

// Driver names accepted by New.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// New builds the configured Store implementation.
func New(driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgresStore(dsn)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
