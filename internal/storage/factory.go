package storage

import (
	"fmt"
	"strings"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// NewStore opens the backend named by kind. An empty kind selects the
// in-memory store; dbPath is only read by the sqlite backend.
func NewStore(kind, dbPath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown store kind %q (want %s or %s)", kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported releases stores that hold external resources.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
