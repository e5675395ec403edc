//go:build !sqlite

package storage

import "errors"

// DefaultStoreKind is the backend used when none is requested.
func DefaultStoreKind() string {
	return KindMemory
}

func newSQLiteStore(_ string) (Store, error) {
	return nil, errors.New("sqlite backend unavailable: build racetunectl with -tags sqlite")
}
