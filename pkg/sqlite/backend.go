// Package sqlite is the public entry point to the SQLite trip-state store.
// The implementation lives in internal/sqlite.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tripstate/internal/sqlite"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// Option configures a backend created by NewBackend.
type Option = sqlite.Option

// WithLogger sets the backend logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return sqlite.WithLogger(l)
}

// NewBackend creates a detached SQLite store. Call Attach before use.
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "/var/lib/tripstate",
//	})
//	defer store.Detach()
func NewBackend(opts ...Option) types.Store {
	return sqlite.NewBackend(opts...)
}
