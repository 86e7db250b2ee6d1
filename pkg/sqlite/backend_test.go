package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func TestNewBackend(t *testing.T) {
	store := NewBackend(WithLogger(zap.NewNop()))
	require.NoError(t, store.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer store.Detach()

	u, err := store.CreateUser(context.Background(), &types.User{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	got, err := store.GetUser(context.Background(), u.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
}
