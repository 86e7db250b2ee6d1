package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tripstate/internal/metrics"
	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func TestBackend_Attach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })

	_, err := os.Stat(filepath.Join(dir, DBFile))
	assert.NoError(t, err, "database file is created")

	assert.ErrorIs(t, b.Attach(config), types.ErrAlreadyAttached)
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "postgres"}), types.ErrBackendUnknown)
	assert.ErrorIs(t, b.Attach(types.Config{}), types.ErrBackendEmpty)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")

	ctx := context.Background()
	_, err := b.GetUser(ctx, "any")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.CreateVersion(ctx, "any", types.PlanPayload{})
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.Append(ctx, types.AppendRequest{UserID: "u", Role: types.RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, types.ErrStoreDetached)
	_, err = b.Stats(ctx)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_DataSurvivesReattach(t *testing.T) {
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	ctx := context.Background()

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	u := createUser(t, b, "alice@example.com")
	trip := createTrip(t, b, u.UserID)
	_, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{TotalEstimatedCost: 4200})
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(config))
	t.Cleanup(func() { b2.Detach() })

	got, err := b2.GetTrip(ctx, trip.TripID)
	require.NoError(t, err)
	assert.Equal(t, trip.Destination, got.Destination)

	pv, err := b2.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
	require.NoError(t, err)
	assert.Equal(t, 2, pv.Version, "numbering continues from stored history")
}

func TestBackend_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := setupBackend(t, WithRecorder(metrics.NewRecorder(reg)))
	ctx := context.Background()

	u := createUser(t, b, "m@example.com")
	_, err := b.GetTrip(ctx, "missing")
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.CreateUser(ctx, &types.User{Name: "Dup", Email: u.Email})
	require.ErrorIs(t, err, types.ErrValidation)

	expected := `
# HELP tripstate_operations_total Store operations by name and result.
# TYPE tripstate_operations_total counter
tripstate_operations_total{op="create_user",result="ok"} 1
tripstate_operations_total{op="create_user",result="validation"} 1
tripstate_operations_total{op="get_trip",result="not_found"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tripstate_operations_total"))
}

func TestDSN(t *testing.T) {
	got := dsn("/data/tripstate.db", types.DefaultBusyTimeout)
	assert.Contains(t, got, "file:/data/tripstate.db?")
	assert.Contains(t, got, "_txlock=immediate")
	assert.Contains(t, got, "busy_timeout%285000%29")
	assert.Contains(t, got, "foreign_keys%281%29")
	assert.Contains(t, got, "journal_mode%28WAL%29")
}
