package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func TestPlans_ConcurrentCreateVersionIsGapFree(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	trip := createTrip(t, b, createUser(t, b, "plans@example.com").UserID)

	const writers = 12
	versions := make([]int, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pv, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{TotalEstimatedCost: float64(1000 + i)})
			errs[i] = err
			if err == nil {
				versions[i] = pv.Version
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := range writers {
		require.NoError(t, errs[i])
		assert.False(t, seen[versions[i]], "version %d allocated twice", versions[i])
		seen[versions[i]] = true
	}
	for v := 1; v <= writers; v++ {
		assert.True(t, seen[v], "version %d missing", v)
	}

	current, err := b.CurrentVersion(ctx, trip.TripID)
	require.NoError(t, err)
	assert.Equal(t, writers, current.Version)
}

func TestPlans_PayloadRoundTrip(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	trip := createTrip(t, b, createUser(t, b, "blob@example.com").UserID)

	payload := types.PlanPayload{
		Itinerary:          json.RawMessage(`{"days":[{"day":1,"items":["Louvre"]}]}`),
		Hotels:             json.RawMessage(`[{"name":"Hotel Lutetia"}]`),
		AgentMetadata:      json.RawMessage(`{"model":"planner"}`),
		DailyBudget:        450,
		TotalEstimatedCost: 4950,
	}
	pv, err := b.CreateVersion(ctx, trip.TripID, payload)
	require.NoError(t, err)
	assert.Equal(t, types.PlanStatusDraft, pv.Status)

	got, err := b.GetVersion(ctx, pv.PlanID)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload.Itinerary), string(got.Itinerary))
	assert.JSONEq(t, string(payload.Hotels), string(got.Hotels))
	assert.Nil(t, got.Flights, "absent blobs stay absent")
	assert.Equal(t, 4950.0, got.TotalEstimatedCost)
}

func TestPlans_CreateVersionRejects(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	trip := createTrip(t, b, createUser(t, b, "rej@example.com").UserID)

	_, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{Flights: json.RawMessage(`[`)})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = b.CreateVersion(ctx, "ghost-trip", types.PlanPayload{})
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "trip", nf.Entity)

	versions, err := b.ListVersions(ctx, trip.TripID)
	require.NoError(t, err)
	assert.Empty(t, versions, "rejected payloads consume no version number")
}

func TestPlans_SetPlanStatus(t *testing.T) {
	tests := []struct {
		name    string
		steps   []types.PlanStatus
		wantErr error
	}{
		{"approve draft", []types.PlanStatus{types.PlanStatusApproved}, nil},
		{"reject draft", []types.PlanStatus{types.PlanStatusRejected}, nil},
		{"approved is final", []types.PlanStatus{types.PlanStatusApproved, types.PlanStatusRejected}, types.ErrInvalidTransition},
		{"rejected is final", []types.PlanStatus{types.PlanStatusRejected, types.PlanStatusApproved}, types.ErrInvalidTransition},
		{"back to draft", []types.PlanStatus{types.PlanStatusDraft}, types.ErrInvalidTransition},
		{"unknown status", []types.PlanStatus{"current"}, types.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setupBackend(t)
			ctx := context.Background()
			trip := createTrip(t, b, createUser(t, b, "ps@example.com").UserID)
			pv, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
			require.NoError(t, err)

			for _, st := range tt.steps {
				if _, err = b.SetPlanStatus(ctx, pv.PlanID, st); err != nil {
					break
				}
			}
			if tt.wantErr == nil {
				require.NoError(t, err)
				got, err := b.GetVersion(ctx, pv.PlanID)
				require.NoError(t, err)
				assert.Equal(t, tt.steps[len(tt.steps)-1], got.Status)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlans_StatusChangeLeavesSiblingsAlone(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	trip := createTrip(t, b, createUser(t, b, "sib@example.com").UserID)

	v1, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
	require.NoError(t, err)
	v2, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
	require.NoError(t, err)

	_, err = b.SetPlanStatus(ctx, v2.PlanID, types.PlanStatusRejected)
	require.NoError(t, err)

	got, err := b.GetVersion(ctx, v1.PlanID)
	require.NoError(t, err)
	assert.Equal(t, types.PlanStatusDraft, got.Status)

	current, err := b.CurrentVersion(ctx, trip.TripID)
	require.NoError(t, err)
	assert.Equal(t, v2.PlanID, current.PlanID, "a rejected newest version is still current")
}

func TestPlans_Lookups(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	trip := createTrip(t, b, createUser(t, b, "look@example.com").UserID)

	_, err := b.CurrentVersion(ctx, trip.TripID)
	assert.ErrorIs(t, err, types.ErrNotFound, "no versions yet")

	for range 3 {
		_, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
		require.NoError(t, err)
	}

	v2, err := b.GetVersionByNumber(ctx, trip.TripID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	_, err = b.GetVersionByNumber(ctx, trip.TripID, 9)
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "plan_version", nf.Entity)

	_, err = b.GetVersionByNumber(ctx, "ghost-trip", 1)
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "trip", nf.Entity)

	list, err := b.ListVersions(ctx, trip.TripID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{list[0].Version, list[1].Version, list[2].Version})

	_, err = b.ListVersions(ctx, "ghost-trip")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.GetVersion(ctx, "ghost-plan")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPlans_VersionsAreScopedPerTrip(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "scope@example.com")
	a := createTrip(t, b, u.UserID)
	c := createTrip(t, b, u.UserID)

	_, err := b.CreateVersion(ctx, a.TripID, types.PlanPayload{})
	require.NoError(t, err)
	_, err = b.CreateVersion(ctx, a.TripID, types.PlanPayload{})
	require.NoError(t, err)
	pv, err := b.CreateVersion(ctx, c.TripID, types.PlanPayload{})
	require.NoError(t, err)
	assert.Equal(t, 1, pv.Version)
}
