package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

// setupBackend attaches a Backend to a fresh data directory and detaches it
// when the test ends.
func setupBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := NewBackend(opts...)
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := types.ParseDate(s)
	require.NoError(t, err)
	return d
}

func createUser(t *testing.T, b *Backend, email string) *types.User {
	t.Helper()
	u, err := b.CreateUser(context.Background(), &types.User{Name: "Traveler " + email, Email: email})
	require.NoError(t, err)
	return u
}

// parisTrip is two adults flying New York to Paris for 11 days in March
// 2026 on a 5000 USD budget.
func parisTrip(t *testing.T, userID string) *types.Trip {
	t.Helper()
	return &types.Trip{
		UserID:      userID,
		Phase:       types.PhaseCrewAI,
		Title:       "Paris in spring",
		Origin:      "New York",
		Destination: "Paris",
		StartDate:   date(t, "2026-03-10"),
		EndDate:     date(t, "2026-03-20"),
		Adults:      2,
		Budget:      5000,
		Currency:    "USD",
	}
}

func createTrip(t *testing.T, b *Backend, userID string) *types.Trip {
	t.Helper()
	trip, err := b.CreateTrip(context.Background(), parisTrip(t, userID))
	require.NoError(t, err)
	return trip
}

func appendMessage(t *testing.T, b *Backend, userID string, tripID *string, content string) *types.ChatMessage {
	t.Helper()
	m, err := b.Append(context.Background(), types.AppendRequest{
		UserID:  userID,
		TripID:  tripID,
		Role:    types.RoleUser,
		Content: content,
	})
	require.NoError(t, err)
	return m
}

func ptr[T any](v T) *T { return &v }
