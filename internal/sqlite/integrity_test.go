package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

func TestDeleteTrip_RefusedWhileMessagesExist(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "keep@example.com")
	trip := createTrip(t, b, u.UserID)
	_, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
	require.NoError(t, err)
	appendMessage(t, b, u.UserID, &trip.TripID, "one")
	appendMessage(t, b, u.UserID, &trip.TripID, "two")

	_, err = b.DeleteTrip(ctx, trip.TripID, types.PurgeNone)
	var dd *types.DependentDataError
	require.True(t, errors.As(err, &dd), "got %v", err)
	assert.Equal(t, 2, dd.Count)
	assert.NotEmpty(t, dd.Suggestion)

	_, err = b.GetTrip(ctx, trip.TripID)
	require.NoError(t, err, "refused delete keeps the trip")
	versions, err := b.ListVersions(ctx, trip.TripID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "refused delete keeps the plans")
}

func TestDeleteTrip_CascadesPlans(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	trip := createTrip(t, b, createUser(t, b, "cascade@example.com").UserID)
	v1, err := b.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
	require.NoError(t, err)
	_, err = b.CreateVersion(ctx, trip.TripID, types.PlanPayload{})
	require.NoError(t, err)

	res, err := b.DeleteTrip(ctx, trip.TripID, types.PurgeNone)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PlansDeleted)
	assert.Zero(t, res.MessagesDeleted)

	_, err = b.GetTrip(ctx, trip.TripID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.GetVersion(ctx, v1.PlanID)
	assert.ErrorIs(t, err, types.ErrNotFound, "no orphan plan versions")
}

func TestDeleteTrip_Reassign(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "move@example.com")
	trip := createTrip(t, b, u.UserID)

	appendMessage(t, b, u.UserID, nil, "pre 1")
	appendMessage(t, b, u.UserID, nil, "pre 2")
	appendMessage(t, b, u.UserID, &trip.TripID, "trip 1")
	appendMessage(t, b, u.UserID, &trip.TripID, "trip 2")
	appendMessage(t, b, u.UserID, &trip.TripID, "trip 3")

	res, err := b.DeleteTrip(ctx, trip.TripID, types.PurgeReassign)
	require.NoError(t, err)
	assert.Equal(t, 3, res.MessagesReassigned)

	stream, err := b.Conversation(ctx, types.UserConversation(u.UserID), 0)
	require.NoError(t, err)
	require.Len(t, stream, 5)
	want := []string{"pre 1", "pre 2", "trip 1", "trip 2", "trip 3"}
	for i, m := range stream {
		assert.Equal(t, want[i], m.Content)
		assert.Equal(t, int64(i+1), m.SequenceNumber)
		assert.Nil(t, m.TripID)
	}

	next := appendMessage(t, b, u.UserID, nil, "after")
	assert.Equal(t, int64(6), next.SequenceNumber)
}

func TestDeleteTrip_PurgeDelete(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	u := createUser(t, b, "purge@example.com")
	trip := createTrip(t, b, u.UserID)
	m := appendMessage(t, b, u.UserID, &trip.TripID, "bye")
	pre := appendMessage(t, b, u.UserID, nil, "stays")

	res, err := b.DeleteTrip(ctx, trip.TripID, types.PurgeDelete)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MessagesDeleted)

	_, err = b.GetMessage(ctx, m.MessageID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.GetMessage(ctx, pre.MessageID)
	assert.NoError(t, err)
}

func TestDeleteTrip_Rejects(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	trip := createTrip(t, b, createUser(t, b, "r@example.com").UserID)

	_, err := b.DeleteTrip(ctx, "ghost", types.PurgeNone)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.DeleteTrip(ctx, trip.TripID, types.PurgeMode(7))
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestDeleteUser(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	lonely := createUser(t, b, "lonely@example.com")
	require.NoError(t, b.DeleteUser(ctx, lonely.UserID))
	_, err := b.GetUser(ctx, lonely.UserID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	owner := createUser(t, b, "owner@example.com")
	trip := createTrip(t, b, owner.UserID)
	err = b.DeleteUser(ctx, owner.UserID)
	var dd *types.DependentDataError
	require.True(t, errors.As(err, &dd))
	assert.Equal(t, "trips", dd.Dependent)

	chatty := createUser(t, b, "chatty@example.com")
	appendMessage(t, b, chatty.UserID, nil, "hi")
	err = b.DeleteUser(ctx, chatty.UserID)
	require.True(t, errors.As(err, &dd))
	assert.Equal(t, "chat messages", dd.Dependent)

	_, err = b.DeleteTrip(ctx, trip.TripID, types.PurgeNone)
	require.NoError(t, err)
	assert.NoError(t, b.DeleteUser(ctx, owner.UserID))

	assert.ErrorIs(t, b.DeleteUser(ctx, "ghost"), types.ErrNotFound)
}
