package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationKey(t *testing.T) {
	tripID := "trip-1"

	withTrip := &ChatMessage{UserID: "user-1", TripID: &tripID}
	assert.Equal(t, TripConversation("trip-1"), withTrip.ConversationKey())
	assert.Equal(t, "trip:trip-1", withTrip.ConversationKey().String())
	assert.True(t, withTrip.ConversationKey().IsTrip())

	preTrip := &ChatMessage{UserID: "user-1"}
	assert.Equal(t, UserConversation("user-1"), preTrip.ConversationKey())
	assert.Equal(t, "user:user-1", preTrip.ConversationKey().String())
	assert.False(t, preTrip.ConversationKey().IsTrip())
}

func TestAppendRequestValidate(t *testing.T) {
	empty := ""
	badPhase := Phase("phase9")
	phase := PhaseLangGraph

	tests := []struct {
		name      string
		req       AppendRequest
		wantField string
	}{
		{
			name: "pre-trip user message",
			req:  AppendRequest{UserID: "u", Role: RoleUser, Content: "I want to go to Paris"},
		},
		{
			name: "assistant message with phase and metadata",
			req: AppendRequest{
				UserID: "u", Role: RoleAssistant, Phase: &phase,
				Content: "Here is your plan", Metadata: json.RawMessage(`{"tokens":120}`),
			},
		},
		{
			name:      "missing user",
			req:       AppendRequest{Role: RoleUser, Content: "hi"},
			wantField: "user_id",
		},
		{
			name:      "empty trip id pointer",
			req:       AppendRequest{UserID: "u", TripID: &empty, Role: RoleUser, Content: "hi"},
			wantField: "trip_id",
		},
		{
			name:      "unknown role",
			req:       AppendRequest{UserID: "u", Role: "agent", Content: "hi"},
			wantField: "role",
		},
		{
			name:      "unknown phase",
			req:       AppendRequest{UserID: "u", Role: RoleUser, Phase: &badPhase, Content: "hi"},
			wantField: "phase",
		},
		{
			name:      "blank content",
			req:       AppendRequest{UserID: "u", Role: RoleUser, Content: "   "},
			wantField: "content",
		},
		{
			name:      "malformed metadata",
			req:       AppendRequest{UserID: "u", Role: RoleUser, Content: "hi", Metadata: json.RawMessage(`{`)},
			wantField: "metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := ParseRole("tool")
	assert.ErrorIs(t, err, ErrValidation)
}
