package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanStatusTransitions(t *testing.T) {
	tests := []struct {
		from PlanStatus
		to   PlanStatus
		want bool
	}{
		{PlanStatusDraft, PlanStatusApproved, true},
		{PlanStatusDraft, PlanStatusRejected, true},
		{PlanStatusDraft, PlanStatusDraft, false},
		{PlanStatusApproved, PlanStatusRejected, false},
		{PlanStatusApproved, PlanStatusDraft, false},
		{PlanStatusRejected, PlanStatusApproved, false},
		{PlanStatusRejected, PlanStatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParsePlanStatus(t *testing.T) {
	st, err := ParsePlanStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, PlanStatusApproved, st)

	_, err = ParsePlanStatus("current")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlanPayloadValidate(t *testing.T) {
	tests := []struct {
		name      string
		payload   PlanPayload
		wantField string
	}{
		{
			name: "opaque blobs of any JSON shape are accepted",
			payload: PlanPayload{
				Itinerary:          json.RawMessage(`"Day 1: Louvre"`),
				Hotels:             json.RawMessage(`[{"name":"Hotel Lutetia","price_per_night":420}]`),
				Flights:            json.RawMessage(`[]`),
				AgentMetadata:      json.RawMessage(`{"agents":["planner"]}`),
				DailyBudget:        450,
				TotalEstimatedCost: 4950,
			},
		},
		{
			name:    "empty payload is accepted",
			payload: PlanPayload{},
		},
		{
			name:      "malformed itinerary",
			payload:   PlanPayload{Itinerary: json.RawMessage(`{"day":`)},
			wantField: "itinerary",
		},
		{
			name:      "malformed hotels",
			payload:   PlanPayload{Hotels: json.RawMessage(`[}`)},
			wantField: "hotels",
		},
		{
			name:      "negative total cost",
			payload:   PlanPayload{TotalEstimatedCost: -1},
			wantField: "total_estimated_cost",
		},
		{
			name:      "NaN daily budget",
			payload:   PlanPayload{DailyBudget: math.NaN()},
			wantField: "daily_budget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
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
