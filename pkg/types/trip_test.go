package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func parisTrip(t *testing.T) *Trip {
	t.Helper()
	trip := &Trip{
		UserID:      "user-1",
		Phase:       PhaseCrewAI,
		Origin:      "New York",
		Destination: "Paris",
		StartDate:   mustDate(t, "2026-03-10"),
		EndDate:     mustDate(t, "2026-03-20"),
		Adults:      2,
		Budget:      5000,
		Currency:    "USD",
	}
	trip.ApplyDefaults()
	return trip
}

func TestTripStatusTransitions(t *testing.T) {
	allowed := map[TripStatus][]TripStatus{
		TripStatusDraft:      {TripStatusConfirmed, TripStatusCancelled},
		TripStatusConfirmed:  {TripStatusInProgress, TripStatusCancelled},
		TripStatusInProgress: {TripStatusCompleted, TripStatusCancelled},
		TripStatusCompleted:  nil,
		TripStatusCancelled:  nil,
	}

	for _, from := range TripStatuses {
		for _, to := range TripStatuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTripStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TripStatus
		terminal bool
	}{
		{TripStatusDraft, false},
		{TripStatusConfirmed, false},
		{TripStatusInProgress, false},
		{TripStatusCompleted, true},
		{TripStatusCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestCompletedToDraftIsNeverAllowed(t *testing.T) {
	assert.False(t, TripStatusCompleted.CanTransitionTo(TripStatusDraft))
	assert.False(t, TripStatusConfirmed.CanTransitionTo(TripStatusCompleted), "must pass through in_progress")
}

func TestParseTripStatus(t *testing.T) {
	st, err := ParseTripStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, TripStatusInProgress, st)

	_, err = ParseTripStatus("archived")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTripApplyDefaults(t *testing.T) {
	trip := &Trip{StartDate: time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)}
	trip.ApplyDefaults()

	assert.Equal(t, DefaultTripTitle, trip.Title)
	assert.Equal(t, AccommodationHotel, trip.Accommodation)
	assert.Equal(t, DefaultCurrency, trip.Currency)
	assert.Equal(t, DefaultPurpose, trip.Purpose)
	assert.Equal(t, DefaultTravelDetail, trip.TravelPreferences)
	assert.Equal(t, DefaultTravelDetail, trip.TravelConstraints)
	assert.Equal(t, TripStatusDraft, trip.Status)
	assert.Equal(t, 0, trip.StartDate.Hour(), "time of day is dropped")
	assert.Equal(t, 0, trip.Adults, "adults are not defaulted")
}

func TestTripValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(t *testing.T, trip *Trip)
		wantField string
	}{
		{name: "valid paris trip", mutate: func(*testing.T, *Trip) {}},
		{
			name:      "missing owner",
			mutate:    func(_ *testing.T, trip *Trip) { trip.UserID = "" },
			wantField: "user_id",
		},
		{
			name:      "unknown phase",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Phase = "phase5_magic" },
			wantField: "phase",
		},
		{
			name:      "blank destination",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Destination = "  " },
			wantField: "destination",
		},
		{
			name: "same start and end date",
			mutate: func(t *testing.T, trip *Trip) {
				trip.StartDate = mustDate(t, "2026-03-10")
				trip.EndDate = mustDate(t, "2026-03-10")
			},
			wantField: "end_date",
		},
		{
			name: "end before start",
			mutate: func(t *testing.T, trip *Trip) {
				trip.EndDate = mustDate(t, "2026-03-01")
			},
			wantField: "end_date",
		},
		{
			name:      "zero start date",
			mutate:    func(_ *testing.T, trip *Trip) { trip.StartDate = time.Time{} },
			wantField: "start_date",
		},
		{
			name:      "zero adults",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Adults = 0 },
			wantField: "no_of_adults",
		},
		{
			name:      "negative children",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Children = -1 },
			wantField: "no_of_children",
		},
		{
			name:      "negative budget",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Budget = -0.01 },
			wantField: "budget",
		},
		{
			name:      "unknown accommodation",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Accommodation = "luxury hotel" },
			wantField: "accommodation_type",
		},
		{
			name:      "lowercase currency",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Currency = "usd" },
			wantField: "currency",
		},
		{
			name:      "unknown status",
			mutate:    func(_ *testing.T, trip *Trip) { trip.Status = "archived" },
			wantField: "trip_status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := parisTrip(t)
			tt.mutate(t, trip)

			err := trip.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "trip", ve.Entity)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestTripDerivedFigures(t *testing.T) {
	trip := parisTrip(t)
	trip.Children = 1

	assert.Equal(t, 11, trip.DurationDays(), "both endpoints are counted")
	assert.Equal(t, 3, trip.TotalTravelers())
	assert.InDelta(t, 5000.0/11, trip.DailyBudget(), 1e-9)

	trip.Budget = 0
	assert.Zero(t, trip.DailyBudget())
}

func TestTripPatchApply(t *testing.T) {
	trip := parisTrip(t)
	title := "Spring in Paris"
	adults := 3
	end := time.Date(2026, 3, 22, 18, 0, 0, 0, time.UTC)

	patch := TripPatch{Title: &title, Adults: &adults, EndDate: &end}
	assert.False(t, patch.Empty())
	patch.Apply(trip)

	assert.Equal(t, "Spring in Paris", trip.Title)
	assert.Equal(t, 3, trip.Adults)
	assert.Equal(t, "2026-03-22", trip.EndDate.Format(DateLayout))
	assert.Equal(t, 0, trip.EndDate.Hour())
	assert.Equal(t, "Paris", trip.Destination, "untouched fields keep their value")

	assert.True(t, TripPatch{}.Empty())
}

func TestParseAccommodation(t *testing.T) {
	for _, a := range Accommodations {
		got, err := ParseAccommodation(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	_, err := ParseAccommodation("Hotel")
	assert.ErrorIs(t, err, ErrValidation, "matching is exact, no coercion")
}

func TestParsePhase(t *testing.T) {
	for _, p := range Phases {
		got, err := ParsePhase(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePhase("phase0")
	assert.ErrorIs(t, err, ErrValidation)
}
